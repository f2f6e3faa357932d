package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/middleware"
	"github.com/noah-isme/contact-book-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth        *AuthHandler
	Contacts    *ContactHandler
	Calendar    *CalendarHandler
	Memos       *MemoHandler
	Dashboard   *DashboardHandler
	Attachments *AttachmentHandler
}

// RouteDeps carries the middleware collaborators.
type RouteDeps struct {
	Auth   middleware.SessionAuthenticator
	Audit  middleware.AuditWriter
	Logger *zap.Logger
}

// RegisterRoutes mounts the contact book API on api.
func RegisterRoutes(api gin.IRouter, h Handlers, deps RouteDeps) {
	authn := middleware.JWT(deps.Auth)
	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	parentOnly := middleware.RequireRoles(models.RoleParent)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, deps.Logger, action, resource)
	}

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/switch-student", authn, h.Auth.SwitchStudent)
	auth.POST("/logout", authn, h.Auth.Logout)
	auth.POST("/change-password", authn, audit("CHANGE_PASSWORD", "account"), h.Auth.ChangePassword)
	auth.GET("/me", authn, h.Auth.Me)

	contacts := api.Group("/contacts", authn)
	contacts.GET("", h.Contacts.List)
	contacts.GET("/pending-reply", parentOnly, h.Contacts.PendingReply)
	contacts.POST("/individual", teacherOnly, audit("SEND_INDIVIDUAL", "contact"), h.Contacts.SendIndividual)
	contacts.POST("/broadcast", teacherOnly, audit("SEND_BROADCAST", "contact"), h.Contacts.SendBroadcast)
	contacts.GET("/:id", h.Contacts.Get)
	contacts.POST("/:id/reply", parentOnly, audit("REPLY", "contact"), h.Contacts.Reply)
	contacts.PUT("/:id/read-state", audit("SET_READ_STATE", "contact"), h.Contacts.SetReadState)

	api.GET("/students/:id/contacts/export", authn, teacherOnly, h.Contacts.Export)

	calendar := api.Group("/calendar", authn)
	calendar.GET("", h.Calendar.List)
	calendar.POST("", teacherOnly, audit("CREATE_EVENT", "calendar"), h.Calendar.Create)
	calendar.POST("/import", teacherOnly, audit("IMPORT_EVENTS", "calendar"), h.Calendar.Import)
	api.GET("/calendar.ics", authn, h.Calendar.ICS)

	memos := api.Group("/memos", authn, teacherOnly)
	memos.GET("", h.Memos.List)
	memos.GET("/:student_id", h.Memos.Get)
	memos.PUT("/:student_id", audit("SAVE_MEMO", "memo"), h.Memos.Save)

	api.GET("/dashboard", authn, teacherOnly, h.Dashboard.Summary)

	api.POST("/attachments", authn, h.Attachments.Upload)
	api.GET("/attachments/:token", h.Attachments.Download)
}
