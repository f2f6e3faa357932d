package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/contact-book-api/api/swagger"
	"github.com/noah-isme/contact-book-api/internal/handler"
	internalmiddleware "github.com/noah-isme/contact-book-api/internal/middleware"
	"github.com/noah-isme/contact-book-api/internal/repository"
	"github.com/noah-isme/contact-book-api/internal/service"
	"github.com/noah-isme/contact-book-api/pkg/cache"
	"github.com/noah-isme/contact-book-api/pkg/config"
	"github.com/noah-isme/contact-book-api/pkg/database"
	"github.com/noah-isme/contact-book-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/contact-book-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/contact-book-api/pkg/middleware/requestid"
	"github.com/noah-isme/contact-book-api/pkg/storage"
	"github.com/noah-isme/contact-book-api/pkg/validation"
)

// @title Contact Book API
// @version 1.0.0
// @description Teacher and parent contact book with class-scoped visibility
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient == nil {
		logr.Warn("redis disabled; sessions are rebuilt from tokens and logout cannot revoke them")
	}

	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	contactRepo := repository.NewContactRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	memoRepo := repository.NewMemoRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ContactTTL, logr, cacheRepo.Enabled())
	validator := validation.New()

	directorySvc := service.NewDirectoryService(teacherRepo, studentRepo, cacheSvc, cfg.Cache.DirectoryTTL, validator, logr)
	sessionSvc := service.NewSessionService(directorySvc, cacheRepo, cfg.JWT.Expiration, metricsSvc, logr)
	guard := service.NewAccessGuard(metricsSvc, logr)
	authSvc := service.NewAuthService(accountRepo, sessionSvc, guard, validator, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	fileStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare attachment storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)
	attachmentSvc := service.NewAttachmentService(fileStore, signer, service.AttachmentConfig{
		BaseURL:      cfg.APIPrefix + "/attachments",
		MaxSizeBytes: cfg.Attachments.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Attachments.AllowedMIMEs,
	}, logr)

	contactSvc := service.NewContactService(contactRepo, cacheSvc, cfg.Cache.ContactTTL, attachmentSvc, guard, validator, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, attachmentSvc, guard, validator, logr)
	memoSvc := service.NewMemoService(memoRepo, guard, logr)
	dashboardSvc := service.NewDashboardService(contactRepo, cacheSvc, cfg.Cache.DashboardTTL, guard, logr)
	exportSvc := service.NewExportService(contactSvc, studentRepo, service.NewRenderers(cfg.Export.PDFFontPath), guard, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Contacts:    handler.NewContactHandler(contactSvc, exportSvc),
		Calendar:    handler.NewCalendarHandler(calendarSvc),
		Memos:       handler.NewMemoHandler(memoSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
		Attachments: handler.NewAttachmentHandler(attachmentSvc),
	}, handler.RouteDeps{Auth: authSvc, Audit: accountRepo, Logger: logr})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
