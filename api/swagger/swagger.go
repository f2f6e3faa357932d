package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Contact Book API",
        "description": "Teacher and parent contact book with class-scoped visibility",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Authentication", "description": "Sign-in and sessions"},
        {"name": "Contacts", "description": "Individual messages and broadcasts"},
        {"name": "Calendar", "description": "Class-filtered school calendar"},
        {"name": "Memos", "description": "Teacher-only support memos"},
        {"name": "Dashboard", "description": "Contact book statistics"},
        {"name": "Attachments", "description": "Uploaded images and PDFs"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign in",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Unregistered identity or no linked student", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/switch-student": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Switch linked student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SwitchStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not a linked student", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign out",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current session",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/contacts": {
            "get": {
                "tags": ["Contacts"],
                "summary": "List visible messages",
                "parameters": [
                    {"name": "kind", "in": "query", "type": "string", "enum": ["all", "broadcast", "individual"]},
                    {"name": "read_state", "in": "query", "type": "string", "enum": ["unread", "read"]},
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "q", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/contacts/individual": {
            "post": {
                "tags": ["Contacts"],
                "summary": "Send a message to one student's family",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendIndividualRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Student not reachable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contacts/broadcast": {
            "post": {
                "tags": ["Contacts"],
                "summary": "Send a message to every family",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendBroadcastRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/contacts/pending-reply": {
            "get": {
                "tags": ["Contacts"],
                "summary": "Most recent unanswered message",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/contacts/{id}": {
            "get": {
                "tags": ["Contacts"],
                "summary": "Get a message",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Hidden or missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contacts/{id}/reply": {
            "post": {
                "tags": ["Contacts"],
                "summary": "Reply from home",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Record no longer exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contacts/{id}/read-state": {
            "put": {
                "tags": ["Contacts"],
                "summary": "Mark a message read or unread",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReadStateRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/contacts/export": {
            "get": {
                "tags": ["Contacts"],
                "summary": "Export a student's contact log",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File", "schema": {"type": "file"}}}
            }
        },
        "/calendar": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Upcoming events",
                "parameters": [{"name": "from", "in": "query", "type": "string", "format": "date"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Add an event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEventRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/calendar/import": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Import events from an iCalendar file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "target_classes", "in": "formData", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/calendar.ics": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Calendar feed",
                "produces": ["text/calendar"],
                "responses": {"200": {"description": "iCalendar", "schema": {"type": "file"}}}
            }
        },
        "/memos": {
            "get": {
                "tags": ["Memos"],
                "summary": "Support memos of reachable students",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/memos/{student_id}": {
            "get": {
                "tags": ["Memos"],
                "summary": "Support memo of one student",
                "parameters": [{"name": "student_id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Memos"],
                "summary": "Create or replace a support memo",
                "parameters": [
                    {"name": "student_id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveMemoRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Contact book summary",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/attachments": {
            "post": {
                "tags": ["Attachments"],
                "summary": "Upload an attachment",
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "file", "in": "formData", "required": true, "type": "file"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/attachments/{token}": {
            "get": {
                "tags": ["Attachments"],
                "summary": "Download an attachment",
                "security": [],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "student_id": {"type": "string"}
            }
        },
        "SwitchStudentRequest": {
            "type": "object",
            "required": ["student_id"],
            "properties": {"student_id": {"type": "string"}}
        },
        "ChangePasswordRequest": {
            "type": "object",
            "required": ["old_password", "new_password"],
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string", "minLength": 8}
            }
        },
        "SendIndividualRequest": {
            "type": "object",
            "required": ["student_id", "message"],
            "properties": {
                "student_id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "message": {"type": "string"},
                "items_notice": {"type": "string"},
                "remarks": {"type": "string"},
                "attachment_path": {"type": "string"}
            }
        },
        "SendBroadcastRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {
                "date": {"type": "string", "format": "date"},
                "message": {"type": "string"},
                "items_notice": {"type": "string"},
                "attachment_path": {"type": "string"}
            }
        },
        "ReplyRequest": {
            "type": "object",
            "required": ["reply"],
            "properties": {
                "reply": {"type": "string"},
                "attachment_path": {"type": "string"}
            }
        },
        "ReadStateRequest": {
            "type": "object",
            "required": ["read_state"],
            "properties": {"read_state": {"type": "string", "enum": ["unread", "read"]}}
        },
        "CreateEventRequest": {
            "type": "object",
            "required": ["event_date", "name"],
            "properties": {
                "event_date": {"type": "string", "format": "date"},
                "name": {"type": "string", "maxLength": 200},
                "description": {"type": "string"},
                "target_classes": {"type": "array", "items": {"type": "string"}},
                "attachment_path": {"type": "string"}
            }
        },
        "SaveMemoRequest": {
            "type": "object",
            "properties": {"content": {"type": "string"}}
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
