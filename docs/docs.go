// Package docs registers the OpenAPI 2.0 document served under /swagger/.
// It is maintained by hand alongside the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/admin/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "User statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/repository.UserStats"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login user",
                "parameters": [
                    {"description": "Login credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.AuthResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/auth/oauth/{provider}/callback": {
            "get": {
                "description": "Exchanges the authorization code, resolves the local account and returns an access token.\nWith a frontend redirect configured, answers 302 to it with access_token, token_type and expires_in (or error) in the fragment.",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Complete provider sign-in",
                "parameters": [
                    {"enum": ["google", "microsoft"], "type": "string", "description": "Identity provider", "name": "provider", "in": "path", "required": true},
                    {"type": "string", "description": "State issued by the start endpoint", "name": "state", "in": "query", "required": true},
                    {"type": "string", "description": "Authorization code", "name": "code", "in": "query"},
                    {"type": "string", "description": "Provider error", "name": "error", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.AuthResult"}},
                    "302": {"description": "Found"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/auth/oauth/{provider}/start": {
            "get": {
                "tags": ["auth"],
                "summary": "Begin provider sign-in",
                "parameters": [
                    {"enum": ["google", "microsoft"], "type": "string", "description": "Identity provider", "name": "provider", "in": "path", "required": true}
                ],
                "responses": {
                    "302": {"description": "Found"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "description": "Creates a password account with the \"user\" role and returns an access token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {"description": "Registration data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.AuthResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Profile"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/users/me/password": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["users"],
                "summary": "Set or change password",
                "parameters": [
                    {"description": "Passwords", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "handler.ChangePasswordRequest": {
            "type": "object",
            "required": ["new_password"],
            "properties": {
                "current_password": {"type": "string"},
                "new_password": {"type": "string"}
            }
        },
        "handler.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "ada@example.com"},
                "password": {"type": "string", "example": "correct horse"}
            }
        },
        "handler.RegisterRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "maxLength": 255, "example": "ada@example.com"},
                "password": {"type": "string", "example": "correct horse"}
            }
        },
        "model.PublicUser": {
            "type": "object",
            "properties": {
                "avatar_url": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "integer"},
                "role": {"type": "string", "enum": ["user", "admin", "super admin"]}
            }
        },
        "repository.UserStats": {
            "type": "object",
            "properties": {
                "active": {"type": "integer"},
                "by_provider": {"type": "object", "additionalProperties": {"type": "integer"}},
                "by_role": {"type": "object", "additionalProperties": {"type": "integer"}},
                "total": {"type": "integer"}
            }
        },
        "service.AuthResult": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "expires_in": {"type": "integer", "example": 3600},
                "token_type": {"type": "string", "example": "bearer"},
                "user": {"$ref": "#/definitions/model.PublicUser"}
            }
        },
        "service.Profile": {
            "type": "object",
            "properties": {
                "avatar_url": {"type": "string"},
                "email": {"type": "string"},
                "has_password": {"type": "boolean"},
                "id": {"type": "integer"},
                "is_active": {"type": "boolean"},
                "providers": {"type": "array", "items": {"type": "string"}},
                "role": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{"http"},
	Title:            "learnauth API",
	Description:      "Identity and access control: password and federated sign-in, bearer tokens, role checks.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
