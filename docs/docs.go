// Package docs holds the swagger document served under /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register an account",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ports.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ports.AuthResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Log in",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ports.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.AuthResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Current account",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entities.User"}}
                }
            }
        },
        "/users/me/password": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Change password",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ports.ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/tasks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "List tasks in display order",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "filter", "type": "string", "description": "all, doing or done"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.TaskListResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Create a task at the top of the unpinned block",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ports.CreateTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ports.WriteResult"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/tasks/resequence": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Renumber the list to 1..n",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Update task content",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ports.UpdateTaskRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Delete a task",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/move/{newPosition}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Move a task to a new slot",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "newPosition", "type": "integer", "required": true, "description": "1-based slot"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/move-by/{step}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Move a task up or down",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "step", "type": "integer", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/pin": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Toggle a task's pin",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/checklist": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["checklist"],
                "summary": "Replace a checklist",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ports.ChecklistWriteRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/checklist/mode": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["checklist"],
                "summary": "Switch checklist mode",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ports.ChecklistModeRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/items/{itemId}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["checklist"],
                "summary": "Edit a checklist item",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "itemId", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ports.ItemTextRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["checklist"],
                "summary": "Delete a checklist item",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "itemId", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/items/{itemId}/done": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["checklist"],
                "summary": "Toggle a checklist item",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "itemId", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/items/{itemId}/after": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["checklist"],
                "summary": "Insert a checklist item",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "itemId", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        },
        "/tasks/{id}/items/{itemId}/move/{newIndex}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["checklist"],
                "summary": "Move a checklist item",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "itemId", "type": "string", "required": true},
                    {"in": "path", "name": "newIndex", "type": "integer", "required": true, "description": "0-based index"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.WriteResult"}}}
            }
        }
    },
    "definitions": {
        "entities.ListItem": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "data": {"type": "string"},
                "done": {"type": "boolean"}
            }
        },
        "entities.Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "position": {"type": "integer"},
                "data": {"description": "text, or an array of checklist items"},
                "done": {"type": "boolean"},
                "pinned": {"type": "boolean"},
                "image": {"type": "string"}
            }
        },
        "entities.User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "http.TaskListResponse": {
            "type": "object",
            "properties": {
                "tasks": {"type": "array", "items": {"$ref": "#/definitions/entities.Task"}},
                "version": {"type": "integer"},
                "filter": {"type": "string"}
            }
        },
        "ports.AuthResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "expires_in": {"type": "integer"},
                "user": {"$ref": "#/definitions/entities.User"}
            }
        },
        "ports.ChecklistModeRequest": {
            "type": "object",
            "properties": {"checklist": {"type": "boolean"}}
        },
        "ports.ChecklistWriteRequest": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/entities.ListItem"}}}
        },
        "ports.CreateTaskRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "data": {"description": "text, or an array of checklist items"},
                "done": {"type": "boolean"},
                "pinned": {"type": "boolean"},
                "image": {"type": "string"}
            }
        },
        "ports.ItemTextRequest": {
            "type": "object",
            "properties": {"data": {"type": "string"}}
        },
        "ports.ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string"}
            }
        },
        "ports.LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ports.RegisterRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ports.UpdateTaskRequest": {
            "type": "object",
            "properties": {
                "data": {"description": "text, or an array of checklist items"},
                "done": {"type": "boolean"},
                "image": {"type": "string"}
            }
        },
        "ports.WriteResult": {
            "type": "object",
            "properties": {
                "changed": {"type": "boolean"},
                "version": {"type": "integer"},
                "position": {"type": "integer"},
                "task": {"$ref": "#/definitions/entities.Task"},
                "at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
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
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "TaskList API",
	Description:      "Ordered personal task lists with pinning and checklists",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
