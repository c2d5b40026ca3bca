// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g internal/api/server.go -o internal/api/docs
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/documents/upload": {
            "post": {
                "description": "Saves the file and enqueues a background ingestion task.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "summary": "Upload a PDF for ingestion",
                "parameters": [
                    {"type": "file", "description": "PDF document", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.UploadResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/chat/ask": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Answer a question from the indexed documents",
                "parameters": [
                    {"description": "question", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.AskRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.AskResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/chat/search": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Similarity search without generation",
                "parameters": [
                    {"description": "query and optional top_k (default 3)", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.SearchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/tasks": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Submit the echo test task",
                "parameters": [
                    {"description": "name to greet", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.TaskRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.TaskSubmitted"}}
                }
            }
        },
        "/tasks/{id}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Task state by id",
                "parameters": [
                    {"type": "string", "description": "task id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/tasks.Task"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.AskRequest": {
            "type": "object",
            "properties": {"query": {"type": "string"}}
        },
        "api.AskResponse": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "source_documents": {"type": "array", "items": {"type": "string"}}
            }
        },
        "api.SearchRequest": {
            "type": "object",
            "properties": {
                "query": {"type": "string"},
                "top_k": {"type": "integer"}
            }
        },
        "api.SearchResult": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "metadata": {"type": "object", "additionalProperties": {}},
                "similarity_score": {"type": "number"}
            }
        },
        "api.SearchResponse": {
            "type": "object",
            "properties": {
                "results": {"type": "array", "items": {"$ref": "#/definitions/api.SearchResult"}}
            }
        },
        "api.UploadResponse": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "file_path": {"type": "string"},
                "status": {"type": "string"},
                "task_id": {"type": "string"}
            }
        },
        "api.TaskRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}}
        },
        "api.TaskSubmitted": {
            "type": "object",
            "properties": {
                "task_id": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "api.errorResponse": {
            "type": "object",
            "properties": {"detail": {"type": "string"}}
        },
        "tasks.Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "kind": {"type": "string"},
                "payload": {"type": "object", "additionalProperties": {"type": "string"}},
                "status": {"type": "string"},
                "result": {"type": "string"},
                "error": {"type": "string"},
                "created_at": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "RAG Backend API",
	Description:      "Upload PDFs, then ask questions answered from their content.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
