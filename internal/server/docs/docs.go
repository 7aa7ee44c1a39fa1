// Package docs registers the OpenAPI document served at /docs.
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
        "/api/v1/classify": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["classify"],
                "summary": "Classify text as AI-generated or human-written",
                "parameters": [
                    {
                        "description": "Text to analyze",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/server.ClassifyRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/detect.Prediction"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/api/v1/info": {
            "get": {
                "produces": ["application/json"],
                "tags": ["classify"],
                "summary": "Loaded model information",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/detect.Info"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "detect.Info": {
            "type": "object",
            "properties": {
                "backend": {"type": "string"},
                "max_seq_len": {"type": "integer"},
                "vocab_size": {"type": "integer"}
            }
        },
        "detect.Prediction": {
            "type": "object",
            "properties": {
                "confidence": {"type": "number"},
                "label": {"type": "string"},
                "probability": {"type": "number"},
                "stats": {"$ref": "#/definitions/detect.Stats"}
            }
        },
        "detect.Stats": {
            "type": "object",
            "properties": {
                "short_text": {"type": "boolean"},
                "tokens": {"type": "integer"},
                "truncated": {"type": "boolean"},
                "unknown_tokens": {"type": "integer"},
                "word_count": {"type": "integer"}
            }
        },
        "server.ClassifyRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string", "example": "Paste the text to analyze here."}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "server.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "version": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "aidetect API",
	Description:      "Classifies text as AI-generated or human-written.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
