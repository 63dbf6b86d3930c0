// Package docs holds the OpenAPI document served by the swagger build of the
// server. Regenerate with `swag init -g cmd/ox/docs.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/completions": {
            "post": {
                "description": "OpenAI-compatible text completion. With stream=true the response is a server-sent event stream of text_completion chunks terminated by [DONE].",
                "consumes": ["application/json"],
                "produces": ["application/json", "text/event-stream"],
                "tags": ["completions"],
                "summary": "Create a completion",
                "parameters": [
                    {
                        "description": "Completion request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.CompletionRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Completion"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/chat/completions": {
            "post": {
                "description": "Renders the messages with the configured prompt template and completes the assistant turn.",
                "consumes": ["application/json"],
                "produces": ["application/json", "text/event-stream"],
                "tags": ["completions"],
                "summary": "Create a chat completion",
                "parameters": [
                    {
                        "description": "Chat request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.ChatCompletionRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ChatCompletion"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/infer": {
            "post": {
                "description": "Streams {\"token\": ...} lines followed by a final {\"done\": true, ...} line.",
                "consumes": ["application/json"],
                "produces": ["application/x-ndjson"],
                "tags": ["completions"],
                "summary": "Stream tokens as NDJSON",
                "parameters": [
                    {
                        "description": "Inference request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.InferRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InferDone"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ChatMessage": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "example": "user"},
                "content": {"type": "string", "example": "Summarize this diff."}
            }
        },
        "types.CompletionRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "commit-ngram"},
                "prompt": {"type": "string", "example": "Write a haiku about the ocean."},
                "stream": {"type": "boolean", "example": true},
                "max_tokens": {"type": "integer", "example": 128},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.9},
                "repetition_penalty": {"type": "number", "example": 1.1},
                "repeat_last_n": {"type": "integer", "example": 64},
                "seed": {"type": "integer", "example": 42},
                "stop": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.ChatCompletionRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "commit-ngram"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/types.ChatMessage"}},
                "stream": {"type": "boolean", "example": false},
                "max_tokens": {"type": "integer", "example": 128},
                "temperature": {"type": "number", "example": 0.7},
                "stop": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.InferRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "commit-ngram"},
                "prompt": {"type": "string", "example": "Write a haiku about the ocean."},
                "max_tokens": {"type": "integer", "example": 128}
            }
        },
        "types.Usage": {
            "type": "object",
            "properties": {
                "prompt_tokens": {"type": "integer", "example": 12},
                "completion_tokens": {"type": "integer", "example": 40},
                "total_tokens": {"type": "integer", "example": 52}
            }
        },
        "types.CompletionChoice": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "index": {"type": "integer"},
                "logprobs": {},
                "finish_reason": {"type": "string"}
            }
        },
        "types.Completion": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "cmpl-2f0c1f4e-6b1a-4c43-9f6e-0d5c0d1b7a11"},
                "object": {"type": "string", "example": "text_completion"},
                "created": {"type": "integer", "example": 1700000000},
                "model": {"type": "string"},
                "choices": {"type": "array", "items": {"$ref": "#/definitions/types.CompletionChoice"}},
                "usage": {"$ref": "#/definitions/types.Usage"}
            }
        },
        "types.ChatChoice": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "message": {"$ref": "#/definitions/types.ChatMessage"},
                "finish_reason": {"type": "string"}
            }
        },
        "types.ChatCompletion": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "object": {"type": "string", "example": "chat.completion"},
                "created": {"type": "integer"},
                "model": {"type": "string"},
                "choices": {"type": "array", "items": {"$ref": "#/definitions/types.ChatChoice"}},
                "usage": {"$ref": "#/definitions/types.Usage"}
            }
        },
        "types.InferDone": {
            "type": "object",
            "properties": {
                "done": {"type": "boolean", "example": true},
                "finish_reason": {"type": "string", "example": "stop"},
                "usage": {"$ref": "#/definitions/types.Usage"},
                "error": {"$ref": "#/definitions/types.ErrorDetail"}
            }
        },
        "types.ModelCard": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "commit-ngram"},
                "object": {"type": "string", "example": "model"},
                "created": {"type": "integer", "example": 1700000000},
                "owned_by": {"type": "string", "example": "oxpilot"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "object": {"type": "string", "example": "list"},
                "data": {"type": "array", "items": {"$ref": "#/definitions/types.ModelCard"}}
            }
        },
        "types.ErrorDetail": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "invalid JSON body"},
                "type": {"type": "string", "example": "invalid_request_error"},
                "code": {"type": "integer", "example": 400}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/types.ErrorDetail"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "oxpilot API",
	Description:      "OpenAI-compatible local inference server with streaming completions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
