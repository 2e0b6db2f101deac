// Package docs registers the penfeed OpenAPI description with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["feeds"],
                "summary": "Index feed, newest first, cached per page",
                "parameters": [{"type": "string", "name": "page", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/PostPage"}}}
            }
        },
        "/group/{slug}/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["feeds"],
                "summary": "Group feed",
                "parameters": [
                    {"type": "string", "name": "slug", "in": "path", "required": true},
                    {"type": "string", "name": "page", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/profile/{username}/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["feeds"],
                "summary": "Profile feed",
                "parameters": [
                    {"type": "string", "name": "username", "in": "path", "required": true},
                    {"type": "string", "name": "page", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/follow/": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["feeds"],
                "summary": "Posts by followed authors",
                "parameters": [{"type": "string", "name": "page", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/PostPage"}}, "302": {"description": "Login required"}}
            }
        },
        "/posts/{id}/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Post detail with comments",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/create/": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "multipart/form-data", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Create a post",
                "parameters": [{"name": "post", "in": "body", "schema": {"$ref": "#/definitions/PostRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Post"}}, "302": {"description": "Redirect"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/posts/{id}/edit/": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "multipart/form-data", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Edit a post (author only)",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "post", "in": "body", "schema": {"$ref": "#/definitions/PostRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Post"}}, "302": {"description": "Redirect"}, "404": {"description": "Not Found"}}
            }
        },
        "/posts/{id}/comment/": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Comment on a post",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "404": {"description": "Not Found"}}
            }
        },
        "/profile/{username}/follow/": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["follows"],
                "summary": "Follow an author",
                "parameters": [{"type": "string", "name": "username", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "302": {"description": "Redirect"}}
            }
        },
        "/profile/{username}/unfollow/": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["follows"],
                "summary": "Unfollow an author",
                "parameters": [{"type": "string", "name": "username", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "302": {"description": "Redirect"}}
            }
        },
        "/auth/login/": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign in with username or email",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/auth/signup/": {
            "post": {
                "tags": ["auth"],
                "summary": "Create an account",
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/cache/flush/": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["cache"],
                "summary": "Flush the response cache (staff only)",
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/groups/{slug}/": {
            "get": {
                "tags": ["groups"],
                "summary": "Get one group",
                "parameters": [{"name": "slug", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/features/": {
            "get": {
                "tags": ["features"],
                "summary": "Feature flags as seen by the caller",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "string"},
                "fields": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "PostRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "group": {"type": "integer"},
                "image": {"type": "string"}
            }
        },
        "Post": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "text": {"type": "string"},
                "created_at": {"type": "string"},
                "author_id": {"type": "integer"},
                "group_id": {"type": "integer"},
                "image": {"type": "string"}
            }
        },
        "PostPage": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/Post"}},
                "number": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "total_items": {"type": "integer"},
                "has_next": {"type": "boolean"},
                "has_previous": {"type": "boolean"}
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
	Host:             "localhost:8375",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "penfeed API",
	Description:      "Posts, groups, comments and follows with paged feeds.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
