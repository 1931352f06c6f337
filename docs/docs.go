// Package docs holds the OpenAPI document served at /api/swagger. It mirrors
// the swag annotations on the server handlers; regenerate with
// `swag init -g cmd/server/main.go` after changing them.
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
        "/auth/register": {
            "post": {
                "description": "Create an unverified account and return its email verification token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register",
                "parameters": [
                    {"description": "Registration", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.RegisterResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "description": "Authenticate with email and password and return a bearer token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.AuthResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "403": {"description": "Email not verified", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/auth/verify": {
            "get": {
                "description": "Redeem an email verification token",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Verify email",
                "parameters": [
                    {"type": "string", "description": "Verification token", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/users/{id}/comments": {
            "get": {
                "description": "Newest comments by the user on posts that still exist",
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "User comments",
                "parameters": [
                    {"type": "integer", "description": "User ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/models.UserComment"}}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "User profile",
                "parameters": [
                    {"type": "integer", "description": "User ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.UserProfile"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts": {
            "get": {
                "description": "Newest or most reacted posts, optionally filtered by category and search text",
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "List posts",
                "parameters": [
                    {"type": "string", "description": "Category", "name": "category", "in": "query"},
                    {"type": "string", "description": "Search in title and body", "name": "search", "in": "query"},
                    {"type": "string", "description": "newest or popular", "name": "sort", "in": "query"},
                    {"type": "integer", "description": "Page, 1-based", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size, at most 100", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.PostPage"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Create post",
                "parameters": [
                    {"description": "Post", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.createPostRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Post"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}": {
            "get": {
                "description": "A post with media, counters and the reaction summary",
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Get post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.PostDetail"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Removes the post with its comments, reactions and media",
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Delete post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.CascadeResult"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/media/upload": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Attach an image (png, jpeg, webp) or a PDF to one of the caller's posts",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Upload media",
                "parameters": [
                    {"type": "file", "description": "File", "name": "file", "in": "formData", "required": true},
                    {"type": "integer", "description": "Post ID", "name": "post_id", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Media"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/comments/post/{postId}": {
            "get": {
                "description": "Top-level comments oldest first, each with its nested replies",
                "produces": ["application/json"],
                "tags": ["comments"],
                "summary": "Comment tree",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "postId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.CommentNode"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Adds a top-level comment, or a reply when parent_id is set",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["comments"],
                "summary": "Add comment",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "postId", "in": "path", "required": true},
                    {"description": "Comment", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.createCommentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Comment"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/reactions": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Idempotent: repeating a reaction leaves a single row",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reactions"],
                "summary": "Add reaction",
                "parameters": [
                    {"description": "Reaction", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.reactionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.ReactionResult"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.ReactionResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Newest first, at most 50",
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "List notifications",
                "parameters": [
                    {"type": "integer", "description": "At most 50", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.NotificationView"}}}
                }
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "models.User": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "verified": {"type": "boolean"}
            }
        },
        "models.UserComment": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "created_at": {"type": "string"},
                "id": {"type": "integer"},
                "post_id": {"type": "integer"},
                "post_title": {"type": "string"}
            }
        },
        "models.UserProfile": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "stats": {"type": "object", "properties": {"comments": {"type": "integer"}, "posts": {"type": "integer"}}}
            }
        },
        "models.Media": {
            "type": "object",
            "properties": {
                "height": {"type": "integer"},
                "id": {"type": "integer"},
                "mime": {"type": "string"},
                "post_id": {"type": "integer"},
                "size_bytes": {"type": "integer"},
                "thumbnail_url": {"type": "string"},
                "type": {"type": "string", "enum": ["image", "document"]},
                "url": {"type": "string"},
                "width": {"type": "integer"}
            }
        },
        "models.Post": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "comments_count": {"type": "integer"},
                "content_html": {"type": "string"},
                "content_md": {"type": "string"},
                "created_at": {"type": "string"},
                "edited_at": {"type": "string"},
                "id": {"type": "integer"},
                "media": {"type": "array", "items": {"$ref": "#/definitions/models.Media"}},
                "reactions_count": {"type": "integer"},
                "title": {"type": "string"},
                "user": {"$ref": "#/definitions/models.User"},
                "user_id": {"type": "integer"}
            }
        },
        "models.PostSummary": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "comments_count": {"type": "integer"},
                "cover_url": {"type": "string"},
                "created_at": {"type": "string"},
                "edited_at": {"type": "string"},
                "id": {"type": "integer"},
                "reactions_count": {"type": "integer"},
                "title": {"type": "string"},
                "user_id": {"type": "integer"},
                "user_name": {"type": "string"}
            }
        },
        "models.ReactionSummary": {
            "type": "object",
            "properties": {
                "counts": {"type": "object", "additionalProperties": {"type": "integer"}},
                "total": {"type": "integer"},
                "user_reactions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "models.Comment": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "created_at": {"type": "string"},
                "depth": {"type": "integer"},
                "edited_at": {"type": "string"},
                "id": {"type": "integer"},
                "parent_id": {"type": "integer"},
                "path": {"type": "array", "items": {"type": "integer"}},
                "post_id": {"type": "integer"},
                "user_id": {"type": "integer"}
            }
        },
        "models.CommentNode": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "created_at": {"type": "string"},
                "depth": {"type": "integer"},
                "id": {"type": "integer"},
                "is_deleted": {"type": "boolean"},
                "parent_id": {"type": "integer"},
                "path": {"type": "array", "items": {"type": "integer"}},
                "replies": {"type": "array", "items": {"$ref": "#/definitions/models.CommentNode"}},
                "user_id": {"type": "integer"}
            }
        },
        "models.NotificationView": {
            "type": "object",
            "properties": {
                "actor_id": {"type": "integer"},
                "actor_name": {"type": "string"},
                "comment_id": {"type": "integer"},
                "content": {"type": "string"},
                "created_at": {"type": "string"},
                "id": {"type": "integer"},
                "is_read": {"type": "boolean"},
                "post_id": {"type": "integer"},
                "type": {"type": "string", "enum": ["comment_reply", "post_reaction", "comment_reaction"]},
                "user_id": {"type": "integer"}
            }
        },
        "server.registerRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "server.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "server.createPostRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "category": {"type": "string"},
                "content": {"type": "string"},
                "title": {"type": "string"}
            }
        },
        "server.createCommentRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {
                "content": {"type": "string"},
                "parent_id": {"type": "integer"}
            }
        },
        "server.reactionRequest": {
            "type": "object",
            "properties": {
                "comment_id": {"type": "integer"},
                "post_id": {"type": "integer"},
                "type": {"type": "string", "enum": ["like", "helpful", "funny", "insightful", "celebrate"]}
            }
        },
        "service.AuthResult": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/models.User"}
            }
        },
        "service.RegisterResult": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "user": {"$ref": "#/definitions/models.User"},
                "verification_token": {"type": "string"}
            }
        },
        "service.PostDetail": {
            "allOf": [
                {"$ref": "#/definitions/models.Post"},
                {"type": "object", "properties": {"reactions": {"$ref": "#/definitions/models.ReactionSummary"}}}
            ]
        },
        "service.PostPage": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "page": {"type": "integer"},
                "posts": {"type": "array", "items": {"$ref": "#/definitions/models.PostSummary"}},
                "total": {"type": "integer"}
            }
        },
        "service.CascadeResult": {
            "type": "object",
            "properties": {
                "comments_deleted": {"type": "integer"},
                "media_deleted": {"type": "integer"},
                "notifications_detached": {"type": "integer"},
                "post_id": {"type": "integer"},
                "reactions_deleted": {"type": "integer"}
            }
        },
        "service.ReactionResult": {
            "type": "object",
            "properties": {
                "applied": {"type": "boolean"},
                "target": {"type": "object", "properties": {"id": {"type": "integer"}, "type": {"type": "string"}}},
                "type": {"type": "string"}
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
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Campus Feed API",
	Description:      "Posts, threaded comments, reactions and notifications for a campus community.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
