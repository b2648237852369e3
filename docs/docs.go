// Package docs is the Swagger 2.0 document for the order service. It follows
// the swag annotations on cmd/order-service; regenerate it with `go generate
// ./cmd/order-service` and keep TestSwaggerDocCoversRoutes green.
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
        "/orders": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List all orders (operators)",
                "parameters": [
                    {"type": "integer", "description": "page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.ListResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Creates a pending order from a cart snapshot. driver_id and actual_delivery_time must be null.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Create order",
                "parameters": [
                    {"description": "order", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.CreateOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/order.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/order.HTTPError"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/order.HTTPError"}}
                }
            }
        },
        "/orders/user/{user_id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List a buyer's orders",
                "parameters": [
                    {"type": "string", "description": "user id", "name": "user_id", "in": "path", "required": true},
                    {"type": "integer", "description": "page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.ListResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/order.HTTPError"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get order with items and status history",
                "parameters": [
                    {"type": "string", "description": "order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/order.HTTPError"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Status changes follow pending→accepted→delivered and pending→rejected; force=true confirms any other change. actual_delivery_time is only accepted for delivered orders. 409 also means the order changed since it was read.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Update status, comment or actual delivery time",
                "parameters": [
                    {"type": "string", "description": "order id", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "confirm a change outside the lifecycle", "name": "force", "in": "query"},
                    {"description": "changes", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.UpdateOrderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/order.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/order.HTTPError"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/order.HTTPError"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["orders"],
                "summary": "Delete order (no undo)",
                "parameters": [
                    {"type": "string", "description": "order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/order.HTTPError"}}
                }
            }
        },
        "/orders/{id}/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Order status history, oldest first",
                "parameters": [
                    {"type": "string", "description": "order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/order.StatusEvent"}}}}
                }
            }
        },
        "/orders/{id}/items": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Order line snapshots",
                "parameters": [
                    {"type": "string", "description": "order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/order.Item"}}}}
                }
            }
        }
    },
    "definitions": {
        "order.CreateOrderItem": {
            "type": "object",
            "properties": {
                "menu_item_id": {"type": "string"},
                "item_name": {"type": "string"},
                "quantity": {"type": "integer"},
                "price": {"type": "string"},
                "comment": {"type": "string"}
            }
        },
        "order.CreateOrderRequest": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "restaurant_id": {"type": "string"},
                "delivery_address_id": {"type": "string"},
                "driver_id": {"type": "string"},
                "price": {"type": "string"},
                "discount": {"type": "string"},
                "final_price": {"type": "string"},
                "comment": {"type": "string"},
                "status": {"type": "string"},
                "actual_delivery_time": {"type": "string"},
                "cart": {"type": "array", "items": {"$ref": "#/definitions/order.CreateOrderItem"}}
            }
        },
        "order.HTTPError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "order.Item": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "order_id": {"type": "string"},
                "menu_item_id": {"type": "string"},
                "item_name": {"type": "string"},
                "quantity": {"type": "integer"},
                "price": {"type": "string"},
                "comment": {"type": "string"}
            }
        },
        "order.ListResponse": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/order.Order"}}
            }
        },
        "order.Order": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "restaurant_id": {"type": "string"},
                "delivery_address_id": {"type": "string"},
                "driver_id": {"type": "string"},
                "price": {"type": "string"},
                "discount": {"type": "string"},
                "final_price": {"type": "string"},
                "comment": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "accepted", "delivered", "rejected"]},
                "actual_delivery_time": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "cart": {"type": "array", "items": {"$ref": "#/definitions/order.Item"}},
                "history": {"type": "array", "items": {"$ref": "#/definitions/order.StatusEvent"}}
            }
        },
        "order.StatusEvent": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "order.UpdateOrderRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "comment": {"type": "string"},
                "actual_delivery_time": {"type": "string"}
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
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Ordenes Restaurante - Order Service",
	Description:      "Restaurant order lifecycle API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
