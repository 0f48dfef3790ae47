// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/busgo/main.go` after changing handler
// annotations.
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
        "/login": {
            "post": {
                "summary": "Log in",
                "parameters": [
                    {"in": "body", "name": "req", "required": true, "schema": {"$ref": "#/definitions/httpgin.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.SessionResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/logout": {
            "post": {"summary": "Log out", "responses": {"204": {"description": "No Content"}}}
        },
        "/me": {
            "get": {
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.SessionResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/buses": {
            "get": {"summary": "List buses", "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}}
        },
        "/buses/search": {
            "get": {
                "summary": "Search buses",
                "parameters": [
                    {"type": "string", "name": "route", "in": "query"},
                    {"type": "string", "name": "date", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/buses/{id}": {
            "get": {
                "summary": "Get bus",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/buses/{id}/seatmap": {
            "get": {
                "summary": "Seat map",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "type", "in": "query"},
                    {"type": "string", "name": "selected", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/buses/{id}/events": {
            "get": {
                "summary": "Seat change stream",
                "produces": ["text/event-stream"],
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/booking-flows": {
            "post": {
                "summary": "Start a booking flow",
                "parameters": [
                    {"in": "body", "name": "req", "schema": {"$ref": "#/definitions/httpgin.StartFlowRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/httpgin.FlowResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/httpgin.FlowResponse"}}
                }
            }
        },
        "/booking-flows/{id}/submit": {
            "post": {
                "summary": "Submit the booking form",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.FlowResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/httpgin.FlowResponse"}}
                }
            }
        },
        "/booking-flows/{id}/confirm": {
            "post": {
                "summary": "Confirm payment",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.FlowResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/httpgin.FlowResponse"}}
                }
            }
        },
        "/bookings": {
            "get": {
                "summary": "List bookings",
                "parameters": [{"type": "string", "name": "status", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/bookings/{id}/cancel": {
            "post": {
                "summary": "Cancel booking",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "req", "required": true, "schema": {"$ref": "#/definitions/httpgin.CancelBookingRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/transfers": {
            "post": {
                "summary": "Transfer a booking",
                "responses": {"202": {"description": "Accepted"}, "501": {"description": "Not Implemented"}}
            }
        }
    },
    "definitions": {
        "httpgin.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "field": {"type": "string"}
            }
        },
        "httpgin.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "httpgin.SessionResponse": {
            "type": "object",
            "properties": {
                "user": {"type": "object"}
            }
        },
        "httpgin.StartFlowRequest": {
            "type": "object",
            "properties": {
                "busId": {"type": "integer"}
            }
        },
        "httpgin.CancelBookingRequest": {
            "type": "object",
            "properties": {
                "confirm": {"type": "boolean"}
            }
        },
        "httpgin.FlowResponse": {
            "type": "object",
            "properties": {
                "flow": {"type": "object"},
                "error": {"type": "string"},
                "field": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:3000",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "BusGo API",
	Description:      "Booking frontend for the bus ticket backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
