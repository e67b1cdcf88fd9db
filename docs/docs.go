// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/api/main.go
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
        "/device/code": {
            "post": {
                "tags": ["Device"],
                "summary": "Start device pairing",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/device.Code"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/device/poll": {
            "post": {
                "tags": ["Device"],
                "summary": "Poll device pairing",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.DevicePollRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/device.PollResult"}},
                    "400": {"description": "expired_token", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}},
                    "429": {"description": "slow_down", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/device/complete": {
            "post": {
                "tags": ["Device"],
                "summary": "Complete device pairing",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.DeviceCompleteRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/device.CompleteResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/licenses/validate": {
            "post": {
                "tags": ["Licenses"],
                "summary": "Validate a license key",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LicenseKeyRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/license.Validation"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/license.Validation"}}
                }
            }
        },
        "/licenses/consume": {
            "post": {
                "tags": ["Licenses"],
                "summary": "Consume license quota",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LicenseKeyRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/license.Consumption"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/license.Consumption"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a trial account",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.RegisterResponse"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Log in with email and password",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.LoginResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/auth/google/url": {
            "get": {
                "tags": ["Auth"],
                "summary": "Identity provider consent URL",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.AuthURLResponse"}}}
            }
        },
        "/account": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Auth"],
                "summary": "Current account",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.AccountResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/billing/checkout": {
            "post": {
                "tags": ["Billing"],
                "summary": "Create checkout session",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.CheckoutRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/billing.CheckoutSession"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/webhooks/billing": {
            "post": {
                "tags": ["Billing"],
                "summary": "Payment provider webhook",
                "parameters": [{"in": "header", "name": "Stripe-Signature", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.WebhookResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "utils.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "message": {"type": "string"},
                "details": {}
            }
        },
        "device.Code": {
            "type": "object",
            "properties": {
                "deviceCode": {"type": "string"},
                "userCode": {"type": "string"},
                "verificationUrl": {"type": "string"},
                "expiresIn": {"type": "integer"},
                "interval": {"type": "integer"}
            }
        },
        "device.PollResult": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["pending", "complete", "expired"]},
                "email": {"type": "string"},
                "licenseKey": {"type": "string"},
                "tier": {"type": "string"}
            }
        },
        "device.CompleteResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "isNewUser": {"type": "boolean"}
            }
        },
        "dto.DevicePollRequest": {
            "type": "object",
            "required": ["deviceCode"],
            "properties": {"deviceCode": {"type": "string"}}
        },
        "dto.DeviceCompleteRequest": {
            "type": "object",
            "properties": {
                "userCode": {"type": "string"},
                "identityAuthorizationCode": {"type": "string"},
                "csrfState": {"type": "string"}
            }
        },
        "dto.LicenseKeyRequest": {
            "type": "object",
            "required": ["licenseKey"],
            "properties": {"licenseKey": {"type": "string"}}
        },
        "license.Validation": {
            "type": "object",
            "properties": {
                "valid": {"type": "boolean"},
                "status": {"type": "string"},
                "tier": {"type": "string"},
                "usage": {"type": "integer"},
                "limit": {"type": "integer"},
                "message": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "license.Consumption": {
            "type": "object",
            "properties": {
                "authorized": {"type": "boolean"},
                "usage": {"type": "integer"},
                "limit": {"type": "integer"},
                "remaining": {"type": "integer"},
                "unlimited": {"type": "boolean"},
                "message": {"type": "string"}
            }
        },
        "dto.RegisterRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "dto.RegisterResponse": {
            "type": "object",
            "properties": {
                "licenseKey": {"type": "string"},
                "status": {"type": "string"},
                "tier": {"type": "string"},
                "limit": {"type": "integer"},
                "token": {"type": "string"}
            }
        },
        "dto.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "dto.LoginResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "licenseKey": {"type": "string"}}
        },
        "dto.AuthURLResponse": {
            "type": "object",
            "properties": {"url": {"type": "string"}, "state": {"type": "string"}}
        },
        "dto.AccountResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "licenseKey": {"type": "string"},
                "status": {"type": "string"},
                "tier": {"type": "string"},
                "usage": {"type": "integer"},
                "limit": {"type": "integer"},
                "remaining": {"type": "integer"}
            }
        },
        "dto.CheckoutRequest": {
            "type": "object",
            "properties": {
                "licenseKey": {"type": "string"},
                "email": {"type": "string"},
                "tier": {"type": "string", "enum": ["free", "pro"]}
            }
        },
        "billing.CheckoutSession": {
            "type": "object",
            "properties": {"sessionId": {"type": "string"}, "url": {"type": "string"}}
        },
        "dto.WebhookResponse": {
            "type": "object",
            "properties": {"received": {"type": "boolean"}, "outcome": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Kybernus License API",
	Description:      "License validation, device pairing and billing reconciliation for the Kybernus CLI.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
