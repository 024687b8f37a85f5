// Package docs serves the OpenAPI description of the assembly HTTP API.
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
        "/v1/bills": {
            "get": {
                "produces": ["application/json"],
                "tags": ["bills"],
                "summary": "List bills, optionally filtered by status",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BillListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["bills"],
                "summary": "Submit a bill",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "X-User-Role", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitBillRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed", "schema": {"$ref": "#/definitions/BillResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/BillResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/bills/{bill_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["bills"],
                "summary": "Get a bill with its votes",
                "parameters": [
                    {"type": "string", "name": "bill_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BillResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/bills/{bill_id}/conference-review": {
            "post": {
                "tags": ["conference"],
                "summary": "Put a submitted bill under conference review",
                "parameters": [
                    {"type": "string", "name": "bill_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BillResponse"}},
                    "422": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/bills/{bill_id}/conference-decision": {
            "post": {
                "tags": ["conference"],
                "summary": "Validate or declass a bill",
                "parameters": [
                    {"type": "string", "name": "bill_id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConferenceDecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BillResponse"}},
                    "422": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/bills/{bill_id}/analysis": {
            "post": {
                "tags": ["study-bureau"],
                "summary": "Record the study bureau analysis",
                "parameters": [
                    {"type": "string", "name": "bill_id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnalysisRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BillResponse"}}
                }
            }
        },
        "/v1/bills/{bill_id}/schedule": {
            "post": {
                "tags": ["plenary"],
                "summary": "Schedule an analysed bill for plenary",
                "parameters": [
                    {"type": "string", "name": "bill_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BillResponse"}}
                }
            }
        },
        "/v1/members": {
            "get": {
                "tags": ["members"],
                "summary": "List the roster with bills proposed and votes cast",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MemberListResponse"}}
                }
            }
        },
        "/v1/members/{member_id}/bills": {
            "get": {
                "tags": ["bills"],
                "summary": "List bills proposed by a member",
                "parameters": [
                    {"type": "string", "name": "member_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BillListResponse"}}
                }
            }
        },
        "/v1/plenary/session": {
            "get": {
                "tags": ["plenary"],
                "summary": "Current plenary session state",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SessionStateResponse"}}
                }
            }
        },
        "/v1/plenary/sessions": {
            "post": {
                "tags": ["plenary"],
                "summary": "Open the plenary session for a scheduled bill",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OpenSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/OpenSessionResponse"}},
                    "409": {"description": "Session already active", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/plenary/sessions/{bill_id}/votes": {
            "post": {
                "tags": ["plenary"],
                "summary": "Cast or replace a vote",
                "parameters": [
                    {"type": "string", "name": "bill_id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CastVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/VoteResponse"}},
                    "412": {"description": "No matching session", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/plenary/sessions/{bill_id}/close": {
            "post": {
                "tags": ["plenary"],
                "summary": "Close the session and record the result",
                "parameters": [
                    {"type": "string", "name": "bill_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CloseSessionResponse"}},
                    "412": {"description": "No matching session", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/stats": {
            "get": {
                "tags": ["stats"],
                "summary": "Legislative statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/StatsResponse"}}
                }
            }
        },
        "/v1/notifications": {
            "get": {
                "tags": ["notifications"],
                "summary": "List notifications for the caller",
                "parameters": [
                    {"type": "boolean", "name": "unread", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/NotificationListResponse"}}
                }
            }
        },
        "/v1/notifications/{notification_id}/read": {
            "post": {
                "tags": ["notifications"],
                "summary": "Mark a notification read",
                "parameters": [
                    {"type": "string", "name": "notification_id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/v1/convocations": {
            "post": {
                "tags": ["notifications"],
                "summary": "Send a convocation",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConvocationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/NotificationListResponse"}}
                }
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "SubmitBillRequest": {
            "type": "object",
            "properties": {
                "subject": {"type": "string"},
                "code": {"type": "string"},
                "rationale": {"type": "string"},
                "attachment": {"type": "string"}
            }
        },
        "ConferenceDecisionRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["validate", "declass"]},
                "observations": {"type": "string"}
            }
        },
        "AnalysisRequest": {
            "type": "object",
            "properties": {
                "legally_correct": {"type": "boolean"},
                "original": {"type": "boolean"},
                "fund_analysis": {"type": "string"},
                "form_analysis": {"type": "string"},
                "observations": {"type": "string"}
            }
        },
        "OpenSessionRequest": {
            "type": "object",
            "properties": {
                "bill_id": {"type": "string"}
            }
        },
        "CastVoteRequest": {
            "type": "object",
            "properties": {
                "value": {"type": "string", "enum": ["yes", "no", "abstain"]}
            }
        },
        "ConvocationRequest": {
            "type": "object",
            "properties": {
                "recipient_ids": {"type": "array", "items": {"type": "string"}},
                "kind": {"type": "string"},
                "title": {"type": "string"},
                "message": {"type": "string"},
                "bill_id": {"type": "string"},
                "meeting_date": {"type": "string", "format": "date-time"}
            }
        },
        "BillResponse": {"type": "object"},
        "BillListResponse": {"type": "object"},
        "VoteResponse": {"type": "object"},
        "SessionStateResponse": {"type": "object"},
        "OpenSessionResponse": {"type": "object"},
        "CloseSessionResponse": {"type": "object"},
        "StatsResponse": {"type": "object"},
        "MemberResponse": {
            "type": "object",
            "properties": {
                "member_id": {"type": "string"},
                "display_name": {"type": "string"},
                "role": {"type": "string"},
                "constituency": {"type": "string"},
                "active": {"type": "boolean"},
                "bills_proposed": {"type": "integer"},
                "votes_cast": {"type": "integer"}
            }
        },
        "MemberListResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/MemberResponse"}}
            }
        },
        "NotificationListResponse": {"type": "object"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Assembly legislative workflow API",
	Description:      "Bill lifecycle, conference review, study bureau analysis and plenary voting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
