package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Substitute Assignment API",
        "description": "Assigns substitute teachers to the classes of absent teachers.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Substitutions", "description": "Assignment runs, results and audits"},
        {"name": "Teachers", "description": "Canonical teacher registry"}
    ],
    "paths": {
        "/substitutions/runs": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Run substitute assignment for a date",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RunRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Another run for the date is in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Timetable or absentees unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Source file could not be parsed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/{date}": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List persisted assignments of a date",
                "parameters": [
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/{date}/verification": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Audit the persisted assignments of a date",
                "parameters": [
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/{date}/export": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Download the assignment sheet of a date",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Rendered sheet", "schema": {"type": "file"}},
                    "404": {"description": "No assignments recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/{date}/runs": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List the run history of a date",
                "parameters": [
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List canonical teachers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "summary": "JSON metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Absentee": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "phoneNumber": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "RunRequest": {
            "type": "object",
            "required": ["date"],
            "properties": {
                "date": {"type": "string", "format": "date"},
                "absentees": {"type": "array", "items": {"$ref": "#/definitions/Absentee"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
