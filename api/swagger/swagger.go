package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Hub Clearance API",
        "description": "Multi-stage student clearance approval workflow",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, tokens and password flows"},
        {"name": "Students", "description": "Student profile"},
        {"name": "Clearance", "description": "Request submission and status"},
        {"name": "Workflow", "description": "Staff approval queue and decisions"},
        {"name": "Certificates", "description": "Clearance certificate downloads"},
        {"name": "Administration", "description": "Types, schedules, roles and roster"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/clearance/types": {
            "get": {
                "tags": ["Clearance"],
                "summary": "List clearance types",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clearance/requests": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Submit clearance request",
                "responses": {
                    "201": {"description": "Request created"},
                    "403": {"description": "Schedule closed"},
                    "409": {"description": "Duplicate request"}
                }
            }
        },
        "/clearance/requests/status": {
            "get": {
                "tags": ["Clearance"],
                "summary": "Own request status",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clearance/requests/{id}/certificate": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Download certificate",
                "responses": {
                    "200": {"description": "PDF document"},
                    "403": {"description": "Not fully approved"}
                }
            }
        },
        "/staff/requests": {
            "get": {
                "tags": ["Workflow"],
                "summary": "Approval queue",
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "No staff role"}
                }
            }
        },
        "/staff/requests/{id}/decision": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Record a decision",
                "responses": {
                    "200": {"description": "Decision recorded"},
                    "403": {"description": "Not assigned or phase incomplete"},
                    "409": {"description": "Decision locked"}
                }
            }
        },
        "/admin/clearance-types": {
            "post": {
                "tags": ["Administration"],
                "summary": "Create clearance type",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Already exists"}
                }
            }
        },
        "/admin/schedules": {
            "put": {
                "tags": ["Administration"],
                "summary": "Set clearance schedule",
                "responses": {
                    "200": {"description": "Saved"}
                }
            }
        },
        "/admin/students/import": {
            "post": {
                "tags": ["Administration"],
                "summary": "Import students from CSV",
                "responses": {
                    "201": {"description": "Imported"},
                    "400": {"description": "Validation failed"}
                }
            }
        },
        "/admin/roles": {
            "post": {
                "tags": ["Administration"],
                "summary": "Assign workflow role",
                "responses": {
                    "201": {"description": "Assigned"}
                }
            }
        }
    },
    "definitions": {
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
