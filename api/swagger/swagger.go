package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Enrollment API",
        "description": "Course section allocation, waitlists and schedule change approvals",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Enrollments",
            "description": "Seat requests and allocation"
        },
        {
            "name": "Sections",
            "description": "Sections, capacity and rosters"
        },
        {
            "name": "ScheduleChanges",
            "description": "Add, drop and swap approvals"
        },
        {
            "name": "Calendar",
            "description": "Grading periods and meeting windows"
        },
        {
            "name": "Health",
            "description": "Probes"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Liveness probe",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Readiness probe",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "Dependency unavailable"
                    }
                }
            }
        },
        "/api/v1/enrollments": {
            "post": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Request a seat in a course",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Open request or seat already exists",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitEnrollmentRequest"
                        }
                    }
                ]
            },
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "List enrollment requests",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "studentId",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "courseId",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "sectionId",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "status",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "pageSize",
                        "type": "integer",
                        "required": false
                    }
                ]
            }
        },
        "/api/v1/enrollments/allocate": {
            "post": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Run seat allocation",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "202": {
                        "description": "Queued",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AllocateEnrollmentRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Get an enrollment request",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment request ID"
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}/withdraw": {
            "post": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Withdraw an enrollment request",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment request ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/WithdrawEnrollmentRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/sections": {
            "post": {
                "tags": [
                    "Sections"
                ],
                "summary": "Open a section",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateSectionRequest"
                        }
                    }
                ]
            },
            "get": {
                "tags": [
                    "Sections"
                ],
                "summary": "List sections",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "courseId",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "gradingPeriodId",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "pageSize",
                        "type": "integer",
                        "required": false
                    }
                ]
            }
        },
        "/api/v1/sections/{id}": {
            "get": {
                "tags": [
                    "Sections"
                ],
                "summary": "Get a section",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Section ID"
                    }
                ]
            }
        },
        "/api/v1/sections/{id}/roster": {
            "get": {
                "tags": [
                    "Sections"
                ],
                "summary": "Seated students and waitlist",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Section ID"
                    }
                ]
            }
        },
        "/api/v1/sections/{id}/timers": {
            "get": {
                "tags": [
                    "Calendar"
                ],
                "summary": "Meeting windows of a section",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Section ID"
                    }
                ]
            }
        },
        "/api/v1/sections/{id}/capacity": {
            "put": {
                "tags": [
                    "Sections"
                ],
                "summary": "Change a section's seat limit",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Below seated count",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Section ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateCapacityRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/sections/{id}/drop": {
            "post": {
                "tags": [
                    "Sections"
                ],
                "summary": "Give up a seat",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Section ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DropSeatRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/schedule-changes": {
            "post": {
                "tags": [
                    "ScheduleChanges"
                ],
                "summary": "Submit a schedule change",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitScheduleChangeRequest"
                        }
                    }
                ]
            },
            "get": {
                "tags": [
                    "ScheduleChanges"
                ],
                "summary": "List schedule changes",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "studentId",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "status",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "type",
                        "type": "string",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "overdue",
                        "type": "boolean",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "limit",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "in": "query",
                        "name": "offset",
                        "type": "integer",
                        "required": false
                    }
                ]
            }
        },
        "/api/v1/schedule-changes/sweep": {
            "post": {
                "tags": [
                    "ScheduleChanges"
                ],
                "summary": "Flag overdue schedule changes now",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/schedule-changes/{id}": {
            "get": {
                "tags": [
                    "ScheduleChanges"
                ],
                "summary": "Get a schedule change",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Schedule change ID"
                    }
                ]
            }
        },
        "/api/v1/schedule-changes/{id}/review": {
            "post": {
                "tags": [
                    "ScheduleChanges"
                ],
                "summary": "Approve or deny a schedule change",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Not pending or conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Schedule change ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReviewScheduleChangeRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/schedule-changes/{id}/cancel": {
            "post": {
                "tags": [
                    "ScheduleChanges"
                ],
                "summary": "Cancel a pending schedule change",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Schedule change ID"
                    }
                ]
            }
        },
        "/api/v1/calendar/grading-periods": {
            "post": {
                "tags": [
                    "Calendar"
                ],
                "summary": "Create a grading period",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateGradingPeriodRequest"
                        }
                    }
                ]
            },
            "get": {
                "tags": [
                    "Calendar"
                ],
                "summary": "List grading periods",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "academicYear",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/api/v1/calendar/grading-periods/current": {
            "get": {
                "tags": [
                    "Calendar"
                ],
                "summary": "Grading period covering a date",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "academicYear",
                        "type": "string",
                        "required": true
                    },
                    {
                        "in": "query",
                        "name": "date",
                        "type": "string",
                        "required": false
                    }
                ]
            }
        },
        "/api/v1/calendar/period-timers": {
            "post": {
                "tags": [
                    "Calendar"
                ],
                "summary": "Add a meeting window to a section",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreatePeriodTimerRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/calendar/conflicts": {
            "post": {
                "tags": [
                    "Calendar"
                ],
                "summary": "Check a section against a student's schedule",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ConflictCheckRequest"
                        }
                    }
                ]
            }
        }
    },
    "definitions": {
        "SectionPreferenceInput": {
            "type": "object",
            "required": [
                "sectionId",
                "preferenceRank"
            ],
            "properties": {
                "sectionId": {
                    "type": "string"
                },
                "preferenceRank": {
                    "type": "integer"
                }
            }
        },
        "SubmitEnrollmentRequest": {
            "type": "object",
            "required": [
                "studentId",
                "courseId",
                "preferences"
            ],
            "properties": {
                "studentId": {
                    "type": "string"
                },
                "courseId": {
                    "type": "string"
                },
                "preferences": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/SectionPreferenceInput"
                    }
                },
                "priorityScore": {
                    "type": "number"
                }
            }
        },
        "AllocateEnrollmentRequest": {
            "type": "object",
            "properties": {
                "courseId": {
                    "type": "string"
                },
                "requestIds": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "async": {
                    "type": "boolean"
                }
            }
        },
        "WithdrawEnrollmentRequest": {
            "type": "object",
            "properties": {
                "reason": {
                    "type": "string"
                }
            }
        },
        "CreateSectionRequest": {
            "type": "object",
            "required": [
                "courseId",
                "gradingPeriodId",
                "name"
            ],
            "properties": {
                "courseId": {
                    "type": "string"
                },
                "gradingPeriodId": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "capacity": {
                    "type": "integer"
                }
            }
        },
        "UpdateCapacityRequest": {
            "type": "object",
            "properties": {
                "capacity": {
                    "type": "integer"
                }
            }
        },
        "DropSeatRequest": {
            "type": "object",
            "required": [
                "studentId"
            ],
            "properties": {
                "studentId": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "SubmitScheduleChangeRequest": {
            "type": "object",
            "required": [
                "studentId",
                "requestType",
                "reason"
            ],
            "properties": {
                "studentId": {
                    "type": "string"
                },
                "requestType": {
                    "type": "string",
                    "enum": [
                        "ADD",
                        "DROP",
                        "SWAP"
                    ]
                },
                "currentCourseId": {
                    "type": "string"
                },
                "currentSectionId": {
                    "type": "string"
                },
                "requestedCourseId": {
                    "type": "string"
                },
                "requestedSectionId": {
                    "type": "string"
                },
                "priorityLevel": {
                    "type": "string",
                    "enum": [
                        "LOW",
                        "NORMAL",
                        "HIGH",
                        "URGENT"
                    ]
                },
                "reason": {
                    "type": "string"
                },
                "gradingPeriodId": {
                    "type": "string"
                },
                "academicYear": {
                    "type": "string"
                }
            }
        },
        "ReviewScheduleChangeRequest": {
            "type": "object",
            "required": [
                "decision"
            ],
            "properties": {
                "decision": {
                    "type": "string",
                    "enum": [
                        "APPROVE",
                        "DENY"
                    ]
                },
                "notes": {
                    "type": "string"
                },
                "denialReason": {
                    "type": "string"
                }
            }
        },
        "CreateGradingPeriodRequest": {
            "type": "object",
            "required": [
                "academicYear",
                "name",
                "startDate",
                "endDate"
            ],
            "properties": {
                "academicYear": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "sequence": {
                    "type": "integer"
                },
                "startDate": {
                    "type": "string",
                    "format": "date"
                },
                "endDate": {
                    "type": "string",
                    "format": "date"
                }
            }
        },
        "CreatePeriodTimerRequest": {
            "type": "object",
            "required": [
                "sectionId",
                "startTime",
                "endTime",
                "daysOfWeek"
            ],
            "properties": {
                "sectionId": {
                    "type": "string"
                },
                "periodNumber": {
                    "type": "integer"
                },
                "startTime": {
                    "type": "string"
                },
                "endTime": {
                    "type": "string"
                },
                "daysOfWeek": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "attendanceOpensBefore": {
                    "type": "integer"
                },
                "attendanceClosesAfter": {
                    "type": "integer"
                }
            }
        },
        "ConflictCheckRequest": {
            "type": "object",
            "required": [
                "studentId",
                "sectionId"
            ],
            "properties": {
                "studentId": {
                    "type": "string"
                },
                "sectionId": {
                    "type": "string"
                },
                "dropSectionId": {
                    "type": "string"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
