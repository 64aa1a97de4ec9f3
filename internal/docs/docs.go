// Package docs holds the OpenAPI document served at /swagger when
// SWAGGER_ENABLED is set. Regenerate with `swag init -g internal/http/router.go -o internal/docs`.
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
        "/countries": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Candidates"],
                "summary": "List configured countries",
                "operationId": "listCountries",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CountriesResponse"}}
                }
            }
        },
        "/candidates/queued": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Candidates"],
                "summary": "List queued candidates",
                "operationId": "listQueued",
                "parameters": [
                    {"type": "string", "example": "israel", "description": "Country code filter", "name": "country", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CandidateListResponse"}},
                    "400": {"description": "Unknown country", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/candidates/queued/count": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Candidates"],
                "summary": "Count queued candidates",
                "operationId": "countQueued",
                "parameters": [
                    {"type": "string", "example": "israel", "description": "Country code filter", "name": "country", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CountResponse"}},
                    "400": {"description": "Unknown country", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/candidates/next": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Candidates"],
                "summary": "Head of the queue",
                "operationId": "nextQueued",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Candidate"}},
                    "404": {"description": "Queue is empty", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/candidates/prayed": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Candidates"],
                "summary": "List prayed candidates",
                "operationId": "listPrayed",
                "parameters": [
                    {"type": "string", "example": "israel", "description": "Country code filter", "name": "country", "in": "query"},
                    {"type": "string", "description": "ETag from a previous response", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CandidateListResponse"}},
                    "304": {"description": "Not modified"},
                    "400": {"description": "Unknown country", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/candidates/prayed/count": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Candidates"],
                "summary": "Count prayed candidates",
                "operationId": "countPrayed",
                "parameters": [
                    {"type": "string", "example": "iran", "description": "Country code filter", "name": "country", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CountResponse"}},
                    "400": {"description": "Unknown country", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/candidates/prayed/search": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Candidates"],
                "summary": "Look up prayed candidates by name",
                "operationId": "searchPrayed",
                "parameters": [
                    {"type": "string", "example": "lapid", "description": "Name fragment", "name": "q", "in": "query", "required": true},
                    {"type": "string", "example": "israel", "description": "Country code filter", "name": "country", "in": "query"},
                    {"maximum": 20, "minimum": 1, "type": "integer", "default": 5, "description": "Max matches", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SearchResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/candidates/{id}/pray": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Transitions"],
                "summary": "Mark a candidate as prayed",
                "operationId": "markPrayed",
                "parameters": [
                    {"minimum": 1, "type": "integer", "description": "Candidate ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TransitionResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/candidates/{id}/put-back": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Transitions"],
                "summary": "Return a prayed candidate to the queue",
                "operationId": "putBack",
                "parameters": [
                    {"minimum": 1, "type": "integer", "description": "Candidate ID", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "Draw a new map cell", "name": "reassign_hex", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TransitionResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/candidates/put-back": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Transitions"],
                "summary": "Return a prayed candidate to the queue by identity",
                "operationId": "putBackByKey",
                "parameters": [
                    {"description": "Natural key of the candidate", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PutBackRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TransitionResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stats/summary": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Overall progress",
                "operationId": "statsSummary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Summary"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stats/{country}/parties": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Prayed candidates per party",
                "operationId": "statsParties",
                "parameters": [
                    {"type": "string", "example": "israel", "description": "Country code", "name": "country", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PartyStatsResponse"}},
                    "404": {"description": "Unknown country", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stats/{country}/timeline": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Prayed events, oldest first",
                "operationId": "statsTimeline",
                "parameters": [
                    {"type": "string", "example": "overall", "description": "Country code or overall", "name": "country", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TimelineResponse"}},
                    "404": {"description": "Unknown country", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/reseed": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Rebuild the queue from the rosters",
                "operationId": "adminReseed",
                "parameters": [
                    {"type": "string", "description": "Admin token (required when configured)", "name": "X-Admin-Token", "in": "header"},
                    {"type": "string", "example": "reseed-2024-05-01", "description": "Replay key", "name": "Idempotency-Key", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.ReseedOutcome"}},
                    "400": {"description": "Bad idempotency key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Reseed failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/purge": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Purge every candidate and reseed",
                "operationId": "adminPurge",
                "parameters": [
                    {"type": "string", "description": "Admin token (required when configured)", "name": "X-Admin-Token", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PurgeResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Purge or reseed failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Candidate": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "person_name": {"type": "string"},
                "post_label": {"type": "string"},
                "country_code": {"type": "string"},
                "party": {"type": "string"},
                "thumbnail": {"type": "string"},
                "status": {"type": "string", "enum": ["queued", "prayed"]},
                "status_timestamp": {"type": "string"},
                "initial_add_timestamp": {"type": "string"},
                "hex_id": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handlers.CandidateListResponse": {
            "type": "object",
            "properties": {
                "country": {"type": "string", "example": "israel"},
                "count": {"type": "integer", "example": 2},
                "candidates": {"type": "array", "items": {"$ref": "#/definitions/domain.Candidate"}}
            }
        },
        "handlers.CountResponse": {
            "type": "object",
            "properties": {
                "country": {"type": "string", "example": "iran"},
                "count": {"type": "integer", "example": 17}
            }
        },
        "handlers.CountriesResponse": {
            "type": "object",
            "properties": {
                "countries": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.SearchResponse": {
            "type": "object",
            "properties": {
                "query": {"type": "string", "example": "lapid"},
                "matches": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.TransitionResponse": {
            "type": "object",
            "properties": {
                "changed": {"type": "boolean", "example": true},
                "candidate": {"$ref": "#/definitions/domain.Candidate"}
            }
        },
        "handlers.PutBackRequest": {
            "type": "object",
            "required": ["person_name", "country_code"],
            "properties": {
                "person_name": {"type": "string", "example": "Yair Lapid"},
                "post_label": {"type": "string", "example": "Tel Aviv"},
                "country_code": {"type": "string", "example": "israel"},
                "reassign_hex": {"type": "boolean", "example": false}
            }
        },
        "handlers.PartyStatsResponse": {
            "type": "object",
            "properties": {
                "country": {"type": "string", "example": "israel"},
                "parties": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.TimelineResponse": {
            "type": "object",
            "properties": {
                "scope": {"type": "string", "example": "overall"},
                "entries": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.PurgeResponse": {
            "type": "object",
            "properties": {
                "deleted": {"type": "integer", "example": 410},
                "reseed": {"type": "object"}
            }
        },
        "services.Summary": {
            "type": "object",
            "properties": {
                "queued": {"type": "integer"},
                "prayed": {"type": "integer"},
                "remaining": {"type": "integer"},
                "countries": {"type": "array", "items": {"type": "object"}}
            }
        },
        "services.ReseedOutcome": {
            "type": "object",
            "properties": {
                "inserted": {"type": "integer"},
                "skipped": {"type": "integer"},
                "already_prayed": {"type": "integer"},
                "missing_name": {"type": "integer"},
                "removed": {"type": "integer"},
                "hex_unassigned": {"type": "integer"},
                "per_country": {"type": "object", "additionalProperties": {"type": "integer"}},
                "run_id": {"type": "string"},
                "replayed": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Prayer Queue API",
	Description:      "Queue of candidates to pray for, with map cell allocation and statistics.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
