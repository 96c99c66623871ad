// Package docs registers the OpenAPI document served at /swagger/doc.json.
// Keep it in step with the swag annotations on the handlers.
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
        "/predictions/game": {
            "get": {
                "description": "Winner probability, spread and total for one game. Completed games need allow_played=true and include the actual result.",
                "produces": ["application/json"],
                "tags": ["Predictions"],
                "summary": "Predict Game",
                "parameters": [
                    {"type": "string", "description": "Game ID", "name": "game_id", "in": "query", "required": true},
                    {"type": "boolean", "description": "Allow diagnostic predictions of completed games", "name": "allow_played", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MatchPrediction"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/predictions/week": {
            "get": {
                "description": "Per-game predictions for a season week. Games that cannot be predicted carry an error instead.",
                "produces": ["application/json"],
                "tags": ["Predictions"],
                "summary": "Predict Week",
                "parameters": [
                    {"type": "integer", "description": "Season", "name": "season", "in": "query", "required": true},
                    {"type": "integer", "description": "Week", "name": "week", "in": "query", "required": true},
                    {"type": "boolean", "description": "Include completed games", "name": "allow_played", "in": "query"},
                    {"type": "integer", "description": "Replay a past week: season", "name": "simulate_season", "in": "query"},
                    {"type": "integer", "description": "Replay a past week: week", "name": "simulate_week", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.WeekPredictions"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/predictions/model-info": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Predictions"],
                "summary": "Model Info",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ModelInfo"}}
                }
            }
        },
        "/predictions/feature-importance": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Predictions"],
                "summary": "Feature Importance",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.FeatureImportance"}}}
                }
            }
        },
        "/predictions/models/{version}/activate": {
            "post": {
                "security": [{"AdminToken": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Activate Model Version",
                "parameters": [
                    {"type": "string", "description": "Model version", "name": "version", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/predictions/reload": {
            "post": {
                "security": [{"AdminToken": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Reload Model",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/predictions/cache/clear": {
            "post": {
                "security": [{"AdminToken": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Clear Prediction Cache",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/system/install": {
            "post": {
                "security": [{"AdminToken": []}],
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Install Database Schema",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        }
    },
    "definitions": {
        "models.Prediction": {
            "type": "object",
            "properties": {
                "home_win_probability": {"type": "number"},
                "predicted_winner": {"type": "string"},
                "predicted_spread": {"type": "number"},
                "predicted_total": {"type": "number"},
                "predicted_home_score": {"type": "number"},
                "predicted_away_score": {"type": "number"},
                "confidence": {"type": "string", "enum": ["low", "medium", "high"]}
            }
        },
        "models.MatchPrediction": {
            "type": "object",
            "properties": {
                "match_id": {"type": "string"},
                "home_team": {"type": "string"},
                "away_team": {"type": "string"},
                "match_date": {"type": "string"},
                "prediction": {"$ref": "#/definitions/models.Prediction"},
                "model_version": {"type": "string"},
                "actual": {"$ref": "#/definitions/models.ActualResult"}
            }
        },
        "models.ActualResult": {
            "type": "object",
            "properties": {
                "home_score": {"type": "integer"},
                "away_score": {"type": "integer"},
                "winner": {"type": "string"},
                "spread": {"type": "integer"},
                "total": {"type": "integer"},
                "correct": {"type": "boolean"}
            }
        },
        "models.WeekEntry": {
            "type": "object",
            "properties": {
                "match_id": {"type": "string"},
                "home_team": {"type": "string"},
                "away_team": {"type": "string"},
                "match_date": {"type": "string"},
                "prediction": {"$ref": "#/definitions/models.Prediction"},
                "model_version": {"type": "string"},
                "actual": {"$ref": "#/definitions/models.ActualResult"},
                "error": {"type": "string"}
            }
        },
        "models.WeekPredictions": {
            "type": "object",
            "properties": {
                "season": {"type": "integer"},
                "week": {"type": "integer"},
                "count": {"type": "integer"},
                "predictions": {"type": "array", "items": {"$ref": "#/definitions/models.WeekEntry"}}
            }
        },
        "models.ModelInfo": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "message": {"type": "string"},
                "version": {"type": "string"},
                "training_seasons": {"type": "array", "items": {"type": "integer"}},
                "training_samples": {"type": "integer"}
            }
        },
        "models.FeatureImportance": {
            "type": "object",
            "properties": {
                "feature": {"type": "string"},
                "importance": {"type": "number"}
            }
        }
    },
    "securityDefinitions": {
        "AdminToken": {"type": "apiKey", "name": "X-Admin-Token", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Match Predictions API",
	Description:      "Winner probability, spread and total predictions for scheduled games.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
