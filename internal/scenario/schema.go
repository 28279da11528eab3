package scenario

// schemaJSON is the JSON Schema a scenario document must satisfy before it
// is accepted as a validated, read-only configuration object. Field names
// match the YAML tags on pkg/types.Scenario.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "topic", "speakingOrder", "participants"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "topic": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "speakingOrder": {
      "type": "string",
      "enum": ["round_robin", "free", "moderated", "priority"]
    },
    "maxRounds": {"type": "integer", "minimum": 0},
    "turnTimeoutSec": {"type": "integer", "minimum": 0},
    "schedule": {"type": "string"},
    "outline": {"type": "boolean"},
    "judge": {"type": "boolean"},
    "summary": {"type": "boolean"},
    "allowInterrupt": {"type": "boolean"},
    "maxIdleRounds": {"type": "integer", "minimum": 0},
    "phases": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "speakingOrder": {
            "type": "string",
            "enum": ["round_robin", "free", "moderated", "priority"]
          },
          "allowInterrupt": {"type": "boolean"},
          "maxRounds": {"type": "integer", "minimum": 0}
        }
      }
    },
    "moderator": {
      "type": "object",
      "properties": {
        "interventionLevel": {"type": "integer", "minimum": 0, "maximum": 3},
        "turnTimeoutSec": {"type": "integer", "minimum": 0}
      }
    },
    "participants": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "providerID", "modelID"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "role": {"type": "string"},
          "systemPrompt": {"type": "string"},
          "providerID": {"type": "string", "minLength": 1},
          "modelID": {"type": "string", "minLength": 1},
          "temperature": {"type": "number", "minimum": 0, "maximum": 2},
          "topP": {"type": "number", "minimum": 0, "maximum": 1},
          "maxContextEvents": {"type": "integer", "minimum": 0},
          "autoParticipate": {"type": "boolean"}
        }
      }
    }
  }
}`
