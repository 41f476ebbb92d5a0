package validation

// MatchResponseSchema describes the reconcile "queries" reply:
// {"0": {"result": [{"id": "...", "score": 98.0, ...}]}, ...}
const MatchResponseSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["result"],
    "properties": {
      "result": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["id", "score"],
          "properties": {
            "id": {"type": ["string", "number"]},
            "score": {"type": "number"}
          }
        }
      }
    }
  }
}`

// ExtendResponseSchema describes the reconcile "extend" reply:
// {"rows": {"<id>": {"<column>": [{"str": "..."}]}}}
const ExtendResponseSchema = `{
  "type": "object",
  "required": ["rows"],
  "properties": {
    "rows": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {
          "type": "array",
          "items": {"type": "object"}
        }
      }
    }
  }
}`

// RunRequestSchema describes the JSON body accepted by POST /api/runs.
const RunRequestSchema = `{
  "type": "object",
  "required": ["text"],
  "additionalProperties": false,
  "properties": {
    "text": {"type": "string", "minLength": 1}
  }
}`

// JobInputSchema describes reconcile-species-names job variables.
const JobInputSchema = `{
  "type": "object",
  "anyOf": [
    {"required": ["text"]},
    {"required": ["names"]}
  ],
  "properties": {
    "text": {"type": "string"},
    "names": {"type": "array", "items": {"type": "string"}}
  }
}`

var (
	MatchResponse  = MustCompile("match-response", MatchResponseSchema)
	ExtendResponse = MustCompile("extend-response", ExtendResponseSchema)
	RunRequest     = MustCompile("run-request", RunRequestSchema)
	JobInput       = MustCompile("job-input", JobInputSchema)
)
