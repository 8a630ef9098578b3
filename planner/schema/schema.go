// Package schema validates a recovered planner JSON object against the
// planning response's JSON Schema using
// github.com/santhosh-tekuri/jsonschema/v6.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// planningResponseSchema describes the shape the LLM must return for a
// planning call: one Step-shaped object, a confidence,
// a matchesGoal flag, a reasoning string, and optional validation objects.
const planningResponseSchema = `{
  "type": "object",
  "required": ["step", "confidence", "matchesGoal", "reasoning"],
  "properties": {
    "step": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {"type": "string", "enum": ["goto", "click", "type", "assert_page", "keypress", "tts_start", "tts_wait"]}
      }
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "matchesGoal": {"type": "boolean"},
    "reasoning": {"type": "string"},
    "stepValidation": {
      "type": "object",
      "properties": {
        "success": {"type": "boolean"},
        "reasoning": {"type": "string"}
      }
    },
    "goalValidation": {
      "type": "object",
      "properties": {
        "isComplete": {"type": "boolean"},
        "reasoning": {"type": "string"}
      }
    }
  }
}`

var (
	once   sync.Once
	compiled *jsonschema.Schema
	compileErr error
)

func planningSchema() (*jsonschema.Schema, error) {
	once.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(planningResponseSchema), &doc); err != nil {
			compileErr = fmt.Errorf("schema: unmarshal planning schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("planning-response.json", doc); err != nil {
			compileErr = fmt.Errorf("schema: add resource: %w", err)
			return
		}
		s, err := c.Compile("planning-response.json")
		if err != nil {
			compileErr = fmt.Errorf("schema: compile: %w", err)
			return
		}
		compiled = s
	})
	return compiled, compileErr
}

// ValidatePlanningResponse validates raw (a recovered JSON object) against
// the planning response schema.
func ValidatePlanningResponse(raw []byte) error {
	s, err := planningSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("schema: unmarshal response: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("schema: validate: %w", err)
	}
	return nil
}
