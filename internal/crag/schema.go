package crag

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

// Reply contracts for each structured completion. Keys a generator can
// default are optional; null counts as absent.
const (
	scoreSchemaJSON = `{
		"type": "object",
		"required": ["relevance_score", "reasoning"],
		"properties": {
			"relevance_score": {"type": "integer", "minimum": 1, "maximum": 10},
			"reasoning": {"type": "string"}
		}
	}`

	analyzeSchemaJSON = `{
		"type": "object",
		"properties": {
			"missing_keywords": {"type": ["array", "null"], "items": {"type": "string"}},
			"improvement_suggestions": {"type": ["array", "null"], "items": {"type": "string"}},
			"rewritten_bullets": {"type": ["array", "null"], "items": {"type": "string"}}
		}
	}`

	chatSchemaJSON = `{
		"type": "object",
		"properties": {
			"answer": {"type": ["string", "null"]}
		}
	}`

	tailorSchemaJSON = `{
		"type": "object",
		"properties": {
			"tailored_bullets": {"type": ["array", "null"], "items": {"type": "string"}},
			"cover_letter": {"type": ["string", "null"]}
		}
	}`

	matchSchemaJSON = `{
		"type": "object",
		"properties": {
			"match_score": {"type": ["number", "null"]},
			"ats_score": {"type": ["number", "null"]},
			"matched_keywords": {"type": ["array", "null"], "items": {"type": "string"}},
			"missing_keywords": {"type": ["array", "null"], "items": {"type": "string"}},
			"skill_gaps": {"type": ["array", "null"], "items": {"type": "string"}},
			"improvement_suggestions": {"type": ["array", "null"], "items": {"type": "string"}},
			"tailored_resume_bullets": {"type": ["array", "null"], "items": {"type": "string"}},
			"cover_letter_snippet": {"type": ["string", "null"]}
		}
	}`
)

var (
	scoreSchema   = mustSchema("score", scoreSchemaJSON)
	analyzeSchema = mustSchema("analyze", analyzeSchemaJSON)
	chatSchema    = mustSchema("chat", chatSchemaJSON)
	tailorSchema  = mustSchema("tailor", tailorSchemaJSON)
	matchSchema   = mustSchema("match", matchSchemaJSON)
)

func mustSchema(name, raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile %s schema: %v", name, err))
	}
	return schema
}

// validateReply rejects anything that is not a single JSON object matching
// schema. Every failure wraps ErrMalformedResponse.
func validateReply(schema *gojsonschema.Schema, raw string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", appErr.ErrMalformedResponse, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		msgs = append(msgs, field+": "+desc.Description())
	}
	return fmt.Errorf("%w: %s", appErr.ErrMalformedResponse, strings.Join(msgs, "; "))
}
