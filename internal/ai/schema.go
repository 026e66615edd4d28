package ai

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type validator interface {
	Validate(v interface{}) error
}

type schemas struct {
	analysis   *jsonschema.Schema
	moderation *jsonschema.Schema
	support    *jsonschema.Schema
}

const analysisSchema = `{
	"type": "object",
	"required": ["summary", "pros", "cons", "risks"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"pros": {"type": "array", "items": {"type": "string"}},
		"cons": {"type": "array", "items": {"type": "string"}},
		"risks": {"type": "array", "items": {"type": "string"}},
		"investmentAdvantages": {"type": "array", "items": {"type": "string"}},
		"estimatedBudget": {"type": ["number", "null"], "minimum": 0}
	}
}`

const moderationSchema = `{
	"type": "object",
	"required": ["isAppropriate", "toxicityScore"],
	"properties": {
		"isAppropriate": {"type": "boolean"},
		"toxicityScore": {"type": "number", "minimum": 0, "maximum": 10},
		"reason": {"type": "string"},
		"flags": {"type": "array", "items": {"type": "string"}}
	}
}`

const supportSchema = `{
	"type": "object",
	"required": ["answer", "needsAdmin", "category"],
	"properties": {
		"answer": {"type": "string", "minLength": 1},
		"needsAdmin": {"type": "boolean"},
		"category": {"enum": ["GENERAL", "TECHNICAL", "ACCOUNT", "PROJECTS", "VOTING", "PAYMENTS", "OTHER"]}
	}
}`

func compileSchemas() (*schemas, error) {
	var s schemas
	for _, item := range []struct {
		name string
		src  string
		dst  **jsonschema.Schema
	}{
		{"analysis", analysisSchema, &s.analysis},
		{"moderation", moderationSchema, &s.moderation},
		{"support", supportSchema, &s.support},
	} {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		u := fmt.Sprintf("https://civic-budget.local/ai/%s.schema.json", item.name)
		if err := c.AddResource(u, strings.NewReader(item.src)); err != nil {
			return nil, fmt.Errorf("ai: load %s schema: %w", item.name, err)
		}
		compiled, err := c.Compile(u)
		if err != nil {
			return nil, fmt.Errorf("ai: compile %s schema: %w", item.name, err)
		}
		*item.dst = compiled
	}
	return &s, nil
}
