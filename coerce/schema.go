package coerce

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles a JSON Schema document for use with
// CoerceWithSchema.
func CompileSchema(src string) (*jsonschema.Schema, error) {
	schema, err := jsonschema.CompileString("schema.json", src)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// CoerceWithSchema runs the extraction pipeline but only accepts a stage's
// result when it validates against the schema. A parse that succeeds
// syntactically but fails validation falls through to the next stage, so a
// fenced object can win over an invalid prose-level one. When no stage
// yields a valid object, the plain-text fallback wrapper is returned; the
// fallback is exempt from validation on purpose, since its whole job is to
// keep the turn alive when the model ignored the schema.
func CoerceWithSchema(raw string, schema *jsonschema.Schema) (map[string]any, error) {
	if schema == nil {
		return Coerce(raw)
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	for _, candidate := range candidates(trimmed) {
		obj, ok := parseObject(candidate)
		if !ok {
			continue
		}
		if err := schema.Validate(anyMap(obj)); err != nil {
			continue
		}
		return obj, nil
	}

	return map[string]any{
		KeyResponse:        trimmed,
		KeyTaskStatus:      "complete",
		KeyParsingFallback: true,
	}, nil
}

// anyMap converts to the interface{} shape jsonschema validates.
func anyMap(m map[string]any) any {
	return map[string]any(m)
}
