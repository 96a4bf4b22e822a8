package expect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema validates the actual value against a JSON Schema document.
// An unusable schema fails regardless of polarity.
func (e Expectation) JSONSchema(schema string) error {
	doc, err := json.Marshal(e.actual.Interface())
	if err != nil {
		return &AssertionError{
			Kind:    KindSchema,
			Negated: e.negated,
			Message: fmt.Sprintf("cannot encode %s as JSON: %v", e.actual.Type(), err),
		}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &AssertionError{
			Kind:     KindSchema,
			Expected: schema,
			Negated:  e.negated,
			Message:  fmt.Sprintf("schema validation error: %v", err),
		}
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	phrase := "match the schema"
	if len(problems) > 0 {
		phrase += ": " + strings.Join(problems, "; ")
	}
	return e.verdict(result.Valid(), KindSchema, schema, problems, phrase)
}
