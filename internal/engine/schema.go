// Schema validation for step input/output, grounded on gsoultan-Hermod's
// pkg/schema/validators.go JSONSchemaValidator (gojsonschema.NewStringLoader
// + gojsonschema.NewSchema + gojsonschema.NewGoLoader), narrowed to the one
// schema kind the step dispatcher needs.
package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/veyra/authcore/internal/coreerr"
)

// validateAgainstSchema asserts data against a JSON schema document. An
// empty schemaText means "no schema configured" and always passes (spec
// §4.5: "if validationSchema present, assert input conforms").
func validateAgainstSchema(schemaText string, data map[string]any, kind coreerr.Kind, fieldLabel string) error {
	if strings.TrimSpace(schemaText) == "" {
		return nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaText))
	if err != nil {
		return coreerr.Internal(fmt.Sprintf("failed to parse %s schema", fieldLabel), err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return coreerr.Internal(fmt.Sprintf("%s schema validation error", fieldLabel), err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return coreerr.New(kind, fmt.Sprintf("%s failed: %s", fieldLabel, strings.Join(msgs, "; ")))
	}
	return nil
}

func validateInput(schemaText string, input map[string]any) error {
	return validateAgainstSchema(schemaText, input, coreerr.KindInputValidation, "input validation")
}

func validateOutput(schemaText string, output map[string]any) error {
	return validateAgainstSchema(schemaText, output, coreerr.KindOutputValidation, "output validation")
}

// schemaToJSON turns a step's schema text into the parsed JSON form
// getIntrospectionData() serializes (spec §6: "input/output JSON schemas
// derived from validationSchema/outputSchema"). A malformed schema is an
// error, not an absent one - callers must not confuse the two.
func schemaToJSON(schemaText string) (any, error) {
	if strings.TrimSpace(schemaText) == "" {
		return nil, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(schemaText), &parsed); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return parsed, nil
}
