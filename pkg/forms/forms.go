// Package forms validates role-specific form payloads against JSON schemas.
// The orchestrator treats it as a gate: a submission event is only accepted
// once its payload validates against the schema for the step's form type.
package forms

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Result is the outcome of validating one form payload.
type Result struct {
	Valid      bool           `json:"valid"`
	Errors     []string       `json:"errors,omitempty"`
	Normalized map[string]any `json:"normalized,omitempty"`
}

// Validator validates form payloads by form type.
type Validator struct {
	schemas map[string]map[string]any
}

// NewValidator creates a validator preloaded with the built-in form schemas.
func NewValidator() *Validator {
	return &Validator{schemas: builtinSchemas()}
}

// KnownFormType reports whether a schema exists for the given form type.
func (v *Validator) KnownFormType(formType string) bool {
	_, ok := v.schemas[formType]

	return ok
}

// Validate checks payload against the schema registered for formType.
// Unknown form types validate successfully with the payload passed through,
// so customized steps with ad-hoc forms are not blocked.
func (v *Validator) Validate(formType string, payload map[string]any) (*Result, error) {
	schema, ok := v.schemas[formType]
	if !ok {
		return &Result{Valid: true, Normalized: payload}, nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate %s form: %w", formType, err)
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			errs = append(errs, resultErr.String())
		}

		return &Result{Valid: false, Errors: errs}, nil
	}

	// Strip fields the schema does not know about; extra data never reaches
	// the workflow record.
	normalized := payload

	if properties, ok := schema["properties"].(map[string]any); ok {
		normalized = make(map[string]any, len(payload))

		for key, value := range payload {
			if _, known := properties[key]; known {
				normalized[key] = value
			}
		}
	}

	return &Result{Valid: true, Normalized: normalized}, nil
}

func builtinSchemas() map[string]map[string]any {
	requiredStrings := func(required []string, optional ...string) map[string]any {
		properties := make(map[string]any, len(required)+len(optional))

		for _, name := range required {
			properties[name] = map[string]any{"type": "string", "minLength": 1}
		}

		for _, name := range optional {
			properties[name] = map[string]any{"type": "string"}
		}

		return map[string]any{
			"type":       "object",
			"required":   required,
			"properties": properties,
		}
	}

	return map[string]map[string]any{
		"lease_exit_initiation": requiredStrings(
			[]string{"lease_id", "property_address", "exit_date", "reason_for_exit"},
			"additional_notes",
		),
		"document_collection": requiredStrings(
			[]string{"documents_complete"},
			"missing_documents",
		),
		"advisory_review": requiredStrings(
			[]string{"lease_requirements", "cost_estimate"},
			"comments",
		),
		"ifm_review": requiredStrings(
			[]string{"exit_requirements"},
			"scope_details", "comments",
		),
		"legal_review": requiredStrings(
			[]string{"legal_requirements"},
			"lease_obligations", "comments",
		),
		"mac_review": requiredStrings(
			[]string{"relocation_requirements"},
			"comments",
		),
		"pjm_review": requiredStrings(
			[]string{"project_requirements"},
			"timeline", "comments",
		),
		"financial_analysis": requiredStrings(
			[]string{"cost_summary"},
			"comments",
		),
		"property_inspection": requiredStrings(
			[]string{"condition_report"},
			"comments",
		),
		"space_planning": requiredStrings(
			[]string{"space_plan"},
			"comments",
		),
		"signage_removal": requiredStrings(
			[]string{"removal_plan"},
			"comments",
		),
		"final_review": requiredStrings(
			[]string{"review_outcome"},
			"comments",
		),
		"approval": requiredStrings(
			[]string{"decision"},
			"comments",
		),
	}
}
