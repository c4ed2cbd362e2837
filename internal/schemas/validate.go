// Package schemas provides JSON Schema validation for extracted documents and
// embeds the job and organization extraction schemas.
package schemas

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed job.schema.json
var jobSchema string

//go:embed org.schema.json
var orgSchema string

// Names of the embedded schemas.
const (
	NameJob          = "job"
	NameOrganization = "organization"
)

// Job returns the job extraction schema.
func Job() string { return jobSchema }

// Organization returns the organization extraction schema.
func Organization() string { return orgSchema }

// ByName returns an embedded schema by name.
func ByName(name string) (string, bool) {
	switch name {
	case NameJob:
		return jobSchema, true
	case NameOrganization, "org":
		return orgSchema, true
	}
	return "", false
}

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema: %s", e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

var (
	compiled   = make(map[string]*gojsonschema.Schema)
	compiledMu sync.Mutex
)

func compile(schemaContent string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[schemaContent]; ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaContent))
	if err != nil {
		return nil, &SchemaLoadError{Message: "invalid schema", Cause: err}
	}
	compiled[schemaContent] = s
	return s, nil
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	return validate(schemaContent, gojsonschema.NewStringLoader(jsonContent))
}

// ValidateValue validates an already decoded value (map, slice, struct)
// against schema string content.
func ValidateValue(schemaContent string, value any) error {
	return validate(schemaContent, gojsonschema.NewGoLoader(value))
}

func validate(schemaContent string, document gojsonschema.JSONLoader) error {
	schema, err := compile(schemaContent)
	if err != nil {
		return err
	}

	result, err := schema.Validate(document)
	if err != nil {
		return &SchemaLoadError{Message: "document could not be loaded", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	sort.SliceStable(validationErr.Errors, func(i, j int) bool {
		return validationErr.Errors[i].Field < validationErr.Errors[j].Field
	})

	return validationErr
}
