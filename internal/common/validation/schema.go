package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator validates documents against JSON schemas, compiling each schema
// once per key.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{schemas: map[string]*gojsonschema.Schema{}}
}

// Register compiles schema under key. schema is a decoded JSON schema object.
func (v *Validator) Register(key string, schema map[string]interface{}) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", key, err)
	}
	v.mu.Lock()
	v.schemas[key] = compiled
	v.mu.Unlock()
	return nil
}

// Validate checks document (any JSON-marshalable value) against the schema
// registered under key. An unknown key is valid.
func (v *Validator) Validate(key string, document interface{}) (*ValidationResult, error) {
	v.mu.RLock()
	schema, ok := v.schemas[key]
	v.mu.RUnlock()
	if !ok {
		return &ValidationResult{Valid: true}, nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

func toResult(result *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}

var (
	phonePattern    = regexp.MustCompile(`^01[016789]\d{7,8}$`)
	phoneSeparators = strings.NewReplacer("-", "", " ", "", ".", "", "(", "", ")", "")
)

// NormalizePhone strips separators and a +82 country prefix.
func NormalizePhone(phone string) string {
	p := phoneSeparators.Replace(strings.TrimSpace(phone))
	if strings.HasPrefix(p, "+82") {
		p = "0" + strings.TrimPrefix(p, "+82")
	}
	return p
}

// ValidatePhone accepts Korean mobile numbers with or without separators.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}
