package validation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema is the subset of JSON Schema used for job input and form steps.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        string              `json:"type,omitempty"`
	Description string              `json:"description,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Const       interface{}         `json:"const,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	Format      string              `json:"format,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

func StringPtr(v string) *string { return &v }

// Merge combines object schemas; later properties win on name clashes.
func Merge(schemas ...JSONSchema) JSONSchema {
	out := JSONSchema{Type: "object", Properties: make(map[string]Property)}
	seen := make(map[string]bool)
	for _, s := range schemas {
		for name, prop := range s.Properties {
			out.Properties[name] = prop
		}
		for _, req := range s.Required {
			if !seen[req] {
				seen[req] = true
				out.Required = append(out.Required, req)
			}
		}
		out.AdditionalProperties = out.AdditionalProperties || s.AdditionalProperties
	}
	return out
}

// ValidateInput checks input against schema and returns field-level errors
// sorted by field name.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	if input == nil {
		input = map[string]interface{}{}
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(input),
	)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "SCHEMA_ERROR",
			}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, toValidationError(re))
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func toValidationError(re gojsonschema.ResultError) ValidationError {
	field := re.Field()
	switch re.Type() {
	case "required":
		if prop, ok := re.Details()["property"].(string); ok {
			field = joinField(field, prop)
		}
		return ValidationError{Field: field, Message: "required field missing", Code: "REQUIRED_FIELD_MISSING"}
	case "additional_property_not_allowed":
		if prop, ok := re.Details()["property"].(string); ok {
			field = joinField(field, prop)
		}
		return ValidationError{Field: field, Message: "field not allowed in schema", Code: "EXTRA_FIELD"}
	}
	return ValidationError{Field: field, Message: re.Description(), Code: codeFor(re.Type())}
}

func joinField(parent, child string) string {
	if parent == "" || parent == "(root)" {
		return child
	}
	if parent == child || strings.HasSuffix(parent, "."+child) {
		return parent
	}
	return parent + "." + child
}

func codeFor(errType string) string {
	switch errType {
	case "invalid_type":
		return "INVALID_TYPE"
	case "string_gte":
		return "MIN_LENGTH_VIOLATION"
	case "string_lte":
		return "MAX_LENGTH_VIOLATION"
	case "pattern":
		return "PATTERN_MISMATCH"
	case "enum", "const":
		return "INVALID_ENUM_VALUE"
	case "number_gte", "number_gt":
		return "MINIMUM_VIOLATION"
	case "number_lte", "number_lt":
		return "MAXIMUM_VIOLATION"
	case "format":
		return "INVALID_FORMAT"
	default:
		return strings.ToUpper(errType)
	}
}

var (
	emailPattern        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	indianMobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// IndianMobilePattern is a ten digit mobile number starting 6-9.
const IndianMobilePattern = `^[6-9][0-9]{9}$`

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeMobile strips separators and a leading +91 or 0.
func NormalizeMobile(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	s := string(digits)
	switch {
	case len(s) == 12 && strings.HasPrefix(s, "91"):
		s = s[2:]
	case len(s) == 11 && strings.HasPrefix(s, "0"):
		s = s[1:]
	}
	return s
}

func ValidateMobile(phone string) bool {
	return indianMobilePattern.MatchString(NormalizeMobile(phone))
}
