package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"name":   {Type: "string", MinLength: IntPtr(2), MaxLength: IntPtr(100)},
			"gender": {Type: "string", Enum: []string{"male", "female", "other"}},
			"mobile": {Type: "string", Pattern: StringPtr(IndianMobilePattern)},
			"score":  {Type: "number", Minimum: FloatPtr(0), Maximum: FloatPtr(100)},
			"agreed": {Type: "boolean", Const: true},
		},
		Required:             []string{"name", "mobile"},
		AdditionalProperties: true,
	}
}

func TestValidateInput_Valid(t *testing.T) {
	result := ValidateInput(map[string]interface{}{
		"name":   "Asha",
		"gender": "female",
		"mobile": "9876543210",
		"score":  88.5,
		"agreed": true,
		"other":  "ignored",
	}, personSchema())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateInput_FieldErrors(t *testing.T) {
	result := ValidateInput(map[string]interface{}{
		"name":   "A",
		"gender": "unknown",
		"score":  140,
		"agreed": false,
	}, personSchema())

	require.False(t, result.Valid)
	assert.True(t, hasError(result, "name"))
	assert.True(t, hasError(result, "gender"))
	codes := map[string]string{}
	for _, e := range result.Errors {
		codes[e.Field] = e.Code
	}
	assert.Contains(t, codes, "agreed")
	assert.Equal(t, "MIN_LENGTH_VIOLATION", codes["name"])
	assert.Equal(t, "REQUIRED_FIELD_MISSING", codes["mobile"])
	assert.Equal(t, "MAXIMUM_VIOLATION", codes["score"])
}

func TestValidateInput_AdditionalPropertiesRejected(t *testing.T) {
	schema := personSchema()
	schema.AdditionalProperties = false

	result := ValidateInput(map[string]interface{}{
		"name":   "Asha",
		"mobile": "9876543210",
		"extra":  1,
	}, schema)

	require.False(t, result.Valid)
	assert.True(t, hasError(result, "extra"))
}

func TestMerge(t *testing.T) {
	a := JSONSchema{Properties: map[string]Property{"a": {Type: "string"}}, Required: []string{"a"}}
	b := JSONSchema{Properties: map[string]Property{"b": {Type: "number"}}, Required: []string{"b", "a"}}

	merged := Merge(a, b)

	assert.Equal(t, "object", merged.Type)
	assert.Len(t, merged.Properties, 2)
	assert.Equal(t, []string{"a", "b"}, merged.Required)
}

func TestNormalizeMobile(t *testing.T) {
	assert.Equal(t, "9876543210", NormalizeMobile("+91 98765-43210"))
	assert.Equal(t, "9876543210", NormalizeMobile("09876543210"))
	assert.True(t, ValidateMobile("+91 98765 43210"))
	assert.False(t, ValidateMobile("1234567890"))
	assert.False(t, ValidateMobile("98765"))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("student@example.in"))
	assert.False(t, ValidateEmail("student@"))
}

func hasError(result *ValidationResult, field string) bool {
	for _, e := range result.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
