package scholarship

import (
	"encoding/json"
	"strconv"
	"strings"

	"scholarship-workers/internal/models"
)

// Form accumulates wizard answers across steps. It is a value: With returns
// a new Form and never mutates the receiver.
type Form struct {
	values map[string]interface{}
}

func NewForm(values map[string]interface{}) Form {
	return Form{values: copyValues(values)}
}

// With merges fields into a copy of the form. A nil value clears the field.
func (f Form) With(fields map[string]interface{}) Form {
	out := copyValues(f.values)
	for k, v := range fields {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return Form{values: out}
}

func (f Form) Value(key string) (interface{}, bool) {
	v, ok := f.values[key]
	return v, ok
}

// String returns the trimmed string value of key, or "".
func (f Form) String(key string) string {
	s, _ := f.values[key].(string)
	return strings.TrimSpace(s)
}

// Number returns a numeric value, accepting JSON numbers and numeric strings.
func (f Form) Number(key string) (float64, bool) {
	switch v := f.values[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (f Form) ExamMode() models.ExamMode {
	return models.ExamMode(f.String("examMode"))
}

// Values returns a copy of every stored field.
func (f Form) Values() map[string]interface{} {
	return copyValues(f.values)
}

// Pick returns the subset of fields named in keys that are present.
func (f Form) Pick(keys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := f.values[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (f Form) MarshalJSON() ([]byte, error) {
	if f.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f.values)
}

func (f *Form) UnmarshalJSON(data []byte) error {
	values := make(map[string]interface{})
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	f.values = values
	return nil
}

func copyValues(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
