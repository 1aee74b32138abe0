package scholarship

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"scholarship-workers/internal/blob"
	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/validation"
	"scholarship-workers/internal/models"
)

// StepKind tags a wizard step descriptor.
type StepKind int

const (
	StepPersonalInfo StepKind = iota + 1
	StepAcademicInfo
	StepExamModeChoice
	StepCenterChoice
	StepUploadDocs
	StepPayment
	StepReviewAndSubmit
)

var stepNames = map[StepKind]string{
	StepPersonalInfo:    "personalInfo",
	StepAcademicInfo:    "academicInfo",
	StepExamModeChoice:  "examMode",
	StepCenterChoice:    "centerChoice",
	StepUploadDocs:      "uploadDocs",
	StepPayment:         "payment",
	StepReviewAndSubmit: "reviewAndSubmit",
}

func (k StepKind) String() string {
	if name, ok := stepNames[k]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(k))
}

func ParseStepKind(s string) (StepKind, error) {
	for kind, name := range stepNames {
		if strings.EqualFold(name, s) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", s)
}

func (k StepKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *StepKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, err := ParseStepKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Rule is a cross-field check run after the step schema passes its own fields.
type Rule func(f Form) []apperrors.FieldError

// Step describes one wizard page: the fields it owns, their schema, extra
// rules, and whether it is part of the flow for the current answers.
type Step struct {
	Kind    StepKind
	Title   string
	Fields  []string
	Schema  validation.JSONSchema
	Rules   []Rule
	Include func(f Form) bool
}

// Validate checks only the fields this step owns.
func (s Step) Validate(f Form) []apperrors.FieldError {
	var errs []apperrors.FieldError
	result := validation.ValidateInput(f.Pick(s.Fields), s.Schema)
	for _, e := range result.Errors {
		errs = append(errs, apperrors.FieldError{Field: e.Field, Message: e.Message})
	}
	if len(errs) > 0 {
		return errs
	}
	for _, rule := range s.Rules {
		errs = append(errs, rule(f)...)
	}
	return errs
}

// StepOptions tune the field rules.
type StepOptions struct {
	MaxUploadBytes int
	MinimumAge     int
	Now            func() time.Time
}

// Catalog is the ordered list of every step descriptor.
type Catalog struct {
	steps []Step
}

func NewCatalog(opts StepOptions) *Catalog {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	always := func(Form) bool { return true }
	modeIs := func(mode models.ExamMode) func(Form) bool {
		return func(f Form) bool { return f.ExamMode() == mode }
	}
	name := validation.Property{Type: "string", MinLength: validation.IntPtr(2), MaxLength: validation.IntPtr(100)}
	mobile := validation.Property{Type: "string", Pattern: validation.StringPtr(validation.IndianMobilePattern)}
	center := validation.Property{Type: "string", MinLength: validation.IntPtr(1), MaxLength: validation.IntPtr(100)}
	upload := validation.Property{Type: "object", Required: []string{"data"}}

	return &Catalog{steps: []Step{
		{
			Kind:   StepPersonalInfo,
			Title:  "Personal information",
			Fields: []string{"name", "fatherName", "dateOfBirth", "gender", "mobile", "email"},
			Schema: validation.JSONSchema{
				Type: "object",
				Properties: map[string]validation.Property{
					"name":        name,
					"fatherName":  name,
					"dateOfBirth": {Type: "string", Pattern: validation.StringPtr(`^\d{4}-\d{2}-\d{2}$`)},
					"gender":      {Type: "string", Enum: []string{"male", "female", "other"}},
					"mobile":      mobile,
					"email":       {Type: "string", Format: "email", MaxLength: validation.IntPtr(254)},
				},
				Required: []string{"name", "fatherName", "dateOfBirth", "gender", "mobile", "email"},
			},
			Rules:   []Rule{dateOfBirthRule(opts.Now, opts.MinimumAge)},
			Include: always,
		},
		{
			Kind:   StepAcademicInfo,
			Title:  "Academic information",
			Fields: []string{"class", "school", "previousPercentage"},
			Schema: validation.JSONSchema{
				Type: "object",
				Properties: map[string]validation.Property{
					"class":              {Type: "string", MinLength: validation.IntPtr(1), MaxLength: validation.IntPtr(20)},
					"school":             {Type: "string", MinLength: validation.IntPtr(2), MaxLength: validation.IntPtr(200)},
					"previousPercentage": {Type: "number", Minimum: validation.FloatPtr(0), Maximum: validation.FloatPtr(100)},
				},
				Required: []string{"class", "school", "previousPercentage"},
			},
			Include: always,
		},
		{
			Kind:   StepExamModeChoice,
			Title:  "Exam mode",
			Fields: []string{"examMode"},
			Schema: validation.JSONSchema{
				Type: "object",
				Properties: map[string]validation.Property{
					"examMode": {Type: "string", Enum: []string{string(models.ExamModeOnline), string(models.ExamModeOffline)}},
				},
				Required: []string{"examMode"},
			},
			Include: always,
		},
		{
			Kind:   StepCenterChoice,
			Title:  "Exam centers",
			Fields: []string{"center1", "center2", "center3"},
			Schema: validation.JSONSchema{
				Type: "object",
				Properties: map[string]validation.Property{
					"center1": center,
					"center2": center,
					"center3": center,
				},
				Required: []string{"center1", "center2", "center3"},
			},
			Rules:   []Rule{distinctCentersRule},
			Include: modeIs(models.ExamModeOffline),
		},
		{
			Kind:   StepUploadDocs,
			Title:  "Photo and signature",
			Fields: []string{"photo", "signature"},
			Schema: validation.JSONSchema{
				Type: "object",
				Properties: map[string]validation.Property{
					"photo":     upload,
					"signature": upload,
				},
			},
			Rules:   []Rule{uploadRule("photo", opts.MaxUploadBytes), uploadRule("signature", opts.MaxUploadBytes)},
			Include: always,
		},
		{
			Kind:   StepPayment,
			Title:  "Payment",
			Fields: []string{"payerMobile", "transactionRef"},
			Schema: validation.JSONSchema{
				Type: "object",
				Properties: map[string]validation.Property{
					"payerMobile":    mobile,
					"transactionRef": {Type: "string", Pattern: validation.StringPtr(`^[A-Za-z0-9]{6,35}$`)},
				},
				Required: []string{"payerMobile"},
			},
			Include: modeIs(models.ExamModeOnline),
		},
		{
			Kind:   StepReviewAndSubmit,
			Title:  "Review and submit",
			Fields: []string{"declaration"},
			Schema: validation.JSONSchema{
				Type: "object",
				Properties: map[string]validation.Property{
					"declaration": {Type: "boolean", Const: true},
				},
				Required: []string{"declaration"},
			},
			Include: always,
		},
	}}
}

// Active filters the descriptors by their inclusion predicate.
func (c *Catalog) Active(f Form) []Step {
	active := make([]Step, 0, len(c.steps))
	for _, s := range c.steps {
		if s.Include(f) {
			active = append(active, s)
		}
	}
	return active
}

// ActiveForMode lists the steps of one exam mode branch.
func (c *Catalog) ActiveForMode(mode models.ExamMode) []Step {
	return c.Active(NewForm(map[string]interface{}{"examMode": string(mode)}))
}

func (c *Catalog) Step(kind StepKind) (Step, bool) {
	for _, s := range c.steps {
		if s.Kind == kind {
			return s, true
		}
	}
	return Step{}, false
}

// branchFields lists every field owned by the given steps.
func branchFields(steps []Step) []string {
	var fields []string
	for _, s := range steps {
		fields = append(fields, s.Fields...)
	}
	return fields
}

func indexOf(steps []Step, kind StepKind) int {
	for i, s := range steps {
		if s.Kind == kind {
			return i
		}
	}
	return -1
}

// ==========================
// Rules
// ==========================

func distinctCentersRule(f Form) []apperrors.FieldError {
	var errs []apperrors.FieldError
	seen := map[string]string{}
	for _, field := range []string{"center1", "center2", "center3"} {
		key := strings.ToLower(f.String(field))
		if key == "" {
			continue
		}
		if prev, dup := seen[key]; dup {
			errs = append(errs, apperrors.FieldError{
				Field:   field,
				Message: fmt.Sprintf("must be different from %s", prev),
			})
			continue
		}
		seen[key] = field
	}
	return errs
}

func dateOfBirthRule(now func() time.Time, minimumAge int) Rule {
	return func(f Form) []apperrors.FieldError {
		dob, err := time.Parse("2006-01-02", f.String("dateOfBirth"))
		if err != nil {
			return []apperrors.FieldError{{Field: "dateOfBirth", Message: "must be a valid date (YYYY-MM-DD)"}}
		}
		today := now()
		if !dob.Before(today) {
			return []apperrors.FieldError{{Field: "dateOfBirth", Message: "must be in the past"}}
		}
		if minimumAge > 0 && dob.AddDate(minimumAge, 0, 0).After(today) {
			return []apperrors.FieldError{{Field: "dateOfBirth", Message: fmt.Sprintf("applicant must be at least %d years old", minimumAge)}}
		}
		return nil
	}
}

func uploadRule(field string, maxBytes int) Rule {
	return func(f Form) []apperrors.FieldError {
		v, ok := f.Value(field)
		if !ok {
			return nil
		}
		u, err := blob.FromValue(v)
		if err == nil {
			err = u.Validate(maxBytes)
		}
		if err != nil {
			return []apperrors.FieldError{{Field: field, Message: err.Error()}}
		}
		return nil
	}
}
