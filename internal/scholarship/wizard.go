// Package scholarship implements the scholarship application wizard and the
// submission commit protocol behind it.
package scholarship

import (
	"context"
	"errors"

	"scholarship-workers/internal/blob"
	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/validation"
	"scholarship-workers/internal/models"
)

var (
	ErrAlreadySubmitted = errors.New("APPLICATION_ALREADY_SUBMITTED")
	ErrNotReadyToSubmit = errors.New("SUBMIT_ONLY_FROM_REVIEW")
)

type SessionStatus string

const (
	SessionEditing   SessionStatus = "editing"
	SessionSubmitted SessionStatus = "submitted"
)

// Session is the client-held wizard state. Nothing is stored server side
// between calls.
type Session struct {
	Current       StepKind      `json:"step"`
	Form          Form          `json:"form"`
	Status        SessionStatus `json:"status"`
	ApplicationID string        `json:"applicationId,omitempty"`
}

func NewSession() Session {
	return Session{Current: StepPersonalInfo, Form: NewForm(nil), Status: SessionEditing}
}

// PaymentClaim is the applicant's statement of having paid the online fee.
type PaymentClaim struct {
	PayerMobile    string
	TransactionRef string
}

// Submission is the validated, branch-filtered payload handed to the committer.
type Submission struct {
	Application models.Application
	Photo       *blob.Upload
	Signature   *blob.Upload
	Payment     *PaymentClaim
}

// Committer persists a submission and issues its application ID.
type Committer interface {
	Commit(ctx context.Context, principal *models.Principal, sub Submission) (*models.Receipt, error)
}

type Wizard struct {
	catalog   *Catalog
	committer Committer
}

func NewWizard(catalog *Catalog, committer Committer) *Wizard {
	return &Wizard{catalog: catalog, committer: committer}
}

func (w *Wizard) Catalog() *Catalog {
	return w.catalog
}

// Steps returns the active steps for the answers given so far.
func (w *Wizard) Steps(f Form) []Step {
	return w.catalog.Active(f)
}

// Position returns the zero-based index of the current step and the number
// of active steps.
func (w *Wizard) Position(s Session) (int, int) {
	active := w.catalog.Active(s.Form)
	return w.locate(active, s.Current), len(active)
}

// Next merges fields, validates only the current step and advances on
// success. On failure the merged answers are kept and the step is unchanged.
// Next on the last step is a no-op; use Submit.
func (w *Wizard) Next(s Session, fields map[string]interface{}) (Session, error) {
	if s.Status == SessionSubmitted {
		return s, ErrAlreadySubmitted
	}
	form := s.Form.With(fields)
	active := w.catalog.Active(form)
	idx := w.locate(active, s.Current)
	current := active[idx]

	next := Session{Current: current.Kind, Form: form, Status: SessionEditing}
	if errs := current.Validate(form); len(errs) > 0 {
		return next, apperrors.NewApplicationValidationFailedError(errs)
	}
	if idx+1 < len(active) {
		next.Current = active[idx+1].Kind
	}
	return next, nil
}

// Previous steps back without validation, never before the first step.
func (w *Wizard) Previous(s Session, fields map[string]interface{}) (Session, error) {
	if s.Status == SessionSubmitted {
		return s, ErrAlreadySubmitted
	}
	form := s.Form.With(fields)
	active := w.catalog.Active(form)
	idx := w.locate(active, s.Current)
	if idx > 0 {
		idx--
	}
	return Session{Current: active[idx].Kind, Form: form, Status: SessionEditing}, nil
}

// Submit validates the whole branch and commits it. On any failure the
// session stays on the review step with the merged answers.
func (w *Wizard) Submit(ctx context.Context, principal *models.Principal, s Session, fields map[string]interface{}) (Session, *models.Receipt, error) {
	if s.Status == SessionSubmitted {
		return s, nil, ErrAlreadySubmitted
	}
	if s.Current != StepReviewAndSubmit {
		return s, nil, ErrNotReadyToSubmit
	}
	form := s.Form.With(fields)
	stay := Session{Current: StepReviewAndSubmit, Form: form, Status: SessionEditing}

	if errs := w.ValidateAll(form); len(errs) > 0 {
		return stay, nil, apperrors.NewApplicationValidationFailedError(errs)
	}
	sub, err := w.BuildSubmission(form)
	if err != nil {
		return stay, nil, err
	}
	receipt, err := w.committer.Commit(ctx, principal, sub)
	if err != nil {
		return stay, nil, err
	}
	return Session{
		Current:       StepReviewAndSubmit,
		Form:          form,
		Status:        SessionSubmitted,
		ApplicationID: receipt.ApplicationID,
	}, receipt, nil
}

// ValidateAll checks every active step: the merged branch schema first, then
// the cross-field rules.
func (w *Wizard) ValidateAll(f Form) []apperrors.FieldError {
	active := w.catalog.Active(f)
	schemas := make([]validation.JSONSchema, 0, len(active))
	for _, s := range active {
		schemas = append(schemas, s.Schema)
	}
	merged := validation.Merge(schemas...)

	var errs []apperrors.FieldError
	for _, e := range validation.ValidateInput(f.Pick(branchFields(active)), merged).Errors {
		errs = append(errs, apperrors.FieldError{Field: e.Field, Message: e.Message})
	}
	if len(errs) > 0 {
		return errs
	}
	for _, s := range active {
		for _, rule := range s.Rules {
			errs = append(errs, rule(f)...)
		}
	}
	return errs
}

// BuildSubmission keeps only fields owned by active steps, so answers from
// the other exam mode branch never reach the store.
func (w *Wizard) BuildSubmission(f Form) (Submission, error) {
	active := w.catalog.Active(f)
	branch := NewForm(f.Pick(branchFields(active)))
	percentage, _ := branch.Number("previousPercentage")

	sub := Submission{Application: models.Application{
		Name:               branch.String("name"),
		FatherName:         branch.String("fatherName"),
		DateOfBirth:        branch.String("dateOfBirth"),
		Gender:             branch.String("gender"),
		Mobile:             branch.String("mobile"),
		Email:              branch.String("email"),
		Class:              branch.String("class"),
		School:             branch.String("school"),
		PreviousPercentage: percentage,
		ExamMode:           branch.ExamMode(),
		Center1:            branch.String("center1"),
		Center2:            branch.String("center2"),
		Center3:            branch.String("center3"),
	}}

	for field, dst := range map[string]**blob.Upload{"photo": &sub.Photo, "signature": &sub.Signature} {
		v, ok := branch.Value(field)
		if !ok {
			continue
		}
		u, err := blob.FromValue(v)
		if err != nil {
			return Submission{}, apperrors.NewApplicationValidationFailedError([]apperrors.FieldError{{Field: field, Message: err.Error()}})
		}
		*dst = u
	}

	if indexOf(active, StepPayment) >= 0 {
		sub.Payment = &PaymentClaim{
			PayerMobile:    branch.String("payerMobile"),
			TransactionRef: branch.String("transactionRef"),
		}
	}
	return sub, nil
}

// locate finds the current step among the active ones. When the current step
// dropped out of the flow (the exam mode changed) the nearest earlier active
// step is used.
func (w *Wizard) locate(active []Step, kind StepKind) int {
	best := 0
	for i, s := range active {
		if s.Kind == kind {
			return i
		}
		if s.Kind < kind {
			best = i
		}
	}
	return best
}
