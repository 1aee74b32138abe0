package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"scholarship-workers/internal/checkout"
	"scholarship-workers/internal/common/auth"
	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/scholarship"
	"scholarship-workers/internal/store"
)

// PrincipalEnricher fills contact details missing from a token.
type PrincipalEnricher interface {
	Enrich(ctx context.Context, p *models.Principal) (*models.Principal, error)
}

// ReadinessCheck reports whether a backing service can take traffic.
type ReadinessCheck func(ctx context.Context) error

type Dependencies struct {
	Wizard    *scholarship.Wizard
	Documents store.DocumentStore
	Settings  scholarship.SettingsProvider
	Checkout  *checkout.Service
	Verifier  *auth.JWTVerifier
	Enricher  PrincipalEnricher
	Checks    map[string]ReadinessCheck
	Logger    logger.Logger
}

type Handler struct {
	wizard   *scholarship.Wizard
	docs     store.DocumentStore
	settings scholarship.SettingsProvider
	checkout *checkout.Service
	verifier *auth.JWTVerifier
	enricher PrincipalEnricher
	checks   map[string]ReadinessCheck
	logger   logger.Logger
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		wizard:   deps.Wizard,
		docs:     deps.Documents,
		settings: deps.Settings,
		checkout: deps.Checkout,
		verifier: deps.Verifier,
		enricher: deps.Enricher,
		checks:   deps.Checks,
		logger:   deps.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// ==========================
// Health checks
// ==========================

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, map[string]interface{}{"ready": status == http.StatusOK, "checks": results})
}

// ==========================
// Wizard
// ==========================

type stepView struct {
	Name   string   `json:"name"`
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
}

type wizardRequest struct {
	Step   string                 `json:"step" validate:"required"`
	Form   map[string]interface{} `json:"form"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

type wizardResponse struct {
	Step     string                 `json:"step"`
	Form     map[string]interface{} `json:"form"`
	Steps    []stepView             `json:"steps"`
	Position int                    `json:"position"`
	Total    int                    `json:"total"`
}

func (h *Handler) steps(w http.ResponseWriter, r *http.Request) {
	mode := models.ExamMode(r.URL.Query().Get("examMode"))
	if mode != "" && !mode.Valid() {
		h.writeError(w, r, apperrors.NewInvalidInputError(fmt.Sprintf("unknown examMode %q", mode)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"examMode": mode,
		"steps":    views(h.wizard.Catalog().ActiveForMode(mode)),
	})
}

func (h *Handler) wizardNext(w http.ResponseWriter, r *http.Request) {
	h.moveWizard(w, r, h.wizard.Next)
}

func (h *Handler) wizardPrevious(w http.ResponseWriter, r *http.Request) {
	h.moveWizard(w, r, h.wizard.Previous)
}

func (h *Handler) moveWizard(w http.ResponseWriter, r *http.Request, move func(scholarship.Session, map[string]interface{}) (scholarship.Session, error)) {
	var req wizardRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	kind, err := scholarship.ParseStepKind(req.Step)
	if err != nil {
		h.writeError(w, r, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	session, err := move(scholarship.Session{
		Current: kind,
		Form:    scholarship.NewForm(req.Form),
		Status:  scholarship.SessionEditing,
	}, req.Fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	position, total := h.wizard.Position(session)
	writeJSON(w, http.StatusOK, wizardResponse{
		Step:     session.Current.String(),
		Form:     session.Form.Values(),
		Steps:    views(h.wizard.Steps(session.Form)),
		Position: position,
		Total:    total,
	})
}

func views(steps []scholarship.Step) []stepView {
	out := make([]stepView, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepView{Name: s.Kind.String(), Title: s.Title, Fields: s.Fields})
	}
	return out
}

// ==========================
// Applications
// ==========================

type submitRequest struct {
	Form map[string]interface{} `json:"form" validate:"required"`
}

func (h *Handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	_, receipt, err := h.wizard.Submit(r.Context(), principal, scholarship.Session{
		Current: scholarship.StepReviewAndSubmit,
		Form:    scholarship.NewForm(req.Form),
		Status:  scholarship.SessionEditing,
	}, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// getApplication answers 404 for applications owned by someone else so
// that IDs cannot be enumerated.
func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	id := chi.URLParam(r, "id")

	var app models.Application
	err := store.GetAs(r.Context(), h.docs, models.CollectionApplications, id, &app)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, r, apperrors.NewApplicationNotFoundError(id))
		return
	case err != nil:
		h.writeError(w, r, apperrors.NewStoreError("application_lookup", err))
		return
	}
	if principal == nil || app.UserID != principal.ID {
		h.writeError(w, r, apperrors.NewApplicationNotFoundError(id))
		return
	}
	app.ID = id
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) paymentInfo(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.NewStoreError("settings_lookup", err))
		return
	}
	writeJSON(w, http.StatusOK, scholarship.NewPaymentInfo(settings))
}

// ==========================
// Checkout
// ==========================

type quoteRequest struct {
	ItemType   string `json:"itemType" validate:"required,oneof=book course scholarship"`
	ItemID     string `json:"itemId" validate:"required"`
	Quantity   int    `json:"quantity" validate:"omitempty,min=1,max=100"`
	CouponCode string `json:"couponCode,omitempty" validate:"omitempty,max=32"`
}

func (q quoteRequest) toCheckout() checkout.QuoteRequest {
	return checkout.QuoteRequest{
		ItemType:   models.ItemType(q.ItemType),
		ItemID:     q.ItemID,
		Quantity:   q.Quantity,
		CouponCode: q.CouponCode,
	}
}

type orderRequest struct {
	quoteRequest
	PaymentRef      string `json:"paymentRef,omitempty" validate:"omitempty,max=64"`
	ShippingAddress string `json:"shippingAddress,omitempty" validate:"omitempty,max=500"`
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	q, err := h.checkout.Quote(r.Context(), req.toCheckout())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req orderRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.checkout.PlaceOrder(r.Context(), principal, checkout.OrderRequest{
		QuoteRequest:    req.quoteRequest.toCheckout(),
		PaymentRef:      req.PaymentRef,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}
