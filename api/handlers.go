/*
handlers.go - HTTP API handlers for the quote engine

PURPOSE:
  Exposes availability checks, pricing and quote sessions via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  domain packages.

ENDPOINTS:
  Providers:
    POST   /api/providers                          Load a provider configuration (JSON)
    GET    /api/providers/{id}/calendar?month=     Selectable days of a month
    GET    /api/providers/{id}/availability?date=  Capacity check + gate

  Templates:
    GET    /api/templates                          List templates
    GET    /api/templates/{id}                     Offer (products, cities, methods...)
    POST   /api/templates/{id}/quote               Stateless breakdown + plan
    POST   /api/templates/{id}/coupons/validate    Coupon check
    POST   /api/templates/{id}/sessions            Open a quote session

  Sessions:
    GET    /api/sessions/{id}                      Current summary
    DELETE /api/sessions/{id}                      Close
    PUT    /api/sessions/{id}/date                 Pick or clear the date
    PUT    /api/sessions/{id}/items                Set quantities
    PUT    /api/sessions/{id}/location             Pick a city
    PUT    /api/sessions/{id}/payment              Pick a payment method
    PUT    /api/sessions/{id}/contact              Name, email, phone, extra fields
    POST   /api/sessions/{id}/coupon               Apply a coupon
    DELETE /api/sessions/{id}/coupon               Remove it
    POST   /api/sessions/{id}/submit               Hand the quote to the provider

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: provider configuration and catalog
  - Quotes: session service (pricing, coupons, availability tracking)
  - Checker: the capacity resolver
  - Factory: JSON to provider records

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unknown product or option, locked fields
  - 404: Template or session not found
  - 409: Submission blocked by availability, already submitted
  - 422: Required fields missing (fields listed)
  - 502: The provider could not be notified
  - 500: Internal errors

  Pricing never fails: stale options and invalid coupons price as zero
  adjustments. An availability outage never fails: the result is degraded.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/factory"
	"github.com/warp/quote-engine/pricing"
	"github.com/warp/quote-engine/quote"
	"github.com/warp/quote-engine/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Invalidator drops cached availability for a provider. Implemented by
// store/redis.
type Invalidator interface {
	Invalidate(ctx context.Context, providerID string) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   store.Store
	Quotes  *quote.Service
	Checker availability.Checker
	Factory *factory.ProviderFactory

	// Cache is optional. When set it is invalidated after provider data changes.
	Cache Invalidator

	logger   zerolog.Logger
	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(st store.Store, quotes *quote.Service, checker availability.Checker, logger zerolog.Logger) *Handler {
	return &Handler{
		Store:    st,
		Quotes:   quotes,
		Checker:  checker,
		Factory:  factory.New(logger),
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// PROVIDER HANDLERS
// =============================================================================

// LoadProvider saves a provider configuration.
// POST /api/providers
func (h *Handler) LoadProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var pj factory.ProviderJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	provider, err := h.Factory.FromJSON(pj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid provider configuration", err)
		return
	}
	if err := provider.Save(ctx, h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save provider", err)
		return
	}
	h.invalidate(ctx, provider.Rules.ProviderID)

	problems := make([]string, 0)
	for _, p := range provider.Rules.Problems() {
		problems = append(problems, p.String())
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"provider_id": provider.Rules.ProviderID,
		"templates":   len(provider.Templates),
		"problems":    problems,
	})
}

// GetCalendar returns which days of a month pass the structural rules.
// GET /api/providers/{id}/calendar?month=YYYY-MM
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")

	month := calendar.Today()
	if m := r.URL.Query().Get("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month, expected YYYY-MM", err)
			return
		}
		month = calendar.FromTime(t)
	}
	period, err := calendar.Month(month.Year(), int(month.Month()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	snap, err := h.Store.Rules(r.Context(), providerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load provider rules", err)
		return
	}

	selectable := availability.SelectableDays(period, snap.Config, snap.BlockedDates, snap.BlockedPeriods)
	dto := CalendarDTO{
		ProviderID: providerID,
		Month:      fmt.Sprintf("%04d-%02d", month.Year(), month.Month()),
	}
	for _, d := range period.Days() {
		dto.Days = append(dto.Days, CalendarDayDTO{Date: d.String(), Selectable: selectable[d]})
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetAvailability runs the capacity check for one day.
// GET /api/providers/{id}/availability?date=YYYY-MM-DD
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")

	day, err := calendar.Parse(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	res := h.Checker.Check(r.Context(), providerID, day)
	writeJSON(w, http.StatusOK, AvailabilityDTO{Result: res, Gate: availability.GateFor(&res)})
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ListTemplates returns all templates.
// GET /api/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates", err)
		return
	}

	dtos := make([]TemplateDTO, len(templates))
	for i, t := range templates {
		dtos[i] = TemplateDTO{ID: t.ID, ProviderID: t.ProviderID, Name: t.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTemplate returns a template's offer.
// GET /api/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	offer, err := h.Quotes.Offer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// Quote prices a set of choices without a session.
// POST /api/templates/{id}/quote
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID := chi.URLParam(r, "id")

	var req QuoteRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	offer, err := h.Quotes.Offer(ctx, templateID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	choices := quote.Choices{
		Selection:       pricing.NewSelection(offer.Products),
		CityID:          req.CityID,
		PaymentMethodID: req.PaymentMethodID,
	}
	for _, item := range req.Items {
		p, ok := pricing.FindProduct(offer.Products, item.ProductID)
		if !ok {
			writeDomainError(w, fmt.Errorf("%w: %s", quote.ErrUnknownProduct, item.ProductID))
			return
		}
		choices.Selection.Set(p, item.Quantity)
	}
	if req.CityID != "" && pricing.FindCity(offer.Cities, req.CityID) == nil {
		writeDomainError(w, fmt.Errorf("%w: city %s", quote.ErrUnknownOption, req.CityID))
		return
	}
	method := pricing.FindPaymentMethod(offer.PaymentMethods, req.PaymentMethodID)
	if req.PaymentMethodID != "" && method == nil {
		writeDomainError(w, fmt.Errorf("%w: payment method %s", quote.ErrUnknownOption, req.PaymentMethodID))
		return
	}
	if req.Date != "" {
		// validated by the datetime tag
		choices.Date, _ = calendar.Parse(req.Date)
	}

	dto := QuoteDTO{}
	if strings.TrimSpace(req.CouponCode) != "" {
		res := h.Quotes.Coupons().Validate(ctx, req.CouponCode, templateID)
		choices.Coupon = res.Applied()
		dto.Coupon = &res
	}

	dto.Breakdown = pricing.ComputeBreakdown(offer.Input(choices))
	dto.Plan = pricing.ComputePlan(dto.Breakdown.Total, method)
	dto.Items = choices.Selection.Items(offer.Products)
	if dto.Items == nil {
		dto.Items = []pricing.LineItem{}
	}
	writeJSON(w, http.StatusOK, dto)
}

// ValidateCoupon checks a code against a template.
// POST /api/templates/{id}/coupons/validate
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "id")

	var req CouponRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.Quotes.Coupons().Validate(r.Context(), req.Code, templateID))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// OpenSession starts a quote session for a template.
// POST /api/templates/{id}/sessions
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Quotes.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Summary())
}

// GetSession returns the session's current summary.
// GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// CloseSession forgets a session.
// DELETE /api/sessions/{id}
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.Quotes.Close(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// SetDate picks the event date and checks its availability.
// PUT /api/sessions/{id}/date
func (h *Handler) SetDate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req DateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if req.Date == "" {
		sess.ClearDate()
	} else {
		day, _ := calendar.Parse(req.Date)
		if _, current := sess.SetDate(r.Context(), day); !current {
			h.logger.Debug().Str("session_id", sess.ID).Str("date", req.Date).Msg("date superseded")
		}
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// SetItems sets product quantities.
// PUT /api/sessions/{id}/items
func (h *Handler) SetItems(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ItemsRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	// A repeated product keeps its last quantity.
	quantities := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		quantities[item.ProductID] = item.Quantity
	}
	if err := sess.SetQuantities(quantities); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// SetLocation picks the event city.
// PUT /api/sessions/{id}/location
func (h *Handler) SetLocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req LocationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := sess.SetCity(req.CityID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// SetPayment picks the payment method.
// PUT /api/sessions/{id}/payment
func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := sess.SetPaymentMethod(req.PaymentMethodID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// SetContact stores the client's identity and extra answers.
// PUT /api/sessions/{id}/contact
func (h *Handler) SetContact(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ContactRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	sess.SetContact(quote.Contact{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	for id, value := range req.Extra {
		if err := sess.SetExtra(id, value); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// ApplyCoupon validates and keeps a coupon on the session. An invalid code
// is not an HTTP error; the summary carries the validation message.
// POST /api/sessions/{id}/coupon
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req CouponRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if _, err := sess.ApplyCoupon(r.Context(), req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// RemoveCoupon drops the session's coupon.
// DELETE /api/sessions/{id}/coupon
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.RemoveCoupon()
	writeJSON(w, http.StatusOK, sess.Summary())
}

// Submit hands the quote to the provider.
// POST /api/sessions/{id}/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sum, err := sess.Submit(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// session looks up the {id} session, writing a 404 when it is unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*quote.Session, bool) {
	sess, err := h.Quotes.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return sess, true
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (dev only).
// POST /api/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	if h.Cache != nil {
		templates, err := h.Store.ListTemplates(ctx)
		if err != nil {
			return err
		}
		for _, t := range templates {
			h.invalidate(ctx, t.ProviderID)
		}
	}
	return h.Store.Reset(ctx)
}

func (h *Handler) invalidate(ctx context.Context, providerID string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx, providerID); err != nil {
		h.logger.Warn().Err(err).Str("provider_id", providerID).Msg("availability cache invalidation failed")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps quote errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var missing *quote.MissingFieldsError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Required fields missing",
			Details: err.Error(),
			Fields:  missing.Fields,
		})
	case quote.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case quote.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case quote.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, quote.ErrNotifyFailed):
		writeError(w, http.StatusBadGateway, "Could not reach the provider, please try again", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// An empty body decodes as the zero value.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err), err)
		return false
	}
	return true
}

var validationMessages = map[string]string{
	"required": "{field} is required",
	"gte":      "{field} must be greater than or equal to {param}",
	"max":      "{field} must be at most {param} characters",
	"email":    "{field} must be a valid email address",
	"datetime": "{field} must be a date in YYYY-MM-DD format",
}

// validationMessage turns the first failed tag into a readable message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	for _, fe := range verrs {
		if msg, ok := validationMessages[fe.Tag()]; ok {
			msg = strings.ReplaceAll(msg, "{field}", fe.Field())
			return strings.ReplaceAll(msg, "{param}", fe.Param())
		}
	}
	return verrs.Error()
}
