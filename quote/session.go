package quote

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/pricing"
)

// =============================================================================
// SESSION - One client's form state
// =============================================================================

// Session is safe for concurrent use. No lock is held while the availability
// check or the coupon lookup is in flight.
type Session struct {
	ID        string
	CreatedAt time.Time

	svc     *Service
	tracker *availability.Tracker

	// unix nanos of the last lookup through Service.Session
	lastActive atomic.Int64

	mu          sync.Mutex
	offer       Offer
	selection   pricing.Selection
	cityID      string
	methodID    string
	coupon      *coupon.Result
	contact     Contact
	extra       map[string]string
	submitting  bool
	submittedAt *time.Time
}

func newSession(id string, svc *Service, offer Offer) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: svc.now(),
		svc:       svc,
		tracker:   availability.NewTracker(svc.checker, offer.Template.ProviderID),
		offer:     offer,
		selection: pricing.NewSelection(offer.Products),
		extra:     map[string]string{},
	}
	s.touch(s.CreatedAt)
	return s
}

func (s *Session) touch(t time.Time) { s.lastActive.Store(t.UnixNano()) }

// LastActive is when the session was opened or last looked up.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) Offer() Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offer
}

// =============================================================================
// DATE
// =============================================================================

// SetDate selects day and checks its availability. The bool is false when a
// newer SetDate or ClearDate superseded this one before it finished.
func (s *Session) SetDate(ctx context.Context, day calendar.Day) (availability.Result, bool) {
	return s.tracker.Select(ctx, day)
}

// RefreshAvailability re-checks the selected date.
func (s *Session) RefreshAvailability(ctx context.Context) (availability.Result, bool) {
	return s.tracker.Refresh(ctx)
}

func (s *Session) ClearDate() {
	s.tracker.Clear()
}

func (s *Session) Date() calendar.Day {
	return s.tracker.Day()
}

// Availability returns the result for the selected date, nil while nothing
// is selected or the check is still running.
func (s *Session) Availability() *availability.Result {
	res, ok := s.tracker.Current()
	if !ok {
		return nil
	}
	return &res
}

// =============================================================================
// CHOICES
// =============================================================================

// SetQuantity changes a product's quantity. Required products stay at 1 or
// more; optional products set to 0 are removed.
func (s *Session) SetQuantity(productID string, qty int) error {
	return s.SetQuantities(map[string]int{productID: qty})
}

// SetQuantities changes several quantities at once. Nothing changes unless
// every product is offered.
func (s *Session) SetQuantities(quantities map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make(map[string]pricing.Product, len(quantities))
	for id := range quantities {
		p, ok := pricing.FindProduct(s.offer.Products, id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProduct, id)
		}
		products[id] = p
	}
	if !s.gateLocked().CanAddProducts {
		return ErrFieldsLocked
	}
	for id, qty := range quantities {
		s.selection.Set(products[id], qty)
	}
	return nil
}

func (s *Session) Selection() pricing.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Clone()
}

// SetCity selects a city by id. An empty id clears the choice.
func (s *Session) SetCity(cityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cityID != "" && pricing.FindCity(s.offer.Cities, cityID) == nil {
		return fmt.Errorf("%w: city %s", ErrUnknownOption, cityID)
	}
	s.cityID = cityID
	return nil
}

// SetPaymentMethod selects a payment method by id. An empty id clears it.
func (s *Session) SetPaymentMethod(methodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if methodID != "" && pricing.FindPaymentMethod(s.offer.PaymentMethods, methodID) == nil {
		return fmt.Errorf("%w: payment method %s", ErrUnknownOption, methodID)
	}
	if methodID != "" && !s.gateLocked().CanUsePayment {
		return ErrFieldsLocked
	}
	s.methodID = methodID
	return nil
}

// ApplyCoupon validates code against the session's template and keeps the
// result, valid or not. Only a valid result affects the breakdown.
func (s *Session) ApplyCoupon(ctx context.Context, code string) (coupon.Result, error) {
	s.mu.Lock()
	templateID := s.offer.Template.ID
	canUse := s.gateLocked().CanUseCoupons
	s.mu.Unlock()

	if !canUse {
		return coupon.Result{}, ErrFieldsLocked
	}

	res := s.svc.coupons.Validate(ctx, code, templateID)

	s.mu.Lock()
	s.coupon = &res
	s.mu.Unlock()
	return res, nil
}

func (s *Session) RemoveCoupon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupon = nil
}

func (s *Session) SetContact(c Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contact = c
}

// SetExtra stores the answer to a custom field. Unknown field ids are
// rejected.
func (s *Session) SetExtra(fieldID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.offer.ExtraFields {
		if f.ID == fieldID {
			s.extra[fieldID] = value
			return nil
		}
	}
	return fmt.Errorf("%w: field %s", ErrUnknownOption, fieldID)
}

// Reload replaces the offer with the catalog's current one. Choices are kept;
// ones that no longer exist simply stop contributing to the price.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	templateID := s.offer.Template.ID
	s.mu.Unlock()

	offer, err := s.svc.loadOffer(ctx, templateID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.offer = *offer
	for _, p := range offer.Products {
		if p.Required && s.selection[p.ID] < 1 {
			s.selection[p.ID] = 1
		}
	}
	return nil
}

// =============================================================================
// DERIVED STATE
// =============================================================================

// Breakdown re-derives the price from the current choices.
func (s *Session) Breakdown() pricing.Breakdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakdownLocked()
}

// Plan splits the current total under the selected payment method.
func (s *Session) Plan() pricing.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.breakdownLocked()
	return pricing.ComputePlan(b.Total, pricing.FindPaymentMethod(s.offer.PaymentMethods, s.methodID))
}

// Gate is the availability gate for the selected date.
func (s *Session) Gate() availability.Gate {
	return availability.GateFor(s.Availability())
}

// RequiredFields reports which parts of the form are unlocked.
func (s *Session) RequiredFields() FieldGate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateLocked()
}

func (s *Session) choicesLocked() Choices {
	c := Choices{
		Selection:       s.selection,
		Date:            s.tracker.Day(),
		CityID:          s.cityID,
		PaymentMethodID: s.methodID,
	}
	if s.coupon != nil {
		c.Coupon = s.coupon.Applied()
	}
	return c
}

func (s *Session) breakdownLocked() pricing.Breakdown {
	return pricing.ComputeBreakdown(s.offer.Input(s.choicesLocked()))
}

func (s *Session) fieldStateLocked() fieldState {
	return fieldState{
		contact:  s.contact,
		extra:    s.extra,
		date:     s.tracker.Day(),
		cityID:   s.cityID,
		template: s.offer.Template,
		fields:   s.offer.ExtraFields,
	}
}

func (s *Session) gateLocked() FieldGate {
	return gateFields(s.fieldStateLocked())
}

// =============================================================================
// SUMMARY AND SUBMIT
// =============================================================================

// Summary is the plain data handed to the messaging collaborator. Breakdown
// and Plan are nil while the field gate hides totals.
type Summary struct {
	SessionID     string                 `json:"session_id"`
	TemplateID    string                 `json:"template_id"`
	TemplateName  string                 `json:"template_name"`
	ProviderID    string                 `json:"provider_id"`
	Date          calendar.Day           `json:"date"`
	City          *pricing.City          `json:"city,omitempty"`
	PaymentMethod *pricing.PaymentMethod `json:"payment_method,omitempty"`
	Items         []pricing.LineItem     `json:"items"`
	Breakdown     *pricing.Breakdown     `json:"breakdown,omitempty"`
	Plan          *pricing.Plan          `json:"plan,omitempty"`
	Coupon        *coupon.Result         `json:"coupon,omitempty"`
	Contact       Contact                `json:"contact"`
	Extra         map[string]string      `json:"extra"`
	Availability  *availability.Result   `json:"availability,omitempty"`
	Gate          availability.Gate      `json:"gate"`
	Fields        FieldGate              `json:"fields"`
	SubmittedAt   *time.Time             `json:"submitted_at,omitempty"`
}

func (s *Session) Summary() Summary {
	avail := s.Availability()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked(avail)
}

func (s *Session) summaryLocked(avail *availability.Result) Summary {
	fields := s.gateLocked()
	extra := make(map[string]string, len(s.extra))
	for k, v := range s.extra {
		extra[k] = v
	}

	sum := Summary{
		SessionID:     s.ID,
		TemplateID:    s.offer.Template.ID,
		TemplateName:  s.offer.Template.Name,
		ProviderID:    s.offer.Template.ProviderID,
		Date:          s.tracker.Day(),
		City:          pricing.FindCity(s.offer.Cities, s.cityID),
		PaymentMethod: pricing.FindPaymentMethod(s.offer.PaymentMethods, s.methodID),
		Items:         s.selection.Items(s.offer.Products),
		Coupon:        s.coupon,
		Contact:       s.contact,
		Extra:         extra,
		Availability:  avail,
		Gate:          availability.GateFor(avail),
		Fields:        fields,
		SubmittedAt:   s.submittedAt,
	}
	if sum.Items == nil {
		sum.Items = []pricing.LineItem{}
	}
	if fields.CanSeeTotals {
		b := s.breakdownLocked()
		p := pricing.ComputePlan(b.Total, sum.PaymentMethod)
		sum.Breakdown = &b
		sum.Plan = &p
	}
	return sum
}

// Submit hands the final summary to the notifier. It refuses when required
// fields are blank, or when the availability gate disables submission.
// A quote is never sent without name, email and phone, whether or not the
// template locks the form behind them.
func (s *Session) Submit(ctx context.Context) (Summary, error) {
	avail := s.Availability()
	gate := availability.GateFor(avail)

	s.mu.Lock()
	if s.submittedAt != nil {
		s.mu.Unlock()
		return Summary{}, ErrAlreadySubmitted
	}
	if s.submitting {
		s.mu.Unlock()
		return Summary{}, ErrSubmitInProgress
	}
	if missing := missingFields(s.fieldStateLocked()); len(missing) > 0 {
		s.mu.Unlock()
		return Summary{}, &MissingFieldsError{Fields: missing}
	}
	if !gate.SubmitAllowed {
		s.mu.Unlock()
		return Summary{}, &BlockedError{Date: s.tracker.Day().String(), Reason: gate.Reason}
	}
	sum := s.summaryLocked(avail)
	s.submitting = true
	s.mu.Unlock()

	if err := s.svc.notifier.Notify(ctx, sum); err != nil {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
		return Summary{}, fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}

	now := s.svc.now()
	s.mu.Lock()
	s.submitting = false
	s.submittedAt = &now
	s.mu.Unlock()
	sum.SubmittedAt = &now

	s.svc.logger.Info().
		Str("session_id", s.ID).
		Str("template_id", sum.TemplateID).
		Str("date", sum.Date.String()).
		Msg("quote submitted")
	return sum, nil
}
