package quote_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/pricing"
	"github.com/warp/quote-engine/quote"
	"github.com/warp/quote-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type recordingNotifier struct {
	mu   sync.Mutex
	sent []quote.Summary
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, sum quote.Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sum)
	return nil
}

type fixture struct {
	store    *memory.Memory
	notifier *recordingNotifier
	svc      *quote.Service
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T, tpl quote.Template) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	require.NoError(t, st.SaveTemplate(ctx, tpl))
	require.NoError(t, st.SaveProduct(ctx, tpl.ID, pricing.Product{ID: "venue", Name: "Venue", UnitPrice: dec("500"), Required: true, Order: 1}))
	require.NoError(t, st.SaveProduct(ctx, tpl.ID, pricing.Product{ID: "photo", Name: "Photography", UnitPrice: dec("250"), Order: 2}))
	require.NoError(t, st.SavePaymentMethod(ctx, tpl.ID, pricing.PaymentMethod{
		ID: "card", Name: "Card", DownPaymentKind: pricing.DownPaymentPercent, DownPaymentValue: dec("20"),
		MaxInstallments: 4, SurchargePercent: dec("5"),
	}))
	require.NoError(t, st.SaveSeason(ctx, tpl.ProviderID, pricing.Season{
		ID: "summer", Name: "Summer", Start: calendar.MustParse("2025-06-01"), End: calendar.MustParse("2025-08-31"), Multiplier: dec("1.10"),
	}))
	require.NoError(t, st.SaveCity(ctx, tpl.ProviderID, pricing.City{ID: "sp", Name: "Sao Paulo", PercentAdjustment: dec("20"), FixedTravelFee: dec("50")}))
	require.NoError(t, st.SaveCoupon(ctx, coupon.Coupon{
		ID: "c1", TemplateID: tpl.ID, Code: "save10", DiscountKind: pricing.DiscountPercent, Value: dec("10"), Active: true,
	}))
	require.NoError(t, st.SaveExtraField(ctx, tpl.ID, quote.ExtraField{ID: "guests", Label: "Number of guests", Required: true}))

	resolver := availability.NewResolver(st, zerolog.Nop())
	resolver.Backoff = time.Millisecond
	notifier := &recordingNotifier{}
	svc := quote.NewService(st, resolver, coupon.NewValidator(st, zerolog.Nop()), notifier, zerolog.Nop())
	return &fixture{store: st, notifier: notifier, svc: svc}
}

func basicTemplate() quote.Template {
	return quote.Template{ID: "tpl-1", ProviderID: "prov-1", Name: "Wedding"}
}

func fillContact(t *testing.T, s *quote.Session) {
	t.Helper()
	s.SetContact(quote.Contact{Name: "Ana", Email: "ana@example.com", Phone: "+55 11 99999-0000"})
	require.NoError(t, s.SetExtra("guests", "120"))
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpen_UnknownTemplate(t *testing.T) {
	f := newFixture(t, basicTemplate())

	_, err := f.svc.Open(context.Background(), "missing")

	assert.ErrorIs(t, err, quote.ErrTemplateNotFound)
	assert.True(t, quote.IsNotFound(err))
}

func TestOpen_RequiredProductsPreselected(t *testing.T) {
	f := newFixture(t, basicTemplate())

	s, err := f.svc.Open(context.Background(), "tpl-1")
	require.NoError(t, err)

	assert.Equal(t, pricing.Selection{"venue": 1}, s.Selection())
	assert.True(t, s.Breakdown().Total.Equal(dec("500")))

	got, err := f.svc.Session(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestSession_UnknownSession(t *testing.T) {
	f := newFixture(t, basicTemplate())
	_, err := f.svc.Session("nope")
	assert.True(t, quote.IsNotFound(err))
}

// =============================================================================
// PRICING THROUGH THE SESSION
// =============================================================================

func TestSession_BreakdownFollowsChoices(t *testing.T) {
	tpl := basicTemplate()
	tpl.SeasonalPricing = true
	tpl.GeoPricing = true
	f := newFixture(t, tpl)
	ctx := context.Background()

	s, err := f.svc.Open(ctx, "tpl-1")
	require.NoError(t, err)

	// GIVEN: venue + 2 photographers = 1000, a summer date, Sao Paulo, card
	require.NoError(t, s.SetQuantity("photo", 2))
	_, applied := s.SetDate(ctx, calendar.MustParse("2025-07-12"))
	require.True(t, applied)
	require.NoError(t, s.SetCity("sp"))
	require.NoError(t, s.SetPaymentMethod("card"))
	res, err := s.ApplyCoupon(ctx, "save10")
	require.NoError(t, err)
	require.True(t, res.Valid)

	// WHEN
	b := s.Breakdown()
	p := s.Plan()

	// THEN: 1000 -> 1100 -> +220 +50 = 1370 -> +68.5 = 1438.5 -> -143.85 = 1294.65
	assert.True(t, b.Subtotal.Equal(dec("1000")))
	assert.True(t, b.SeasonalAdjustment.Equal(dec("100")))
	assert.True(t, b.GeoAdjustmentPercent.Equal(dec("220")))
	assert.True(t, b.PaymentSurcharge.Equal(dec("68.5")))
	assert.True(t, b.CouponDiscount.Equal(dec("143.85")))
	assert.True(t, b.Total.Equal(dec("1294.65")), b.Total.String())

	assert.True(t, p.DownPayment.Equal(dec("258.93")))
	assert.True(t, p.Remaining.Equal(dec("1035.72")))
	assert.Equal(t, 4, p.InstallmentCount)
	assert.True(t, p.InstallmentAmount.Equal(dec("258.93")))
}

func TestSession_InvalidCouponContributesNothing(t *testing.T) {
	f := newFixture(t, basicTemplate())
	ctx := context.Background()
	s, _ := f.svc.Open(ctx, "tpl-1")

	res, err := s.ApplyCoupon(ctx, "BOGUS")
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.True(t, s.Breakdown().CouponDiscount.IsZero())
	assert.True(t, s.Breakdown().Total.Equal(dec("500")))
}

func TestSession_StaleCityAfterReload(t *testing.T) {
	tpl := basicTemplate()
	tpl.GeoPricing = true
	f := newFixture(t, tpl)
	ctx := context.Background()
	s, _ := f.svc.Open(ctx, "tpl-1")
	require.NoError(t, s.SetCity("sp"))
	assert.True(t, s.Breakdown().Total.Equal(dec("650")))

	// GIVEN: the provider deletes the city the client picked
	f.store.DeleteCity("prov-1", "sp")
	require.NoError(t, s.Reload(ctx))

	// THEN: no adjustment, no failure
	b := s.Breakdown()
	assert.True(t, b.GeoAdjustmentPercent.IsZero())
	assert.True(t, b.Total.Equal(dec("500")))
}

func TestSession_UnknownChoicesRejected(t *testing.T) {
	f := newFixture(t, basicTemplate())
	s, _ := f.svc.Open(context.Background(), "tpl-1")

	assert.ErrorIs(t, s.SetQuantity("ghost", 1), quote.ErrUnknownProduct)
	assert.ErrorIs(t, s.SetCity("rio"), quote.ErrUnknownOption)
	assert.ErrorIs(t, s.SetPaymentMethod("cash"), quote.ErrUnknownOption)
	assert.ErrorIs(t, s.SetExtra("nope", "x"), quote.ErrUnknownOption)
	assert.True(t, quote.IsClientError(s.SetCity("rio")))
}

func TestSession_RequiredProductCannotBeRemoved(t *testing.T) {
	f := newFixture(t, basicTemplate())
	s, _ := f.svc.Open(context.Background(), "tpl-1")

	require.NoError(t, s.SetQuantity("venue", 0))
	assert.Equal(t, 1, s.Selection()["venue"])
}

// =============================================================================
// REQUIRED-FIELD GATE
// =============================================================================

func TestSession_RequiredFieldGate(t *testing.T) {
	tpl := basicTemplate()
	tpl.RequireContactFields = true
	tpl.SeasonalPricing = true
	f := newFixture(t, tpl)
	ctx := context.Background()
	s, _ := f.svc.Open(ctx, "tpl-1")

	// GIVEN: nothing filled in
	g := s.RequiredFields()
	assert.False(t, g.Complete)
	assert.Equal(t, []string{"Name", "Email", "Phone", "Date", "Number of guests"}, g.Missing)
	assert.False(t, g.CanSeeTotals)
	assert.NotEmpty(t, g.Message)

	// THEN: products, payment and coupons are locked, totals hidden
	assert.ErrorIs(t, s.SetQuantity("photo", 1), quote.ErrFieldsLocked)
	assert.ErrorIs(t, s.SetPaymentMethod("card"), quote.ErrFieldsLocked)
	_, err := s.ApplyCoupon(ctx, "SAVE10")
	assert.ErrorIs(t, err, quote.ErrFieldsLocked)
	assert.Nil(t, s.Summary().Breakdown)

	// WHEN: everything is filled in
	fillContact(t, s)
	s.SetDate(ctx, calendar.MustParse("2025-09-03"))

	// THEN: unlocked
	g = s.RequiredFields()
	assert.True(t, g.Complete)
	assert.Empty(t, g.Missing)
	assert.NoError(t, s.SetQuantity("photo", 1))
	assert.NotNil(t, s.Summary().Breakdown)
}

func TestSession_NoGateWhenTemplateDoesNotRequireFields(t *testing.T) {
	f := newFixture(t, basicTemplate())
	s, _ := f.svc.Open(context.Background(), "tpl-1")

	g := s.RequiredFields()
	assert.True(t, g.Complete)
	assert.True(t, g.CanAddProducts)
	assert.NoError(t, s.SetQuantity("photo", 1))
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_MissingFields(t *testing.T) {
	f := newFixture(t, basicTemplate())
	s, _ := f.svc.Open(context.Background(), "tpl-1")
	s.SetContact(quote.Contact{Name: "Ana"})

	_, err := s.Submit(context.Background())

	require.ErrorIs(t, err, quote.ErrMissingFields)
	var mf *quote.MissingFieldsError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, []string{"Email", "Phone", "Number of guests"}, mf.Fields)
	assert.Empty(t, f.notifier.sent)
}

func TestSubmit_RestrictiveOccupiedBlocked(t *testing.T) {
	f := newFixture(t, basicTemplate())
	ctx := context.Background()

	// GIVEN: restrictive provider, the chosen day already has its one event
	cfg := availability.DefaultRuleConfig("prov-1")
	cfg.WarningMode = availability.WarningRestrictive
	require.NoError(t, f.store.SaveRuleConfig(ctx, cfg))
	day := calendar.MustParse("2025-10-04")
	require.NoError(t, f.store.AddEvent(ctx, availability.EventRecord{ID: "e1", ProviderID: "prov-1", Date: day, Status: availability.EventConfirmed}))

	s, _ := f.svc.Open(ctx, "tpl-1")
	fillContact(t, s)
	res, applied := s.SetDate(ctx, day)
	require.True(t, applied)
	require.Equal(t, availability.StatusOccupied, res.Status)

	// WHEN
	_, err := s.Submit(ctx)

	// THEN
	assert.ErrorIs(t, err, quote.ErrSubmissionBlocked)
	assert.True(t, quote.IsConflict(err))
	assert.True(t, s.Gate().OfferContact)
	assert.Empty(t, f.notifier.sent)
}

func TestSubmit_SuggestiveOccupiedAllowed(t *testing.T) {
	f := newFixture(t, basicTemplate())
	ctx := context.Background()
	day := calendar.MustParse("2025-10-04")
	require.NoError(t, f.store.AddEvent(ctx, availability.EventRecord{ID: "e1", ProviderID: "prov-1", Date: day, Status: availability.EventPending}))

	s, _ := f.svc.Open(ctx, "tpl-1")
	fillContact(t, s)
	s.SetDate(ctx, day)

	sum, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Gate.OfferContact)
	require.Len(t, f.notifier.sent, 1)
}

func TestSubmit_DegradedCheckNeverBlocks(t *testing.T) {
	f := newFixture(t, basicTemplate())
	ctx := context.Background()
	cfg := availability.DefaultRuleConfig("prov-1")
	cfg.WarningMode = availability.WarningRestrictive
	require.NoError(t, f.store.SaveRuleConfig(ctx, cfg))
	day := calendar.MustParse("2025-10-04")
	require.NoError(t, f.store.AddEvent(ctx, availability.EventRecord{ID: "e1", ProviderID: "prov-1", Date: day, Status: availability.EventConfirmed}))

	// GIVEN: the source is down for every attempt
	f.store.FailSnapshots(3, nil)

	s, _ := f.svc.Open(ctx, "tpl-1")
	fillContact(t, s)
	res, _ := s.SetDate(ctx, day)
	require.True(t, res.Degraded)
	assert.Equal(t, 3, f.store.SnapshotCalls())

	_, err := s.Submit(ctx)
	assert.NoError(t, err)
}

func TestSubmit_SummaryHandedToNotifier(t *testing.T) {
	f := newFixture(t, basicTemplate())
	ctx := context.Background()
	s, _ := f.svc.Open(ctx, "tpl-1")
	fillContact(t, s)
	require.NoError(t, s.SetQuantity("photo", 1))
	require.NoError(t, s.SetPaymentMethod("card"))
	s.SetDate(ctx, calendar.MustParse("2025-10-08"))

	sum, err := s.Submit(ctx)
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, s.ID, sent.SessionID)
	assert.Equal(t, "Ana", sent.Contact.Name)
	assert.Equal(t, "120", sent.Extra["guests"])
	require.Len(t, sent.Items, 2)
	require.NotNil(t, sent.Breakdown)
	assert.True(t, sent.Breakdown.Total.Equal(dec("787.5")))
	require.NotNil(t, sent.Plan)
	assert.True(t, sent.Plan.DownPayment.Equal(dec("157.5")))
	require.NotNil(t, sent.Availability)
	assert.Equal(t, availability.StatusAvailable, sent.Availability.Status)
	assert.NotNil(t, sum.SubmittedAt)

	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, quote.ErrAlreadySubmitted)
}

func TestSubmit_NotifierFailure(t *testing.T) {
	f := newFixture(t, basicTemplate())
	f.notifier.err = errors.New("smtp down")
	ctx := context.Background()
	s, _ := f.svc.Open(ctx, "tpl-1")
	fillContact(t, s)

	_, err := s.Submit(ctx)
	require.ErrorIs(t, err, quote.ErrNotifyFailed)

	// can retry once the notifier recovers
	f.notifier.err = nil
	_, err = s.Submit(ctx)
	assert.NoError(t, err)
}

func TestExpire(t *testing.T) {
	f := newFixture(t, basicTemplate())
	ctx := context.Background()
	s, err := f.svc.Open(ctx, "tpl-1")
	require.NoError(t, err)

	// a fresh session survives
	assert.Equal(t, 0, f.svc.Expire(time.Hour))
	_, err = f.svc.Session(s.ID)
	require.NoError(t, err)

	// everything opened before the cutoff goes
	assert.Equal(t, 1, f.svc.Expire(-time.Hour))
	_, err = f.svc.Session(s.ID)
	assert.ErrorIs(t, err, quote.ErrSessionNotFound)
}

func TestExpire_CountsFromLastActivity(t *testing.T) {
	f := newFixture(t, basicTemplate())
	ctx := context.Background()
	var mu sync.Mutex
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	quote.SetClock(f.svc, func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	// GIVEN: a session opened long ago but used recently
	s, err := f.svc.Open(ctx, "tpl-1")
	require.NoError(t, err)
	advance(2 * time.Hour)
	_, err = f.svc.Session(s.ID)
	require.NoError(t, err)
	advance(30 * time.Minute)

	// WHEN/THEN: it survives an hour of allowed idleness
	assert.Equal(t, 0, f.svc.Expire(time.Hour))

	// WHEN/THEN: it goes once idle past the limit
	advance(time.Hour)
	assert.Equal(t, 1, f.svc.Expire(time.Hour))
	_, err = f.svc.Session(s.ID)
	assert.ErrorIs(t, err, quote.ErrSessionNotFound)
}

type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (n *blockingNotifier) Notify(_ context.Context, _ quote.Summary) error {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	n.entered <- struct{}{}
	<-n.release
	return nil
}

func TestSubmit_ConcurrentSubmitNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	tpl := basicTemplate()
	require.NoError(t, st.SaveTemplate(ctx, tpl))
	require.NoError(t, st.SaveProduct(ctx, tpl.ID, pricing.Product{ID: "venue", Name: "Venue", UnitPrice: dec("500"), Required: true}))
	notifier := &blockingNotifier{entered: make(chan struct{}, 2), release: make(chan struct{})}
	svc := quote.NewService(st, availability.NewResolver(st, zerolog.Nop()), coupon.NewValidator(st, zerolog.Nop()), notifier, zerolog.Nop())

	s, err := svc.Open(ctx, "tpl-1")
	require.NoError(t, err)
	s.SetContact(quote.Contact{Name: "Ana", Email: "ana@example.com", Phone: "+55 11 99999-0000"})

	// GIVEN: a first submit waiting on the notifier
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx)
		done <- err
	}()
	<-notifier.entered

	// WHEN: a second submit arrives meanwhile
	_, err = s.Submit(ctx)

	// THEN: it is refused and the provider is notified once
	assert.ErrorIs(t, err, quote.ErrSubmitInProgress)
	assert.True(t, quote.IsConflict(err))
	close(notifier.release)
	require.NoError(t, <-done)

	notifier.mu.Lock()
	assert.Equal(t, 1, notifier.calls)
	notifier.mu.Unlock()
	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, quote.ErrAlreadySubmitted)
}

func TestSetQuantities_AllOrNothing(t *testing.T) {
	f := newFixture(t, basicTemplate())
	s, err := f.svc.Open(context.Background(), "tpl-1")
	require.NoError(t, err)
	fillContact(t, s)

	// WHEN: one of the products is not offered
	err = s.SetQuantities(map[string]int{"photo": 3, "balloons": 1})

	// THEN: no quantity changes
	assert.ErrorIs(t, err, quote.ErrUnknownProduct)
	assert.Equal(t, pricing.Selection{"venue": 1}, s.Selection())

	require.NoError(t, s.SetQuantities(map[string]int{"photo": 3, "venue": 2}))
	assert.Equal(t, pricing.Selection{"venue": 2, "photo": 3}, s.Selection())
}
