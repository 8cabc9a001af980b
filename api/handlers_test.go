/*
handlers_test.go - HTTP tests for the quote API

Tests for:
- Calendar and availability endpoints against a loaded scenario
- Stateless quote pricing end to end
- Session flow: date, items, contact, submit, and its refusals
- Error mapping (404, 400, 409, 422)
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/quote"
	"github.com/warp/quote-engine/store/sqlite"
)

type capturedNotifier struct {
	mu   sync.Mutex
	sent []quote.Summary
}

func (n *capturedNotifier) Notify(_ context.Context, sum quote.Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sum)
	return nil
}

type testServer struct {
	handler  *Handler
	router   http.Handler
	notifier *capturedNotifier
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	resolver := availability.NewResolver(st, zerolog.Nop())
	resolver.Backoff = time.Millisecond

	coupons := coupon.NewValidator(st, zerolog.Nop())
	coupons.Now = func() time.Time { return time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC) }

	notifier := &capturedNotifier{}
	quotes := quote.NewService(st, resolver, coupons, notifier, zerolog.Nop())

	h := NewHandler(st, quotes, resolver, zerolog.Nop())
	return &testServer{
		handler:  h,
		router:   NewRouter(h, RouterOptions{DevRoutes: true}),
		notifier: notifier,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) load(t *testing.T, scenarioID string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: scenarioID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// PROVIDERS
// =============================================================================

func TestGetCalendar_SundaysNotSelectable(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")

	rec := ts.do(t, http.MethodGet, "/api/providers/studio-lumen/calendar?month=2025-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cal := decodeBody[CalendarDTO](t, rec)
	assert.Equal(t, "2025-10", cal.Month)
	require.Len(t, cal.Days, 31)
	assert.Equal(t, "2025-10-05", cal.Days[4].Date)
	assert.False(t, cal.Days[4].Selectable, "Sunday")
	assert.True(t, cal.Days[5].Selectable, "Monday")
	// capacity does not affect the calendar
	assert.True(t, cal.Days[3].Selectable, "fully booked Saturday")
}

func TestGetCalendar_BadMonth(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/providers/p/calendar?month=2025-13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAvailability(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")

	tests := []struct {
		date      string
		status    availability.Status
		canSubmit bool
	}{
		{"2025-10-04", availability.StatusOccupied, false}, // confirmed + pending, capacity 2
		{"2025-10-11", availability.StatusPartial, true},
		{"2025-10-18", availability.StatusAvailable, true}, // only a cancelled event
		{"2025-10-05", availability.StatusBlocked, false},  // Sunday
		{"2025-11-20", availability.StatusBlocked, false},  // explicit block
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/providers/studio-lumen/availability?date="+tt.date, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			dto := decodeBody[AvailabilityDTO](t, rec)
			assert.Equal(t, tt.status, dto.Result.Status)
			assert.Equal(t, availability.WarningRestrictive, dto.Result.WarningMode)
			assert.Equal(t, tt.canSubmit, dto.Gate.SubmitAllowed)
			assert.False(t, dto.Result.Degraded)
		})
	}
}

func TestGetAvailability_BadDate(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/providers/p/availability?date=04/10/2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadProvider_ReportsIgnoredRules(t *testing.T) {
	// GIVEN: an alternating-week rule with an unreadable anchor
	ts := setupTestServer(t)
	body := map[string]any{
		"provider_id":             "p1",
		"mass_rules_active":       true,
		"alternating_week_rule":   "even_weeks",
		"alternating_week_anchor": "yesterday",
	}

	// WHEN
	rec := ts.do(t, http.MethodPost, "/api/providers", body)

	// THEN: the configuration is accepted and the ignored rule is reported
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[map[string]any](t, rec)
	assert.Len(t, resp["problems"], 1)

	rec = ts.do(t, http.MethodPost, "/api/providers", map[string]any{"warning_mode": "restrictive"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STATELESS QUOTE
// =============================================================================

func TestQuote_FullPipeline(t *testing.T) {
	// GIVEN: the photo studio, a summer date, Sao Paulo, card and SAVE10
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")

	req := QuoteRequest{
		Date:            "2025-12-10",
		Items:           []ItemRequest{{ProductID: "album", Quantity: 1}},
		CityID:          "sp",
		PaymentMethodID: "card",
		CouponCode:      " save10 ",
	}

	// WHEN
	rec := ts.do(t, http.MethodPost, "/api/templates/lumen-wedding/quote", req)

	// THEN: 1350 -> +135 season -> +297 +50 geo -> +91.6 card -> -192.36 coupon
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decodeBody[QuoteDTO](t, rec)
	b := q.Breakdown
	assert.Equal(t, "1350", b.Subtotal.String())
	assert.Equal(t, "135", b.SeasonalAdjustment.String())
	assert.Equal(t, "summer", b.SeasonID)
	assert.Equal(t, "297", b.GeoAdjustmentPercent.String())
	assert.Equal(t, "50", b.GeoTravelFee.String())
	assert.Equal(t, "91.6", b.PaymentSurcharge.String())
	assert.Equal(t, "192.36", b.CouponDiscount.String())
	assert.Equal(t, "1731.24", b.Total.String())

	assert.Equal(t, "519.372", q.Plan.DownPayment.String())
	assert.Equal(t, "1211.868", q.Plan.Remaining.String())
	assert.Equal(t, 3, q.Plan.InstallmentCount)
	assert.Equal(t, "403.956", q.Plan.InstallmentAmount.String())

	require.NotNil(t, q.Coupon)
	assert.True(t, q.Coupon.Valid)
	assert.Len(t, q.Items, 2) // ceremony is required
}

func TestQuote_InvalidCouponPricesWithoutDiscount(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")

	rec := ts.do(t, http.MethodPost, "/api/templates/lumen-wedding/quote", QuoteRequest{CouponCode: "SPRING"})
	require.Equal(t, http.StatusOK, rec.Code)

	q := decodeBody[QuoteDTO](t, rec)
	require.NotNil(t, q.Coupon)
	assert.False(t, q.Coupon.Valid)
	assert.Equal(t, coupon.ReasonExpired, q.Coupon.Reason)
	assert.True(t, q.Breakdown.CouponDiscount.IsZero())
	assert.Equal(t, "1000", q.Breakdown.Total.String())
}

func TestQuote_Errors(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")

	rec := ts.do(t, http.MethodPost, "/api/templates/nope/quote", QuoteRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/templates/lumen-wedding/quote", QuoteRequest{
		Items: []ItemRequest{{ProductID: "unicorn", Quantity: 1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/templates/lumen-wedding/quote", QuoteRequest{Date: "10/12/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Error, "YYYY-MM-DD")
}

func TestValidateCoupon(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")

	rec := ts.do(t, http.MethodPost, "/api/templates/lumen-wedding/coupons/validate", CouponRequest{Code: "vip"})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[coupon.Result](t, rec)
	assert.False(t, res.Valid)
	assert.Equal(t, coupon.ReasonExhausted, res.Reason)
}

// =============================================================================
// SESSIONS
// =============================================================================

func openSession(t *testing.T, ts *testServer, templateID string) quote.Summary {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/templates/"+templateID+"/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[quote.Summary](t, rec)
}

func TestSession_SubmitFlow(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")
	sum := openSession(t, ts, "lumen-wedding")
	base := "/api/sessions/" + sum.SessionID

	// GIVEN: an empty form cannot be submitted
	rec := ts.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, []string{"Name", "Email", "Phone", "Date", "City", "Number of guests"}, errResp.Fields)

	// WHEN: everything is filled in, on a fully booked date
	rec = ts.do(t, http.MethodPut, base+"/contact", ContactRequest{
		Name: "Ana", Email: "ana@example.com", Phone: "+55 11 99999-0000",
		Extra: map[string]string{"guests": "120"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, base+"/location", LocationRequest{CityID: "sp"}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, base+"/payment", PaymentRequest{PaymentMethodID: "pix"}).Code)

	rec = ts.do(t, http.MethodPut, base+"/date", DateRequest{Date: "2025-10-04"})
	require.Equal(t, http.StatusOK, rec.Code)
	sum = decodeBody[quote.Summary](t, rec)
	require.NotNil(t, sum.Availability)
	assert.Equal(t, availability.StatusOccupied, sum.Availability.Status)
	assert.False(t, sum.Gate.SubmitAllowed)

	// THEN: restrictive mode refuses the submission
	rec = ts.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, ts.notifier.sent)

	// WHEN: a free Monday is picked
	rec = ts.do(t, http.MethodPut, base+"/date", DateRequest{Date: "2025-10-06"})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: the quote goes out once
	rec = ts.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := decodeBody[quote.Summary](t, rec)
	require.NotNil(t, sent.SubmittedAt)
	require.NotNil(t, sent.Breakdown)
	// 1000 + 20% + 50, pix has no surcharge
	assert.Equal(t, "1250", sent.Breakdown.Total.String())
	assert.Equal(t, "1250", sent.Plan.DownPayment.String())
	require.Len(t, ts.notifier.sent, 1)
	assert.Equal(t, "Ana", ts.notifier.sent[0].Contact.Name)

	rec = ts.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSession_ItemsAndCoupon(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")
	base := "/api/sessions/" + openSession(t, ts, "lumen-wedding").SessionID

	rec := ts.do(t, http.MethodPut, base+"/items", ItemsRequest{Items: []ItemRequest{
		{ProductID: "ceremony", Quantity: 0}, // required, stays at 1
		{ProductID: "drone", Quantity: 2},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decodeBody[quote.Summary](t, rec)
	require.NotNil(t, sum.Breakdown)
	assert.Equal(t, "1800", sum.Breakdown.Subtotal.String())

	rec = ts.do(t, http.MethodPost, base+"/coupon", CouponRequest{Code: "save10"})
	require.Equal(t, http.StatusOK, rec.Code)
	sum = decodeBody[quote.Summary](t, rec)
	require.NotNil(t, sum.Coupon)
	assert.True(t, sum.Coupon.Valid)
	assert.Equal(t, "1620", sum.Breakdown.Total.String())

	rec = ts.do(t, http.MethodDelete, base+"/coupon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1800", decodeBody[quote.Summary](t, rec).Breakdown.Total.String())

	rec = ts.do(t, http.MethodPut, base+"/items", ItemsRequest{Items: []ItemRequest{{ProductID: "drone", Quantity: -1}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, base+"/location", LocationRequest{CityID: "rio"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSession_SetItemsAllOrNothing(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "photo-studio")
	base := "/api/sessions/" + openSession(t, ts, "lumen-wedding").SessionID

	// WHEN: a valid item is followed by a product the template does not offer
	rec := ts.do(t, http.MethodPut, base+"/items", ItemsRequest{Items: []ItemRequest{
		{ProductID: "album", Quantity: 2},
		{ProductID: "balloons", Quantity: 1},
	}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// THEN: the album quantity was not applied either
	rec = ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decodeBody[quote.Summary](t, rec)
	require.NotNil(t, sum.Breakdown)
	assert.Equal(t, "1000", sum.Breakdown.Subtotal.String())
	require.Len(t, sum.Items, 1)
}

func TestSession_LockedUntilContact(t *testing.T) {
	// GIVEN: a template that requires contact fields first
	ts := setupTestServer(t)
	ts.load(t, "venue-locked")
	sum := openSession(t, ts, "hall-rental")
	base := "/api/sessions/" + sum.SessionID

	assert.False(t, sum.Fields.CanAddProducts)
	assert.Nil(t, sum.Breakdown)

	// WHEN/THEN: products and coupons are refused
	rec := ts.do(t, http.MethodPut, base+"/items", ItemsRequest{Items: []ItemRequest{{ProductID: "catering", Quantity: 50}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPost, base+"/coupon", CouponRequest{Code: "WELCOME"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// WHEN: every required field is filled in
	rec = ts.do(t, http.MethodPut, base+"/contact", ContactRequest{
		Name: "Bia", Email: "bia@example.com", Phone: "31 3333-0000",
		Extra: map[string]string{"guests": "50"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, base+"/location", LocationRequest{CityID: "bh"}).Code)

	// THEN: the form unlocks
	rec = ts.do(t, http.MethodPut, base+"/items", ItemsRequest{Items: []ItemRequest{{ProductID: "catering", Quantity: 50}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, base+"/coupon", CouponRequest{Code: "WELCOME"})
	require.Equal(t, http.StatusOK, rec.Code)
	sum = decodeBody[quote.Summary](t, rec)
	require.NotNil(t, sum.Breakdown)
	// 3000 + 50 x 85.50 = 7275, fixed 200 off
	assert.Equal(t, "7075", sum.Breakdown.Total.String())
}

func TestSession_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/sessions/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/sessions/missing/submit", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/templates/missing/sessions", nil).Code)
}

func TestSession_Close(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "dj-alternating")
	base := "/api/sessions/" + openSession(t, ts, "dj-party").SessionID

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, base, nil).Code)
}

func TestSession_BadDate(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t, "dj-alternating")
	base := "/api/sessions/" + openSession(t, ts, "dj-party").SessionID

	rec := ts.do(t, http.MethodPut, base+"/date", DateRequest{Date: "2025-02-30"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(scenarios))

	rec = ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// every scenario loads, and loading resets the previous one
	for _, s := range list {
		ts.load(t, s.ID)
		rec = ts.do(t, http.MethodGet, "/api/templates", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		templates := decodeBody[[]TemplateDTO](t, rec)
		require.Len(t, templates, 1, s.ID)
		assert.Equal(t, s.TemplateID, templates[0].ID)
	}

	rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, list[len(list)-1].ID, decodeBody[ScenarioDTO](t, rec).ID)
}

func TestSeedScenarios(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.handler.SeedScenarios(context.Background()))

	templates, err := ts.handler.Store.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, len(scenarios))
}
