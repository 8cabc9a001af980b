/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built provider configurations that populate the database
	with realistic data for demos. Each scenario is one provider JSON
	document in the factory format: rules, blocks, events already booked,
	seasons, cities and one quote template.

AVAILABLE SCENARIOS:

	photo-studio:   Restrictive capacity of 2, Sundays closed, summer season,
	                travel fees by city, card in installments
	dj-alternating: Works every other week on even days, suggestive warnings
	venue-locked:   Contact fields unlock the form, fixed coupon and fixed
	                down payment, informative warnings

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Parse the provider JSON via the factory
 3. Save every record

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "photo-studio"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Reset, LoadProvider
  - factory/provider.go: Provider JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	config string
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "photo-studio",
			Name:        "Photo Studio",
			Description: "Two shoots a day, Sundays closed, summer surcharge, travel fees by city",
			TemplateID:  "lumen-wedding",
		},
		config: photoStudioJSON,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "dj-alternating",
			Name:        "DJ on Alternating Weeks",
			Description: "Works odd weeks on even days only; occupied dates suggest contacting the DJ",
			TemplateID:  "dj-party",
		},
		config: djAlternatingJSON,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "venue-locked",
			Name:        "Venue with Locked Form",
			Description: "Name, email and phone unlock products and totals; fixed coupon and deposit",
			TemplateID:  "hall-rental",
		},
		config: venueLockedJSON,
	},
}

const photoStudioJSON = `{
  "provider_id": "studio-lumen",
  "max_events_per_day": 2,
  "warning_mode": "restrictive",
  "mass_rules_active": true,
  "blocked_weekdays": [0],
  "blocked_dates": [{"date": "2025-11-20", "reason": "Studio maintenance"}],
  "blocked_periods": [{"id": "year-end", "start": "2025-12-24", "end": "2026-01-02", "reason": "Year-end break"}],
  "events": [
    {"date": "2025-10-04", "client_name": "Ana"},
    {"date": "2025-10-04", "client_name": "Bruno", "status": "pending"},
    {"date": "2025-10-11", "client_name": "Carla"},
    {"date": "2025-10-18", "client_name": "Diego", "status": "cancelled"}
  ],
  "seasons": [
    {"id": "summer", "name": "Summer", "start": "2025-12-01", "end": "2026-02-28", "multiplier": "1.10"}
  ],
  "cities": [
    {"id": "sp", "name": "Sao Paulo", "state": "SP", "country": "BR", "percent_adjustment": "20", "fixed_travel_fee": "50"},
    {"id": "cps", "name": "Campinas", "state": "SP", "country": "BR", "percent_adjustment": "0", "fixed_travel_fee": "120"}
  ],
  "templates": [{
    "id": "lumen-wedding",
    "name": "Wedding coverage",
    "seasonal_pricing": true,
    "geo_pricing": true,
    "products": [
      {"id": "ceremony", "name": "Ceremony coverage", "unit_price": "1000", "required": true, "order": 1},
      {"id": "album", "name": "Printed album", "unit_price": "350", "order": 2},
      {"id": "drone", "name": "Drone footage", "unit_price": "400", "order": 3}
    ],
    "payment_methods": [
      {"id": "pix", "name": "Pix", "down_payment_kind": "percent", "down_payment_value": "100", "max_installments": 0, "surcharge_percent": "0"},
      {"id": "card", "name": "Credit card", "down_payment_kind": "percent", "down_payment_value": "30", "max_installments": 3, "surcharge_percent": "5"}
    ],
    "extra_fields": [{"id": "guests", "label": "Number of guests", "required": true}],
    "coupons": [
      {"code": "SAVE10", "value": "10", "expiry": "2026-12-31"},
      {"code": "SPRING", "value": "15", "expiry": "2025-03-31"},
      {"code": "VIP", "value": "20", "usage_limit": 3, "usage_count": 3}
    ]
  }]
}`

const djAlternatingJSON = `{
  "provider_id": "dj-nova",
  "max_events_per_day": 1,
  "warning_mode": "suggestive",
  "mass_rules_active": true,
  "even_odd_rule": "even_only",
  "alternating_week_rule": "odd_weeks",
  "alternating_week_anchor": "2025-01-05",
  "events": [{"date": "2025-10-10", "client_name": "Eva"}],
  "templates": [{
    "id": "dj-party",
    "name": "Party set",
    "products": [
      {"id": "set", "name": "4h DJ set", "unit_price": "800", "required": true, "order": 1},
      {"id": "lights", "name": "Light show", "unit_price": "250", "order": 2},
      {"id": "extra-hour", "name": "Extra hour", "unit_price": "150", "order": 3}
    ],
    "payment_methods": [
      {"id": "transfer", "name": "Bank transfer", "down_payment_kind": "percent", "down_payment_value": "50", "max_installments": 1, "surcharge_percent": "0"}
    ],
    "coupons": [{"code": "PARTY5", "value": "5"}]
  }]
}`

const venueLockedJSON = `{
  "provider_id": "hall-aurora",
  "max_events_per_day": 1,
  "warning_mode": "informative",
  "events": [{"date": "2025-10-25", "client_name": "Fabio"}],
  "cities": [{"id": "bh", "name": "Belo Horizonte", "state": "MG", "country": "BR", "percent_adjustment": "0", "fixed_travel_fee": "0"}],
  "templates": [{
    "id": "hall-rental",
    "name": "Hall rental",
    "require_contact_fields": true,
    "geo_pricing": true,
    "products": [
      {"id": "hall", "name": "Main hall (evening)", "unit_price": "3000", "required": true, "order": 1},
      {"id": "catering", "name": "Catering per guest", "unit_price": "85.50", "order": 2}
    ],
    "payment_methods": [
      {"id": "boleto", "name": "Boleto", "down_payment_kind": "fixed", "down_payment_value": "500", "max_installments": 5, "surcharge_percent": "2.5"}
    ],
    "extra_fields": [
      {"id": "guests", "label": "Number of guests", "required": true},
      {"id": "notes", "label": "Notes", "required": false}
    ],
    "coupons": [{"code": "WELCOME", "discount_kind": "fixed", "value": "200"}]
  }]
}`

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads one scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset", err)
		return
	}
	if err := h.loadScenario(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.logger.Info().Str("scenario", s.ID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// SeedScenarios loads every scenario without resetting. Used on startup
// against an empty database.
func (h *Handler) SeedScenarios(ctx context.Context) error {
	for _, s := range scenarios {
		if err := h.loadScenario(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	provider, err := h.Factory.ParseProvider(s.config)
	if err != nil {
		return fmt.Errorf("parse scenario %s: %w", s.ID, err)
	}
	if err := provider.Save(ctx, h.Store); err != nil {
		return fmt.Errorf("save scenario %s: %w", s.ID, err)
	}
	h.invalidate(ctx, provider.Rules.ProviderID)
	return nil
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}
