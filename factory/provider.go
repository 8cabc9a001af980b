/*
Package factory provides JSON to Go provider configuration conversion.

PURPOSE:
  Converts a provider's JSON configuration (booking rules, blocks, seasons,
  cities and quote templates) into the typed records the engine reads. This
  is how demo scenarios and the admin side feed the store.

TOLERANCE:
  A malformed field never rejects the whole configuration. The affected rule
  becomes inactive and a warning is logged:

    - alternating_week_anchor not YYYY-MM-DD  -> anchor dropped, rule inactive
    - blocked_weekdays outside 0-6            -> ignored by the filter
    - a blocked date, period or season with a bad date, or end before start
                                             -> that entry skipped
    - unknown warning_mode                    -> informative

  Only invalid JSON, or a missing provider_id, is an error (ErrInvalidConfig).

JSON SCHEMA:
  {
    "provider_id": "studio-lumen",
    "max_events_per_day": 2,
    "warning_mode": "restrictive",
    "mass_rules_active": true,
    "blocked_weekdays": [0],
    "even_odd_rule": "none",
    "alternating_week_rule": "odd_weeks",
    "alternating_week_anchor": "2025-01-05",
    "blocked_dates": [{"date": "2025-11-20", "reason": "holiday"}],
    "blocked_periods": [{"start": "2025-12-20", "end": "2026-01-05"}],
    "events": [{"date": "2025-10-04", "status": "confirmed", "client_name": "Ana"}],
    "seasons": [{"id": "summer", "start": "2025-12-01", "end": "2026-02-28", "multiplier": "1.10"}],
    "cities": [{"id": "sp", "name": "Sao Paulo", "percent_adjustment": "20", "fixed_travel_fee": "50"}],
    "templates": [{
      "id": "wedding",
      "name": "Wedding coverage",
      "seasonal_pricing": true,
      "products": [{"id": "ceremony", "unit_price": "1000", "required": true}],
      "payment_methods": [{"id": "card", "down_payment_kind": "percent", "down_payment_value": "30", "max_installments": 3}],
      "coupons": [{"code": "SAVE10", "discount_kind": "percent", "value": "10"}]
    }]
  }

USAGE:
  f := factory.New(logger)
  p, err := f.ParseProvider(jsonStr)
  err = p.Save(ctx, st)

SEE ALSO:
  - availability/types.go: RuleConfig.Problems
  - pricing/season.go:     Overlaps
  - api/scenarios.go:      Demo providers defined in this format
*/
package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/pricing"
	"github.com/warp/quote-engine/quote"
	"github.com/warp/quote-engine/store"
)

// ErrInvalidConfig is returned for configuration that cannot be read at all.
var ErrInvalidConfig = errors.New("invalid provider configuration")

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProviderJSON is the JSON representation of a provider's configuration.
type ProviderJSON struct {
	ProviderID          string `json:"provider_id"`
	MaxEventsPerDay     *int   `json:"max_events_per_day,omitempty"`
	WarningMode         string `json:"warning_mode,omitempty"`
	Active              *bool  `json:"active,omitempty"`
	MassRulesActive     bool   `json:"mass_rules_active,omitempty"`
	BlockedWeekdays     []int  `json:"blocked_weekdays,omitempty"`
	EvenOddRule         string `json:"even_odd_rule,omitempty"`
	AlternatingWeekRule string `json:"alternating_week_rule,omitempty"`
	AlternatingAnchor   string `json:"alternating_week_anchor,omitempty"`

	BlockedDates   []BlockedDateJSON   `json:"blocked_dates,omitempty"`
	BlockedPeriods []BlockedPeriodJSON `json:"blocked_periods,omitempty"`
	Events         []EventJSON         `json:"events,omitempty"`
	Seasons        []SeasonJSON        `json:"seasons,omitempty"`
	Cities         []pricing.City      `json:"cities,omitempty"`
	Templates      []TemplateJSON      `json:"templates,omitempty"`
}

type BlockedDateJSON struct {
	Date   string `json:"date"`
	Reason string `json:"reason,omitempty"`
}

type BlockedPeriodJSON struct {
	ID     string `json:"id,omitempty"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason,omitempty"`
}

type EventJSON struct {
	ID         string `json:"id,omitempty"`
	Date       string `json:"date"`
	Status     string `json:"status,omitempty"` // default confirmed
	ClientName string `json:"client_name,omitempty"`
	City       string `json:"city,omitempty"`
}

type SeasonJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// TemplateJSON is one quote form with everything it offers.
type TemplateJSON struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name"`
	SeasonalPricing      bool                    `json:"seasonal_pricing,omitempty"`
	GeoPricing           bool                    `json:"geo_pricing,omitempty"`
	RequireContactFields bool                    `json:"require_contact_fields,omitempty"`
	Products             []pricing.Product       `json:"products,omitempty"`
	PaymentMethods       []pricing.PaymentMethod `json:"payment_methods,omitempty"`
	ExtraFields          []quote.ExtraField      `json:"extra_fields,omitempty"`
	Coupons              []CouponJSON            `json:"coupons,omitempty"`
}

type CouponJSON struct {
	ID           string          `json:"id,omitempty"`
	Code         string          `json:"code"`
	DiscountKind string          `json:"discount_kind,omitempty"` // default percent
	Value        decimal.Decimal `json:"value"`
	Expiry       string          `json:"expiry,omitempty"`
	UsageLimit   int             `json:"usage_limit,omitempty"`
	UsageCount   int             `json:"usage_count,omitempty"`
	Active       *bool           `json:"active,omitempty"`
}

// =============================================================================
// TYPED RESULT
// =============================================================================

// Provider is a parsed configuration, ready to be saved.
type Provider struct {
	Rules          availability.RuleConfig
	BlockedDates   []availability.BlockedDate
	BlockedPeriods []availability.BlockedPeriod
	Events         []availability.EventRecord
	Seasons        []pricing.Season
	Cities         []pricing.City
	Templates      []Template
}

type Template struct {
	Template       quote.Template
	Products       []pricing.Product
	PaymentMethods []pricing.PaymentMethod
	ExtraFields    []quote.ExtraField
	Coupons        []coupon.Coupon
}

// Save replaces everything st holds for the provider with p's records, so
// loading the same configuration twice leaves the same data.
func (p *Provider) Save(ctx context.Context, st store.Store) error {
	providerID := p.Rules.ProviderID
	if err := st.ClearProvider(ctx, providerID); err != nil {
		return fmt.Errorf("clear provider %s: %w", providerID, err)
	}
	if err := st.SaveRuleConfig(ctx, p.Rules); err != nil {
		return fmt.Errorf("save rules for %s: %w", providerID, err)
	}
	for _, b := range p.BlockedDates {
		if err := st.AddBlockedDate(ctx, b); err != nil {
			return fmt.Errorf("save blocked date %s: %w", b.Date, err)
		}
	}
	for _, b := range p.BlockedPeriods {
		if err := st.AddBlockedPeriod(ctx, b); err != nil {
			return fmt.Errorf("save blocked period %s: %w", b.Period, err)
		}
	}
	for _, e := range p.Events {
		if err := st.AddEvent(ctx, e); err != nil {
			return fmt.Errorf("save event %s: %w", e.ID, err)
		}
	}
	for _, s := range p.Seasons {
		if err := st.SaveSeason(ctx, providerID, s); err != nil {
			return fmt.Errorf("save season %s: %w", s.ID, err)
		}
	}
	for _, c := range p.Cities {
		if err := st.SaveCity(ctx, providerID, c); err != nil {
			return fmt.Errorf("save city %s: %w", c.ID, err)
		}
	}
	for _, t := range p.Templates {
		if err := t.save(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (t Template) save(ctx context.Context, st store.Store) error {
	id := t.Template.ID
	if err := st.SaveTemplate(ctx, t.Template); err != nil {
		return fmt.Errorf("save template %s: %w", id, err)
	}
	for _, p := range t.Products {
		if err := st.SaveProduct(ctx, id, p); err != nil {
			return fmt.Errorf("save product %s: %w", p.ID, err)
		}
	}
	for _, m := range t.PaymentMethods {
		if err := st.SavePaymentMethod(ctx, id, m); err != nil {
			return fmt.Errorf("save payment method %s: %w", m.ID, err)
		}
	}
	for _, f := range t.ExtraFields {
		if err := st.SaveExtraField(ctx, id, f); err != nil {
			return fmt.Errorf("save extra field %s: %w", f.ID, err)
		}
	}
	for _, c := range t.Coupons {
		if err := st.SaveCoupon(ctx, c); err != nil {
			return fmt.Errorf("save coupon %s: %w", c.Code, err)
		}
	}
	return nil
}

// =============================================================================
// PROVIDER FACTORY
// =============================================================================

// ProviderFactory converts JSON configuration to typed records.
type ProviderFactory struct {
	logger zerolog.Logger
	newID  func() string
}

func New(logger zerolog.Logger) *ProviderFactory {
	return &ProviderFactory{logger: logger, newID: uuid.NewString}
}

// ParseProvider parses a JSON string into a Provider.
func (f *ProviderFactory) ParseProvider(jsonStr string) (*Provider, error) {
	var pj ProviderJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts ProviderJSON to a Provider, logging every field it had
// to ignore.
func (f *ProviderFactory) FromJSON(pj ProviderJSON) (*Provider, error) {
	if pj.ProviderID == "" {
		return nil, fmt.Errorf("%w: provider_id is required", ErrInvalidConfig)
	}
	log := f.logger.With().Str("provider_id", pj.ProviderID).Logger()

	p := &Provider{Rules: f.parseRules(pj, log)}
	for _, problem := range p.Rules.Problems() {
		log.Warn().Str("field", problem.Field).Msg(problem.Reason)
	}

	for _, bj := range pj.BlockedDates {
		d, err := calendar.Parse(bj.Date)
		if err != nil {
			log.Warn().Err(err).Msg("blocked date skipped")
			continue
		}
		p.BlockedDates = append(p.BlockedDates, availability.BlockedDate{ProviderID: pj.ProviderID, Date: d, Reason: bj.Reason})
	}

	for _, bj := range pj.BlockedPeriods {
		period, err := calendar.NewPeriod(bj.Start, bj.End)
		if err != nil || !period.Valid() {
			log.Warn().Err(err).Str("start", bj.Start).Str("end", bj.End).Msg("blocked period skipped")
			continue
		}
		p.BlockedPeriods = append(p.BlockedPeriods, availability.BlockedPeriod{
			ID: f.idOr(bj.ID), ProviderID: pj.ProviderID, Period: period, Reason: bj.Reason,
		})
	}

	for _, ej := range pj.Events {
		d, err := calendar.Parse(ej.Date)
		if err != nil {
			log.Warn().Err(err).Msg("event skipped")
			continue
		}
		p.Events = append(p.Events, availability.EventRecord{
			ID:         f.idOr(ej.ID),
			ProviderID: pj.ProviderID,
			Date:       d,
			Status:     parseEventStatus(ej.Status),
			ClientName: ej.ClientName,
			City:       ej.City,
		})
	}

	for _, sj := range pj.Seasons {
		period, err := calendar.NewPeriod(sj.Start, sj.End)
		if err != nil || !period.Valid() {
			log.Warn().Err(err).Str("season_id", sj.ID).Msg("season skipped")
			continue
		}
		p.Seasons = append(p.Seasons, pricing.Season{
			ID: f.idOr(sj.ID), Name: sj.Name, Start: period.Start, End: period.End, Multiplier: sj.Multiplier,
		})
	}
	for _, o := range pricing.Overlaps(p.Seasons) {
		log.Warn().
			Str("season", o.First.ID).
			Str("overlaps", o.Second.ID).
			Msg("overlapping seasons, the later start wins")
	}

	for _, c := range pj.Cities {
		c.ID = f.idOr(c.ID)
		p.Cities = append(p.Cities, c)
	}

	for _, tj := range pj.Templates {
		p.Templates = append(p.Templates, f.parseTemplate(pj.ProviderID, tj, log))
	}
	return p, nil
}

func (f *ProviderFactory) parseRules(pj ProviderJSON, log zerolog.Logger) availability.RuleConfig {
	cfg := availability.DefaultRuleConfig(pj.ProviderID)
	if pj.MaxEventsPerDay != nil {
		cfg.MaxEventsPerDay = *pj.MaxEventsPerDay
	}
	if pj.WarningMode != "" {
		cfg.WarningMode = availability.WarningMode(pj.WarningMode)
	}
	if pj.Active != nil {
		cfg.Active = *pj.Active
	}
	cfg.MassRulesActive = pj.MassRulesActive
	for _, wd := range pj.BlockedWeekdays {
		cfg.BlockedWeekdays = append(cfg.BlockedWeekdays, time.Weekday(wd))
	}
	if pj.EvenOddRule != "" {
		cfg.EvenOddRule = availability.EvenOddRule(pj.EvenOddRule)
	}
	if pj.AlternatingWeekRule != "" {
		cfg.AlternatingWeekRule = availability.AlternatingWeekRule(pj.AlternatingWeekRule)
	}
	if pj.AlternatingAnchor != "" {
		anchor, err := calendar.Parse(pj.AlternatingAnchor)
		if err != nil {
			log.Warn().Err(err).Msg("alternating week anchor unreadable")
		} else {
			cfg.AlternatingWeekAnchor = &anchor
		}
	}
	return cfg
}

func (f *ProviderFactory) parseTemplate(providerID string, tj TemplateJSON, log zerolog.Logger) Template {
	t := Template{
		Template: quote.Template{
			ID:                   f.idOr(tj.ID),
			ProviderID:           providerID,
			Name:                 tj.Name,
			SeasonalPricing:      tj.SeasonalPricing,
			GeoPricing:           tj.GeoPricing,
			RequireContactFields: tj.RequireContactFields,
		},
		ExtraFields: tj.ExtraFields,
	}
	for _, p := range tj.Products {
		p.ID = f.idOr(p.ID)
		t.Products = append(t.Products, p)
	}
	for _, m := range tj.PaymentMethods {
		m.ID = f.idOr(m.ID)
		if m.DownPaymentKind == "" {
			m.DownPaymentKind = pricing.DownPaymentPercent
		}
		t.PaymentMethods = append(t.PaymentMethods, m)
	}
	for _, cj := range tj.Coupons {
		c := coupon.Coupon{
			ID:           f.idOr(cj.ID),
			TemplateID:   t.Template.ID,
			Code:         coupon.NormalizeCode(cj.Code),
			DiscountKind: parseDiscountKind(cj.DiscountKind),
			Value:        cj.Value,
			UsageLimit:   cj.UsageLimit,
			UsageCount:   cj.UsageCount,
			Active:       cj.Active == nil || *cj.Active,
		}
		if cj.Expiry != "" {
			d, err := calendar.Parse(cj.Expiry)
			if err != nil {
				log.Warn().Err(err).Str("code", c.Code).Msg("coupon expiry unreadable, coupon disabled")
				c.Active = false
			} else {
				c.Expiry = &d
			}
		}
		t.Coupons = append(t.Coupons, c)
	}
	return t
}

func (f *ProviderFactory) idOr(id string) string {
	if id != "" {
		return id
	}
	return f.newID()
}

// ToJSON converts rules back to their JSON form.
func (f *ProviderFactory) ToJSON(cfg availability.RuleConfig) ProviderJSON {
	maxEvents := cfg.MaxEventsPerDay
	active := cfg.Active
	pj := ProviderJSON{
		ProviderID:          cfg.ProviderID,
		MaxEventsPerDay:     &maxEvents,
		WarningMode:         string(cfg.WarningMode),
		Active:              &active,
		MassRulesActive:     cfg.MassRulesActive,
		EvenOddRule:         string(cfg.EvenOddRule),
		AlternatingWeekRule: string(cfg.AlternatingWeekRule),
	}
	for _, wd := range cfg.BlockedWeekdays {
		pj.BlockedWeekdays = append(pj.BlockedWeekdays, int(wd))
	}
	if cfg.AlternatingWeekAnchor != nil {
		pj.AlternatingAnchor = cfg.AlternatingWeekAnchor.String()
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseEventStatus(s string) availability.EventStatus {
	switch s {
	case "pending":
		return availability.EventPending
	case "completed":
		return availability.EventCompleted
	case "cancelled", "canceled":
		return availability.EventCancelled
	default:
		return availability.EventConfirmed
	}
}

func parseDiscountKind(s string) pricing.DiscountKind {
	switch s {
	case "fixed":
		return pricing.DiscountFixed
	default:
		return pricing.DiscountPercent
	}
}
