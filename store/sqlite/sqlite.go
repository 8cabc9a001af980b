/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists providers' booking rules, blocks and events, and the quote
  templates with everything they offer. The engine reads through three
  narrow interfaces implemented here:

INTERFACES IMPLEMENTED:
  availability.Source: Snapshot (rules + blocks + event count for a day)
  coupon.Repository:   FindActive
  quote.Catalog:       Offer

KEY TABLES:
  rule_configs:     One row per provider, created with defaults on first read
  blocked_dates:    Explicit single-day blocks
  blocked_periods:  Inclusive date ranges
  events:           Bookings made elsewhere; only counted here
  templates:        Quote forms
  products, payment_methods, extra_fields:  Per template
  seasons, cities:  Per provider
  coupons:          Per template, unique by normalized code

DATES AND MONEY:
  Days are TEXT in YYYY-MM-DD. Money is TEXT holding the exact decimal
  string, so nothing is ever rounded by the database.

INDEXES:
  - idx_events_provider_date: Capacity count (hot path)
  - idx_blocked_dates_provider, idx_blocked_periods_provider

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases shared across calls.

UNREADABLE ROWS:
  A stored rule, block or season that no longer parses is skipped and the
  rule it carries stays inactive. Each one is logged (WithLogger).

USAGE:
  st, err := sqlite.New("./data/quotes.db", sqlite.WithLogger(logger))
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  resolver := availability.NewResolver(st, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/store.go: Interface definition
  - store/memory:   In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/pricing"
	"github.com/warp/quote-engine/quote"
	"github.com/warp/quote-engine/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger that reports unreadable stored rules.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	st := &Store{db: db, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(st)
	}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Booking rules, one per provider
	CREATE TABLE IF NOT EXISTS rule_configs (
		provider_id TEXT PRIMARY KEY,
		max_events_per_day INTEGER NOT NULL DEFAULT 1,
		warning_mode TEXT NOT NULL DEFAULT 'suggestive',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		mass_rules_active BOOLEAN NOT NULL DEFAULT FALSE,
		blocked_weekdays_json TEXT NOT NULL DEFAULT '[]',
		even_odd_rule TEXT NOT NULL DEFAULT 'none',
		alternating_week_rule TEXT NOT NULL DEFAULT 'none',
		alternating_week_anchor TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blocked_dates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id TEXT NOT NULL,
		date TEXT NOT NULL,
		reason TEXT,
		UNIQUE(provider_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_blocked_dates_provider
		ON blocked_dates(provider_id);

	CREATE TABLE IF NOT EXISTS blocked_periods (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_blocked_periods_provider
		ON blocked_periods(provider_id);

	-- Bookings (read-only for the engine)
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		client_name TEXT,
		city TEXT,
		created_at TEXT NOT NULL
	);

	-- Capacity count (hot path)
	CREATE INDEX IF NOT EXISTS idx_events_provider_date
		ON events(provider_id, date, status);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		name TEXT NOT NULL,
		seasonal_pricing BOOLEAN NOT NULL DEFAULT FALSE,
		geo_pricing BOOLEAN NOT NULL DEFAULT FALSE,
		require_contact_fields BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS products (
		template_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		required BOOLEAN NOT NULL DEFAULT FALSE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (template_id, id)
	);

	CREATE TABLE IF NOT EXISTS payment_methods (
		template_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		down_payment_kind TEXT NOT NULL,
		down_payment_value TEXT NOT NULL,
		max_installments INTEGER NOT NULL DEFAULT 0,
		surcharge_percent TEXT NOT NULL,
		PRIMARY KEY (template_id, id)
	);

	CREATE TABLE IF NOT EXISTS extra_fields (
		template_id TEXT NOT NULL,
		id TEXT NOT NULL,
		label TEXT NOT NULL,
		required BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (template_id, id)
	);

	CREATE TABLE IF NOT EXISTS seasons (
		provider_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		multiplier TEXT NOT NULL,
		PRIMARY KEY (provider_id, id)
	);

	CREATE TABLE IF NOT EXISTS cities (
		provider_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		state TEXT,
		country TEXT,
		percent_adjustment TEXT NOT NULL,
		fixed_travel_fee TEXT NOT NULL,
		PRIMARY KEY (provider_id, id)
	);

	CREATE TABLE IF NOT EXISTS coupons (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		code TEXT NOT NULL,
		discount_kind TEXT NOT NULL DEFAULT 'percent',
		value TEXT NOT NULL,
		expiry TEXT,
		usage_limit INTEGER NOT NULL DEFAULT 0,
		usage_count INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE(template_id, code)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AVAILABILITY SOURCE (availability.Source interface)
// =============================================================================

// Snapshot reads the provider's rules and blocks and counts confirmed and
// pending events on day. Rules are created with defaults on first access.
func (s *Store) Snapshot(ctx context.Context, providerID string, day calendar.Day) (availability.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.rulesLocked(ctx, providerID)
	if err != nil {
		return availability.Snapshot{}, err
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE provider_id = ? AND date = ? AND status IN (?, ?)",
		providerID, day.String(), availability.EventConfirmed, availability.EventPending,
	).Scan(&snap.EventCount)
	if err != nil {
		return availability.Snapshot{}, fmt.Errorf("count events: %w", err)
	}
	return snap, nil
}

// Rules returns the provider's rules and blocks without counting events.
func (s *Store) Rules(ctx context.Context, providerID string) (availability.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rulesLocked(ctx, providerID)
}

func (s *Store) rulesLocked(ctx context.Context, providerID string) (availability.Snapshot, error) {
	cfg, err := s.configLocked(ctx, providerID)
	if err != nil {
		return availability.Snapshot{}, err
	}
	snap := availability.Snapshot{Config: cfg}

	snap.BlockedDates, err = s.blockedDatesLocked(ctx, providerID)
	if err != nil {
		return availability.Snapshot{}, err
	}
	snap.BlockedPeriods, err = s.blockedPeriodsLocked(ctx, providerID)
	if err != nil {
		return availability.Snapshot{}, err
	}
	return snap, nil
}

// =============================================================================
// RULE CONFIGS
// =============================================================================

// RuleConfig returns the provider's rules, creating the defaults if needed.
func (s *Store) RuleConfig(ctx context.Context, providerID string) (availability.RuleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configLocked(ctx, providerID)
}

func (s *Store) configLocked(ctx context.Context, providerID string) (availability.RuleConfig, error) {
	def := availability.DefaultRuleConfig(providerID)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO rule_configs
			(provider_id, max_events_per_day, warning_mode, active, mass_rules_active,
			 blocked_weekdays_json, even_odd_rule, alternating_week_rule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '[]', ?, ?, ?, ?)`,
		providerID, def.MaxEventsPerDay, def.WarningMode, def.Active, def.MassRulesActive,
		def.EvenOddRule, def.AlternatingWeekRule, now, now,
	)
	if err != nil {
		return availability.RuleConfig{}, fmt.Errorf("create default rules: %w", err)
	}

	var (
		cfg          availability.RuleConfig
		weekdaysJSON string
		anchor       sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT provider_id, max_events_per_day, warning_mode, active, mass_rules_active,
		       blocked_weekdays_json, even_odd_rule, alternating_week_rule, alternating_week_anchor
		FROM rule_configs WHERE provider_id = ?`,
		providerID,
	).Scan(&cfg.ProviderID, &cfg.MaxEventsPerDay, &cfg.WarningMode, &cfg.Active, &cfg.MassRulesActive,
		&weekdaysJSON, &cfg.EvenOddRule, &cfg.AlternatingWeekRule, &anchor)
	if err != nil {
		return availability.RuleConfig{}, fmt.Errorf("read rules: %w", err)
	}

	// Unreadable columns leave their rule inactive.
	var weekdays []int
	if err := json.Unmarshal([]byte(weekdaysJSON), &weekdays); err != nil {
		s.logger.Warn().Err(err).Str("provider_id", providerID).Str("field", "blocked_weekdays_json").
			Msg("ignoring unreadable stored rule")
	}
	for _, wd := range weekdays {
		cfg.BlockedWeekdays = append(cfg.BlockedWeekdays, time.Weekday(wd))
	}
	if anchor.Valid {
		d, err := calendar.Parse(anchor.String)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider_id", providerID).Str("field", "alternating_week_anchor").
				Msg("ignoring unreadable stored rule")
		} else {
			cfg.AlternatingWeekAnchor = &d
		}
	}
	for _, p := range cfg.Problems() {
		s.logger.Debug().Str("provider_id", providerID).Str("problem", p.String()).Msg("stored rule inactive")
	}
	return cfg, nil
}

// SaveRuleConfig creates or replaces a provider's rules.
func (s *Store) SaveRuleConfig(ctx context.Context, cfg availability.RuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	weekdays := make([]int, 0, len(cfg.BlockedWeekdays))
	for _, wd := range cfg.BlockedWeekdays {
		weekdays = append(weekdays, int(wd))
	}
	weekdaysJSON, err := json.Marshal(weekdays)
	if err != nil {
		return err
	}

	var anchor sql.NullString
	if cfg.AlternatingWeekAnchor != nil && !cfg.AlternatingWeekAnchor.IsZero() {
		anchor = sql.NullString{String: cfg.AlternatingWeekAnchor.String(), Valid: true}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_configs
			(provider_id, max_events_per_day, warning_mode, active, mass_rules_active,
			 blocked_weekdays_json, even_odd_rule, alternating_week_rule, alternating_week_anchor,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			max_events_per_day = excluded.max_events_per_day,
			warning_mode = excluded.warning_mode,
			active = excluded.active,
			mass_rules_active = excluded.mass_rules_active,
			blocked_weekdays_json = excluded.blocked_weekdays_json,
			even_odd_rule = excluded.even_odd_rule,
			alternating_week_rule = excluded.alternating_week_rule,
			alternating_week_anchor = excluded.alternating_week_anchor,
			updated_at = excluded.updated_at`,
		cfg.ProviderID, cfg.MaxEventsPerDay, cfg.WarningMode, cfg.Active, cfg.MassRulesActive,
		string(weekdaysJSON), cfg.EvenOddRule, cfg.AlternatingWeekRule, anchor, now, now,
	)
	return err
}

// =============================================================================
// BLOCKS AND EVENTS
// =============================================================================

func (s *Store) AddBlockedDate(ctx context.Context, b availability.BlockedDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO blocked_dates (provider_id, date, reason) VALUES (?, ?, ?)",
		b.ProviderID, b.Date.String(), b.Reason,
	)
	return err
}

func (s *Store) blockedDatesLocked(ctx context.Context, providerID string) ([]availability.BlockedDate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT provider_id, date, COALESCE(reason, '') FROM blocked_dates WHERE provider_id = ? ORDER BY date",
		providerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.BlockedDate
	for rows.Next() {
		var b availability.BlockedDate
		var date string
		if err := rows.Scan(&b.ProviderID, &date, &b.Reason); err != nil {
			return nil, err
		}
		d, err := calendar.Parse(date)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider_id", providerID).Msg("ignoring unreadable blocked date")
			continue
		}
		b.Date = d
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) AddBlockedPeriod(ctx context.Context, p availability.BlockedPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO blocked_periods (id, provider_id, start_date, end_date, reason) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.ProviderID, p.Period.Start.String(), p.Period.End.String(), p.Reason,
	)
	return err
}

func (s *Store) blockedPeriodsLocked(ctx context.Context, providerID string) ([]availability.BlockedPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, provider_id, start_date, end_date, COALESCE(reason, '') FROM blocked_periods WHERE provider_id = ? ORDER BY start_date",
		providerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.BlockedPeriod
	for rows.Next() {
		var p availability.BlockedPeriod
		var start, end string
		if err := rows.Scan(&p.ID, &p.ProviderID, &start, &end, &p.Reason); err != nil {
			return nil, err
		}
		period, err := calendar.NewPeriod(start, end)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider_id", providerID).Str("period_id", p.ID).Msg("ignoring unreadable blocked period")
			continue
		}
		p.Period = period
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddEvent(ctx context.Context, e availability.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO events (id, provider_id, date, status, client_name, city, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.ProviderID, e.Date.String(), e.Status, e.ClientName, e.City, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ClearProvider deletes the provider's records in one transaction.
func (s *Store) ClearProvider(ctx context.Context, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const templateIDs = "SELECT id FROM templates WHERE provider_id = ?"
	statements := []string{
		"DELETE FROM blocked_dates WHERE provider_id = ?",
		"DELETE FROM blocked_periods WHERE provider_id = ?",
		"DELETE FROM events WHERE provider_id = ?",
		"DELETE FROM seasons WHERE provider_id = ?",
		"DELETE FROM cities WHERE provider_id = ?",
		"DELETE FROM products WHERE template_id IN (" + templateIDs + ")",
		"DELETE FROM payment_methods WHERE template_id IN (" + templateIDs + ")",
		"DELETE FROM extra_fields WHERE template_id IN (" + templateIDs + ")",
		"DELETE FROM coupons WHERE template_id IN (" + templateIDs + ")",
		"DELETE FROM templates WHERE provider_id = ?",
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, providerID); err != nil {
			return fmt.Errorf("clear provider %s: %w", providerID, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// CATALOG (quote.Catalog interface)
// =============================================================================

// Offer returns the template with its products, payment methods and extra
// fields, and its provider's seasons and cities. Nil for an unknown template.
func (s *Store) Offer(ctx context.Context, templateID string) (*quote.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t quote.Template
	err := s.db.QueryRowContext(ctx,
		"SELECT id, provider_id, name, seasonal_pricing, geo_pricing, require_contact_fields FROM templates WHERE id = ?",
		templateID,
	).Scan(&t.ID, &t.ProviderID, &t.Name, &t.SeasonalPricing, &t.GeoPricing, &t.RequireContactFields)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	offer := &quote.Offer{Template: t}
	if offer.Products, err = s.products(ctx, templateID); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if offer.PaymentMethods, err = s.paymentMethods(ctx, templateID); err != nil {
		return nil, fmt.Errorf("load payment methods: %w", err)
	}
	if offer.ExtraFields, err = s.extraFields(ctx, templateID); err != nil {
		return nil, fmt.Errorf("load extra fields: %w", err)
	}
	if offer.Seasons, err = s.seasons(ctx, t.ProviderID); err != nil {
		return nil, fmt.Errorf("load seasons: %w", err)
	}
	if offer.Cities, err = s.cities(ctx, t.ProviderID); err != nil {
		return nil, fmt.Errorf("load cities: %w", err)
	}
	return offer, nil
}

func (s *Store) SaveTemplate(ctx context.Context, t quote.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO templates (id, provider_id, name, seasonal_pricing, geo_pricing, require_contact_fields)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProviderID, t.Name, t.SeasonalPricing, t.GeoPricing, t.RequireContactFields,
	)
	return err
}

// ListTemplates returns all templates.
func (s *Store) ListTemplates(ctx context.Context) ([]quote.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, provider_id, name, seasonal_pricing, geo_pricing, require_contact_fields FROM templates ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quote.Template
	for rows.Next() {
		var t quote.Template
		if err := rows.Scan(&t.ID, &t.ProviderID, &t.Name, &t.SeasonalPricing, &t.GeoPricing, &t.RequireContactFields); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SaveProduct(ctx context.Context, templateID string, p pricing.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO products (template_id, id, name, unit_price, required, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)`,
		templateID, p.ID, p.Name, p.UnitPrice.String(), p.Required, p.Order,
	)
	return err
}

func (s *Store) products(ctx context.Context, templateID string) ([]pricing.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, unit_price, required, sort_order FROM products WHERE template_id = ? ORDER BY sort_order, name",
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pricing.Product{}
	for rows.Next() {
		var p pricing.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Required, &p.Order); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SavePaymentMethod(ctx context.Context, templateID string, m pricing.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO payment_methods
			(template_id, id, name, down_payment_kind, down_payment_value, max_installments, surcharge_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		templateID, m.ID, m.Name, m.DownPaymentKind, m.DownPaymentValue.String(), m.MaxInstallments, m.SurchargePercent.String(),
	)
	return err
}

func (s *Store) paymentMethods(ctx context.Context, templateID string) ([]pricing.PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, down_payment_kind, down_payment_value, max_installments, surcharge_percent
		FROM payment_methods WHERE template_id = ? ORDER BY rowid`,
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pricing.PaymentMethod{}
	for rows.Next() {
		var m pricing.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.DownPaymentKind, &m.DownPaymentValue, &m.MaxInstallments, &m.SurchargePercent); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SaveExtraField(ctx context.Context, templateID string, f quote.ExtraField) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO extra_fields (template_id, id, label, required) VALUES (?, ?, ?, ?)",
		templateID, f.ID, f.Label, f.Required,
	)
	return err
}

func (s *Store) extraFields(ctx context.Context, templateID string) ([]quote.ExtraField, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, label, required FROM extra_fields WHERE template_id = ? ORDER BY rowid",
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []quote.ExtraField{}
	for rows.Next() {
		var f quote.ExtraField
		if err := rows.Scan(&f.ID, &f.Label, &f.Required); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) SaveSeason(ctx context.Context, providerID string, season pricing.Season) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO seasons (provider_id, id, name, start_date, end_date, multiplier)
		VALUES (?, ?, ?, ?, ?, ?)`,
		providerID, season.ID, season.Name, season.Start.String(), season.End.String(), season.Multiplier.String(),
	)
	return err
}

func (s *Store) seasons(ctx context.Context, providerID string) ([]pricing.Season, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, start_date, end_date, multiplier FROM seasons WHERE provider_id = ? ORDER BY start_date, id",
		providerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pricing.Season{}
	for rows.Next() {
		var season pricing.Season
		var start, end string
		if err := rows.Scan(&season.ID, &season.Name, &start, &end, &season.Multiplier); err != nil {
			return nil, err
		}
		period, err := calendar.NewPeriod(start, end)
		if err != nil {
			continue
		}
		season.Start, season.End = period.Start, period.End
		out = append(out, season)
	}
	return out, rows.Err()
}

func (s *Store) SaveCity(ctx context.Context, providerID string, c pricing.City) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cities (provider_id, id, name, state, country, percent_adjustment, fixed_travel_fee)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		providerID, c.ID, c.Name, c.State, c.Country, c.PercentAdjustment.String(), c.FixedTravelFee.String(),
	)
	return err
}

func (s *Store) cities(ctx context.Context, providerID string) ([]pricing.City, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(state, ''), COALESCE(country, ''), percent_adjustment, fixed_travel_fee
		FROM cities WHERE provider_id = ? ORDER BY name`,
		providerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pricing.City{}
	for rows.Next() {
		var c pricing.City
		if err := rows.Scan(&c.ID, &c.Name, &c.State, &c.Country, &c.PercentAdjustment, &c.FixedTravelFee); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// COUPONS (coupon.Repository interface)
// =============================================================================

// SaveCoupon creates or replaces a coupon. The code is stored normalized.
func (s *Store) SaveCoupon(ctx context.Context, c coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiry sql.NullString
	if c.Expiry != nil && !c.Expiry.IsZero() {
		expiry = sql.NullString{String: c.Expiry.String(), Valid: true}
	}
	kind := c.DiscountKind
	if kind == "" {
		kind = pricing.DiscountPercent
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (id, template_id, code, discount_kind, value, expiry, usage_limit, usage_count, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(template_id, code) DO UPDATE SET
			discount_kind = excluded.discount_kind,
			value = excluded.value,
			expiry = excluded.expiry,
			usage_limit = excluded.usage_limit,
			usage_count = excluded.usage_count,
			active = excluded.active`,
		c.ID, c.TemplateID, coupon.NormalizeCode(c.Code), kind, c.Value.String(), expiry,
		c.UsageLimit, c.UsageCount, c.Active,
	)
	return err
}

// FindActive returns the active coupon with code for templateID, or nil.
func (s *Store) FindActive(ctx context.Context, templateID, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c      coupon.Coupon
		value  decimal.Decimal
		expiry sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, template_id, code, discount_kind, value, expiry, usage_limit, usage_count, active
		FROM coupons WHERE template_id = ? AND code = ? AND active = TRUE`,
		templateID, code,
	).Scan(&c.ID, &c.TemplateID, &c.Code, &c.DiscountKind, &value, &expiry, &c.UsageLimit, &c.UsageCount, &c.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.Value = value
	if expiry.Valid {
		if d, err := calendar.Parse(expiry.String); err == nil {
			c.Expiry = &d
		}
	}
	return &c, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"coupons", "cities", "seasons", "extra_fields", "payment_methods", "products",
		"templates", "events", "blocked_periods", "blocked_dates", "rule_configs",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
