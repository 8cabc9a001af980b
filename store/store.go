/*
store.go - Persistence interface for providers, templates and events

PURPOSE:
  Defines the interface between the engine and the database. The engine
  itself only reads (availability.Source, coupon.Repository, quote.Catalog);
  the write methods exist for the admin side and for demo scenarios.

KEY INTERFACES:
  Store:  Every read the engine needs plus the writes that feed it

GET-OR-CREATE:
  RuleConfig and Snapshot never fail for an unknown provider. The first read
  creates the default config (one event per day, suggestive, active, no mass
  rules) so every provider always has exactly one.

RELOADING:
  A provider configuration is saved as a whole: ClearProvider first, then
  every record. Blocks or events left out of a new configuration are gone.

CODES:
  Coupon codes are stored normalized (trimmed, uppercase). FindActive
  expects a normalized code.

IMPLEMENTATIONS:
  - store/sqlite: SQLite, the production backend
  - store/memory: In-memory for tests and dev, with failure injection

EXAMPLE:
  st, _ := sqlite.New("./quotes.db")
  resolver := availability.NewResolver(st, logger)
  res := resolver.Check(ctx, "prov-1", calendar.MustParse("2025-12-25"))

SEE ALSO:
  - availability/resolver.go: Source and Cache contracts
  - store/redis: availability.Cache
*/
package store

import (
	"context"

	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/pricing"
	"github.com/warp/quote-engine/quote"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	availability.Source
	coupon.Repository
	quote.Catalog

	// Rules returns a provider's config and blocks, with EventCount zero.
	// The calendar grid is evaluated from this without touching events.
	Rules(ctx context.Context, providerID string) (availability.Snapshot, error)

	RuleConfig(ctx context.Context, providerID string) (availability.RuleConfig, error)
	SaveRuleConfig(ctx context.Context, cfg availability.RuleConfig) error

	AddBlockedDate(ctx context.Context, b availability.BlockedDate) error
	AddBlockedPeriod(ctx context.Context, p availability.BlockedPeriod) error
	AddEvent(ctx context.Context, e availability.EventRecord) error

	SaveTemplate(ctx context.Context, t quote.Template) error
	ListTemplates(ctx context.Context) ([]quote.Template, error)
	SaveProduct(ctx context.Context, templateID string, p pricing.Product) error
	SavePaymentMethod(ctx context.Context, templateID string, m pricing.PaymentMethod) error
	SaveExtraField(ctx context.Context, templateID string, f quote.ExtraField) error
	SaveSeason(ctx context.Context, providerID string, s pricing.Season) error
	SaveCity(ctx context.Context, providerID string, c pricing.City) error
	SaveCoupon(ctx context.Context, c coupon.Coupon) error

	// ClearProvider removes a provider's blocks, events, seasons, cities and
	// templates with everything they offer. The rule config is kept.
	ClearProvider(ctx context.Context, providerID string) error

	// Reset removes everything. Used by demo scenarios.
	Reset(ctx context.Context) error
}
