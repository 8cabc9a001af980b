package availability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/quote-engine/calendar"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Source is the authoritative store of rule configs, blocks and event counts.
// Implementations: store/sqlite, store/memory.
type Source interface {
	// Snapshot reads a provider's config (created with defaults if missing),
	// blocks, and the confirmed+pending event count for day.
	Snapshot(ctx context.Context, providerID string, day calendar.Day) (Snapshot, error)
}

// Cache holds recent results. Implementations: store/redis.
type Cache interface {
	Get(ctx context.Context, providerID string, day calendar.Day) (Result, bool, error)
	Set(ctx context.Context, providerID string, day calendar.Day, res Result) error
}

// Checker is what callers of the resolver depend on.
type Checker interface {
	Check(ctx context.Context, providerID string, day calendar.Day) Result
}

// =============================================================================
// RESOLVER - Remote check with retry and fail-open
// =============================================================================

const (
	DefaultMaxRetries = 2
	DefaultBackoff    = 500 * time.Millisecond
)

// Resolver checks one provider/day against live event counts.
//
// On a source error it retries MaxRetries more times, waiting Backoff x attempt
// before each retry. When every attempt fails it fails open: the day is
// reported available with Degraded set. A sale is never blocked by an
// infrastructure hiccup.
type Resolver struct {
	Source     Source
	Cache      Cache // optional
	Logger     zerolog.Logger
	MaxRetries int
	Backoff    time.Duration
}

func NewResolver(source Source, logger zerolog.Logger) *Resolver {
	return &Resolver{
		Source:     source,
		Logger:     logger,
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultBackoff,
	}
}

// Check never returns an error. See Result.Degraded.
func (r *Resolver) Check(ctx context.Context, providerID string, day calendar.Day) Result {
	log := r.Logger.With().Str("provider_id", providerID).Str("date", day.String()).Logger()

	if r.Cache != nil {
		res, ok, err := r.Cache.Get(ctx, providerID, day)
		if err != nil {
			log.Warn().Err(err).Msg("availability cache read failed")
		} else if ok {
			log.Debug().Str("status", string(res.Status)).Msg("availability cache hit")
			return res
		}
	}

	retries := r.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, r.Backoff*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}

		snap, err := r.Source.Snapshot(ctx, providerID, day)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("availability check failed")
			continue
		}

		res := Classify(day, snap)
		log.Debug().
			Str("status", string(res.Status)).
			Int("current", res.CurrentCount).
			Int("max", res.MaxCount).
			Msg("availability checked")

		if r.Cache != nil {
			if err := r.Cache.Set(ctx, providerID, day, res); err != nil {
				log.Warn().Err(err).Msg("availability cache write failed")
			}
		}
		return res
	}

	log.Error().Err(lastErr).Msg("availability check degraded, failing open")
	return FailOpen(day)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
