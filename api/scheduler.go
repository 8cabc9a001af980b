/*
scheduler.go - Periodic expiry of idle quote sessions

PURPOSE:
  Quote sessions live in memory. A client that walks away never closes its
  session, so a background ticker drops sessions older than MaxAge.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls quote.Service.Expire
  - Closing a session cancels any availability check still in flight

CONFIGURATION:
  - CheckInterval: How often to check (default: 10 minutes)
  - MaxAge: Session lifetime (default: 24 hours)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewSessionScheduler(quotes, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - quote/service.go: Expire
  - handlers.go: CloseSession (explicit close)
*/
package api

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/quote-engine/quote"
)

// SessionScheduler expires idle quote sessions.
type SessionScheduler struct {
	Quotes        *quote.Service
	CheckInterval time.Duration
	MaxAge        time.Duration
	Enabled       bool

	logger zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSessionScheduler creates a new scheduler.
func NewSessionScheduler(quotes *quote.Service, logger zerolog.Logger) *SessionScheduler {
	return &SessionScheduler{
		Quotes:        quotes,
		CheckInterval: 10 * time.Minute,
		MaxAge:        24 * time.Hour,
		Enabled:       true,
		logger:        logger.With().Str("component", "session_scheduler").Logger(),
	}
}

// Start begins the scheduler. Calling Start twice has no effect.
func (ss *SessionScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.logger.Info().Msg("disabled, not starting")
		return
	}
	if ss.ticker != nil {
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.stop = make(chan struct{})
	ss.wg.Add(1)

	go ss.run(ss.ticker, ss.stop)

	ss.logger.Info().Dur("interval", ss.CheckInterval).Dur("max_age", ss.MaxAge).Msg("started")
}

// Stop stops the scheduler and waits for the current tick to finish.
func (ss *SessionScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		ss.ticker = nil
		ss.logger.Info().Msg("stopped")
	}
}

func (ss *SessionScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ss.wg.Done()

	for {
		select {
		case <-ticker.C:
			ss.expire()
		case <-stop:
			return
		}
	}
}

func (ss *SessionScheduler) expire() {
	if n := ss.Quotes.Expire(ss.MaxAge); n > 0 {
		ss.logger.Info().Int("expired", n).Msg("idle quote sessions closed")
	}
}
