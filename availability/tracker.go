package availability

import (
	"context"
	"sync"

	"github.com/warp/quote-engine/calendar"
)

// =============================================================================
// TRACKER - Last-write-wins view of the selected day
// =============================================================================

// Tracker follows the day a client has selected. Every Select supersedes the
// previous one: the older in-flight check is cancelled and its result, when
// it eventually arrives, is discarded. The displayed Result always belongs to
// the most recently selected day, whatever order the checks complete in.
type Tracker struct {
	checker    Checker
	providerID string

	mu       sync.Mutex
	gen      uint64
	day      calendar.Day
	cancel   context.CancelFunc
	current  *Result
	checking bool
}

func NewTracker(checker Checker, providerID string) *Tracker {
	return &Tracker{checker: checker, providerID: providerID}
}

// Select checks day and applies the result unless a newer Select or Clear
// happened meanwhile. The bool reports whether the result was applied.
func (t *Tracker) Select(ctx context.Context, day calendar.Day) (Result, bool) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	gen := t.gen
	t.day = day
	t.current = nil
	t.checking = true
	cctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	res := t.checker.Check(cctx, t.providerID, day)

	t.mu.Lock()
	defer t.mu.Unlock()
	cancel()
	if gen != t.gen || !res.Date.Equal(t.day) {
		return res, false
	}
	t.cancel = nil
	t.current = &res
	t.checking = false
	return res, true
}

// Refresh re-checks the selected day, if any.
func (t *Tracker) Refresh(ctx context.Context) (Result, bool) {
	t.mu.Lock()
	day := t.day
	t.mu.Unlock()
	if day.IsZero() {
		return Result{}, false
	}
	return t.Select(ctx, day)
}

// Clear forgets the selected day and discards any in-flight check.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	t.day = calendar.Day{}
	t.current = nil
	t.checking = false
}

// Current returns the applied result for the selected day.
func (t *Tracker) Current() (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Result{}, false
	}
	return *t.current, true
}

func (t *Tracker) Day() calendar.Day {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.day
}

func (t *Tracker) Checking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checking
}
