package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/coupon"
)

// Service opens and tracks quote sessions.
type Service struct {
	catalog  Catalog
	checker  availability.Checker
	coupons  *coupon.Validator
	notifier Notifier
	logger   zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	now   func() time.Time
	newID func() string
}

func NewService(catalog Catalog, checker availability.Checker, coupons *coupon.Validator, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		checker:  checker,
		coupons:  coupons,
		notifier: notifier,
		logger:   logger,
		sessions: make(map[string]*Session),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Open starts a session for templateID with required products pre-selected.
func (s *Service) Open(ctx context.Context, templateID string) (*Session, error) {
	offer, err := s.loadOffer(ctx, templateID)
	if err != nil {
		return nil, err
	}

	sess := newSession(s.newID(), s, *offer)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug().
		Str("session_id", sess.ID).
		Str("template_id", templateID).
		Msg("quote session opened")
	return sess, nil
}

// Session looks up a session and marks it active.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// Close forgets a session. Unknown ids are ignored.
func (s *Service) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.ClearDate()
		delete(s.sessions, id)
	}
}

// Expire closes sessions idle for more than maxAge and returns how many
// were closed.
func (s *Service) Expire(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.ClearDate()
	}
	if len(expired) > 0 {
		s.logger.Debug().Int("count", len(expired)).Msg("quote sessions expired")
	}
	return len(expired)
}

// Offer returns a template's current offer.
func (s *Service) Offer(ctx context.Context, templateID string) (*Offer, error) {
	return s.loadOffer(ctx, templateID)
}

// Coupons exposes the validator for stateless coupon checks.
func (s *Service) Coupons() *coupon.Validator {
	return s.coupons
}

func (s *Service) loadOffer(ctx context.Context, templateID string) (*Offer, error) {
	offer, err := s.catalog.Offer(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", templateID, err)
	}
	if offer == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}
	return offer, nil
}
