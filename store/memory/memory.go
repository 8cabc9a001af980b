// Package memory provides an in-memory store.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/pricing"
	"github.com/warp/quote-engine/quote"
	"github.com/warp/quote-engine/store"
)

var _ store.Store = (*Memory)(nil)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	configs        map[string]availability.RuleConfig
	blockedDates   map[string][]availability.BlockedDate
	blockedPeriods map[string][]availability.BlockedPeriod
	events         map[eventKey][]availability.EventRecord
	eventKeys      map[string]eventKey // by event ID

	templates   map[string]quote.Template
	products    map[string][]pricing.Product
	methods     map[string][]pricing.PaymentMethod
	extraFields map[string][]quote.ExtraField
	seasons     map[string][]pricing.Season
	cities      map[string][]pricing.City
	coupons     map[couponKey]coupon.Coupon

	// failure injection
	failSnapshots int
	failErr       error
	snapshotCalls int
}

type eventKey struct {
	ProviderID string
	Date       calendar.Day
}

type couponKey struct {
	TemplateID string
	Code       string
}

func New() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.configs = make(map[string]availability.RuleConfig)
	m.blockedDates = make(map[string][]availability.BlockedDate)
	m.blockedPeriods = make(map[string][]availability.BlockedPeriod)
	m.events = make(map[eventKey][]availability.EventRecord)
	m.eventKeys = make(map[string]eventKey)
	m.templates = make(map[string]quote.Template)
	m.products = make(map[string][]pricing.Product)
	m.methods = make(map[string][]pricing.PaymentMethod)
	m.extraFields = make(map[string][]quote.ExtraField)
	m.seasons = make(map[string][]pricing.Season)
	m.cities = make(map[string][]pricing.City)
	m.coupons = make(map[couponKey]coupon.Coupon)
	m.failSnapshots = 0
	m.failErr = nil
	m.snapshotCalls = 0
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// FailSnapshots makes the next n Snapshot calls return err. A nil err uses
// availability.ErrSourceUnavailable.
func (m *Memory) FailSnapshots(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = availability.ErrSourceUnavailable
	}
	m.failSnapshots = n
	m.failErr = err
}

// SnapshotCalls counts Snapshot calls, failed ones included.
func (m *Memory) SnapshotCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotCalls
}

// =============================================================================
// AVAILABILITY
// =============================================================================

func (m *Memory) Snapshot(_ context.Context, providerID string, day calendar.Day) (availability.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshotCalls++
	if m.failSnapshots > 0 {
		m.failSnapshots--
		return availability.Snapshot{}, m.failErr
	}

	snap := m.rulesLocked(providerID)
	for _, e := range m.events[eventKey{ProviderID: providerID, Date: day}] {
		if e.Status.CountsTowardCapacity() {
			snap.EventCount++
		}
	}
	return snap, nil
}

func (m *Memory) Rules(_ context.Context, providerID string) (availability.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rulesLocked(providerID), nil
}

func (m *Memory) rulesLocked(providerID string) availability.Snapshot {
	return availability.Snapshot{
		Config:         m.configLocked(providerID),
		BlockedDates:   append([]availability.BlockedDate(nil), m.blockedDates[providerID]...),
		BlockedPeriods: append([]availability.BlockedPeriod(nil), m.blockedPeriods[providerID]...),
	}
}

func (m *Memory) configLocked(providerID string) availability.RuleConfig {
	cfg, ok := m.configs[providerID]
	if !ok {
		cfg = availability.DefaultRuleConfig(providerID)
		m.configs[providerID] = cfg
	}
	return cfg
}

func (m *Memory) RuleConfig(_ context.Context, providerID string) (availability.RuleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configLocked(providerID), nil
}

func (m *Memory) SaveRuleConfig(_ context.Context, cfg availability.RuleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.ProviderID] = cfg
	return nil
}

func (m *Memory) AddBlockedDate(_ context.Context, b availability.BlockedDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockedDates[b.ProviderID] = upsert(m.blockedDates[b.ProviderID], b, func(x availability.BlockedDate) string { return x.Date.String() })
	return nil
}

func (m *Memory) AddBlockedPeriod(_ context.Context, p availability.BlockedPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockedPeriods[p.ProviderID] = upsert(m.blockedPeriods[p.ProviderID], p, func(x availability.BlockedPeriod) string { return x.ID })
	return nil
}

func (m *Memory) AddEvent(_ context.Context, e availability.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.eventKeys[e.ID]; ok {
		m.removeEventLocked(old, e.ID)
	}
	k := eventKey{ProviderID: e.ProviderID, Date: e.Date}
	m.events[k] = append(m.events[k], e)
	m.eventKeys[e.ID] = k
	return nil
}

func (m *Memory) removeEventLocked(k eventKey, id string) {
	var kept []availability.EventRecord
	for _, e := range m.events[k] {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(m.events, k)
	} else {
		m.events[k] = kept
	}
}

func (m *Memory) ClearProvider(_ context.Context, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blockedDates, providerID)
	delete(m.blockedPeriods, providerID)
	for id, k := range m.eventKeys {
		if k.ProviderID == providerID {
			delete(m.eventKeys, id)
		}
	}
	for k := range m.events {
		if k.ProviderID == providerID {
			delete(m.events, k)
		}
	}
	delete(m.seasons, providerID)
	delete(m.cities, providerID)

	for id, t := range m.templates {
		if t.ProviderID != providerID {
			continue
		}
		delete(m.templates, id)
		delete(m.products, id)
		delete(m.methods, id)
		delete(m.extraFields, id)
		for k := range m.coupons {
			if k.TemplateID == id {
				delete(m.coupons, k)
			}
		}
	}
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) Offer(_ context.Context, templateID string) (*quote.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[templateID]
	if !ok {
		return nil, nil
	}
	offer := &quote.Offer{
		Template:       t,
		Products:       append([]pricing.Product{}, m.products[templateID]...),
		Seasons:        append([]pricing.Season{}, m.seasons[t.ProviderID]...),
		Cities:         append([]pricing.City{}, m.cities[t.ProviderID]...),
		PaymentMethods: append([]pricing.PaymentMethod{}, m.methods[templateID]...),
		ExtraFields:    append([]quote.ExtraField{}, m.extraFields[templateID]...),
	}
	pricing.SortProducts(offer.Products)
	return offer, nil
}

func (m *Memory) SaveTemplate(_ context.Context, t quote.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *Memory) ListTemplates(_ context.Context) ([]quote.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]quote.Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SaveProduct(_ context.Context, templateID string, p pricing.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[templateID] = upsert(m.products[templateID], p, func(x pricing.Product) string { return x.ID })
	return nil
}

func (m *Memory) SavePaymentMethod(_ context.Context, templateID string, pm pricing.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[templateID] = upsert(m.methods[templateID], pm, func(x pricing.PaymentMethod) string { return x.ID })
	return nil
}

func (m *Memory) SaveExtraField(_ context.Context, templateID string, f quote.ExtraField) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extraFields[templateID] = upsert(m.extraFields[templateID], f, func(x quote.ExtraField) string { return x.ID })
	return nil
}

func (m *Memory) SaveSeason(_ context.Context, providerID string, s pricing.Season) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seasons[providerID] = upsert(m.seasons[providerID], s, func(x pricing.Season) string { return x.ID })
	return nil
}

func (m *Memory) SaveCity(_ context.Context, providerID string, c pricing.City) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cities[providerID] = upsert(m.cities[providerID], c, func(x pricing.City) string { return x.ID })
	return nil
}

// DeleteCity removes a city, leaving sessions that picked it with a stale id.
func (m *Memory) DeleteCity(providerID, cityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.cities[providerID][:0]
	for _, c := range m.cities[providerID] {
		if c.ID != cityID {
			kept = append(kept, c)
		}
	}
	m.cities[providerID] = kept
}

// =============================================================================
// COUPONS
// =============================================================================

func (m *Memory) SaveCoupon(_ context.Context, c coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Code = coupon.NormalizeCode(c.Code)
	m.coupons[couponKey{TemplateID: c.TemplateID, Code: c.Code}] = c
	return nil
}

func (m *Memory) FindActive(_ context.Context, templateID, code string) (*coupon.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coupons[couponKey{TemplateID: templateID, Code: code}]
	if !ok || !c.Active {
		return nil, nil
	}
	return &c, nil
}

func upsert[T any](items []T, item T, id func(T) string) []T {
	for i := range items {
		if id(items[i]) == id(item) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}
