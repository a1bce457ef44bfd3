package autoquiz

import (
	"context"
	"log"
	"sync"
	"time"
)

// UsageDecision is the outcome of one quota check.
type UsageDecision struct {
	Allowed    bool
	Remaining  int
	NonDurable bool // decided by the in-memory fallback counter
}

// UsageStore is the per-(identity, date) daily counter behind the usage
// guard. Increment must be atomic: concurrent requests for the last
// remaining slot must not both be admitted, so a plain read-then-write is
// not an acceptable implementation.
type UsageStore interface {
	// Increment atomically bumps the counter for (identity, date) if it is
	// below limit, returning whether the bump was admitted and how many
	// slots remain afterwards.
	Increment(ctx context.Context, identity, date string, limit int) (allowed bool, remaining int, err error)
}

// usageDate formats the date-scoped half of the counter key. The key
// rolling over at midnight is the whole reset mechanism: no background job
// needed.
func usageDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UsageGuard enforces the per-identity daily quota. On storage
// unavailability it fails open into a bounded in-memory counter rather than
// blocking the feature; decisions made that way are flagged non-durable.
type UsageGuard struct {
	store    UsageStore
	fallback *MemoryUsageStore
	limit    int
}

// NewUsageGuard wraps a durable store with the fail-open fallback.
func NewUsageGuard(store UsageStore, limit int) *UsageGuard {
	return &UsageGuard{
		store:    store,
		fallback: NewMemoryUsageStore(),
		limit:    limit,
	}
}

// CheckAndIncrement consumes one quota slot for identity today.
func (g *UsageGuard) CheckAndIncrement(ctx context.Context, identity string) (UsageDecision, error) {
	date := usageDate(time.Now())

	allowed, remaining, err := g.store.Increment(ctx, identity, date, g.limit)
	if err == nil {
		return UsageDecision{Allowed: allowed, Remaining: remaining}, nil
	}

	log.Printf("Usage store unavailable, failing open to in-memory counter: %v", err)
	allowed, remaining, ferr := g.fallback.Increment(ctx, identity, date, g.limit)
	if ferr != nil {
		return UsageDecision{}, ferr
	}
	return UsageDecision{Allowed: allowed, Remaining: remaining, NonDurable: true}, nil
}

// memoryStoreMaxIdentities bounds the fallback map so a storage outage
// cannot grow process memory without limit.
const memoryStoreMaxIdentities = 10000

// MemoryUsageStore is an in-process UsageStore. It backs the fail-open
// path and test fakes; counts do not survive a restart.
type MemoryUsageStore struct {
	mu     sync.Mutex
	date   string
	counts map[string]int
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{counts: make(map[string]int)}
}

func (m *MemoryUsageStore) Increment(_ context.Context, identity, date string, limit int) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Date rollover drops yesterday's counts wholesale.
	if m.date != date {
		m.date = date
		m.counts = make(map[string]int)
	}

	count := m.counts[identity]
	if count >= limit {
		return false, 0, nil
	}
	if count == 0 && len(m.counts) >= memoryStoreMaxIdentities {
		// At capacity: admit without tracking rather than blocking the feature.
		return true, limit - 1, nil
	}
	m.counts[identity] = count + 1
	return true, limit - count - 1, nil
}
