package auth

import (
	"context"
	"sync"
	"time"
)

// Denylist holds raw access tokens revoked before their natural
// expiry. Membership is checked on every authenticated request.
type Denylist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Allowlist holds the refresh tokens currently considered valid.
// Absence means invalid even when signature and expiry would pass.
type Allowlist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
	Remove(ctx context.Context, token string) error
}

// TokenRegistry bundles the two capability-scoped stores so bootstrap
// can swap the backend without touching the Authority's logic.
type TokenRegistry struct {
	Denylist  Denylist
	Allowlist Allowlist
}

// MemoryRegistry backs both sets with in-process maps. Entries carry
// an expiry so maintenance can drop ones whose token would no longer
// verify anyway. A process restart voids everything: all revocations
// and all registered refresh tokens.
type MemoryRegistry struct {
	mu      sync.RWMutex
	denied  map[string]time.Time
	allowed map[string]time.Time
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		denied:  make(map[string]time.Time),
		allowed: make(map[string]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRegistry) Registry() TokenRegistry {
	return TokenRegistry{Denylist: (*memoryDenylist)(m), Allowlist: (*memoryAllowlist)(m)}
}

// Purge removes entries whose expiry has passed and reports how many
// were dropped.
func (m *MemoryRegistry) Purge() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for token, expires := range m.denied {
		if now.After(expires) {
			delete(m.denied, token)
			purged++
		}
	}
	for token, expires := range m.allowed {
		if now.After(expires) {
			delete(m.allowed, token)
			purged++
		}
	}

	return purged
}

type memoryDenylist MemoryRegistry

func (m *memoryDenylist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[token] = m.now().Add(ttl)
	return nil
}

func (m *memoryDenylist) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, revoked := m.denied[token]
	return revoked, nil
}

type memoryAllowlist MemoryRegistry

func (m *memoryAllowlist) Add(_ context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowed[token] = m.now().Add(ttl)
	return nil
}

func (m *memoryAllowlist) Contains(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.allowed[token]
	return ok, nil
}

func (m *memoryAllowlist) Remove(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.allowed, token)
	return nil
}
