// Package auth holds the process-wide credential pair and serializes its
// refresh. All token mutation goes through the Manager; the canvas client
// only ever reads.
package auth

import (
	"context"
	"sync"
)

// Tokens is the access/refresh pair as held right now.
type Tokens struct {
	Access  string
	Refresh string
}

// ExchangeFunc trades a refresh token for a new token pair at the canvas
// authority's token endpoint. An error means the refresh token itself was
// rejected; callers treat that as requiring operator attention.
type ExchangeFunc func(ctx context.Context, refreshToken string) (Tokens, error)

type call struct {
	done chan struct{}
	err  error
}

// Manager is the single authoritative holder of the credential pair.
// Refresh is coalesced: concurrent callers share one in-flight exchange.
type Manager struct {
	exchange ExchangeFunc

	mu       sync.Mutex
	tokens   Tokens
	inflight *call
}

func NewManager(initial Tokens, exchange ExchangeFunc) *Manager {
	return &Manager{tokens: initial, exchange: exchange}
}

// Token returns the current access token. Never blocks.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.Access
}

// Current returns the token pair held right now. Never blocks.
func (m *Manager) Current() Tokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

// Adopt replaces the held pair with tokens the authority rotated in-band
// (Set-Cookie on a write response). Empty fields keep their prior value.
func (m *Manager) Adopt(access, refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if access != "" {
		m.tokens.Access = access
	}
	if refresh != "" {
		m.tokens.Refresh = refresh
	}
}

// Refresh exchanges the refresh token for a new access token. On success
// the held pair is replaced atomically; on failure prior state is left
// untouched. If a refresh is already in flight, the caller waits for its
// result instead of triggering another exchange.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if c := m.inflight; c != nil {
		m.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	m.inflight = c
	refreshToken := m.tokens.Refresh
	m.mu.Unlock()

	tokens, err := m.exchange(ctx, refreshToken)

	m.mu.Lock()
	if err == nil {
		m.tokens = tokens
	}
	m.inflight = nil
	m.mu.Unlock()

	c.err = err
	close(c.done)
	return err
}
