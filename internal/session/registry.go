// Package session tracks the active batch per session key and its cancel flag.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

// Token is the cancellation handle of one running batch.
type Token struct {
	key       string
	cancelled atomic.Bool
}

// Key returns the session key the token was issued for.
func (t *Token) Key() string { return t.key }

// Cancel flags the batch; the pipeline observes it before its next item.
func (t *Token) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Registry allows at most one active batch per key. Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Token
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Token)}
}

// Acquire registers a batch for key. The returned release func is idempotent
// and only removes the token it was issued with.
func (r *Registry) Acquire(key string) (*Token, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.active[key]; busy {
		return nil, func() {}, fmt.Errorf("session %s: %w", key, domain.ErrDuplicateBatch)
	}
	tok := &Token{key: key}
	r.active[key] = tok

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.active[key] == tok {
				delete(r.active, key)
			}
		})
	}
	return tok, release, nil
}

// Cancel flags the active batch for key. It reports false when none is running.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	tok, ok := r.active[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	tok.Cancel()
	return true
}

// Active reports whether key has a running batch.
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}

// Len returns the number of running batches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
