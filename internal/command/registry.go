// Package command tracks the most recent command token per user. Minting
// a new token invalidates all in-flight work started under older ones;
// cancellation is purely cooperative.
package command

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds the current command token for each user.
type Registry struct {
	mu      sync.RWMutex
	current map[int64]uuid.UUID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		current: make(map[int64]uuid.UUID),
	}
}

// Mint creates a new token and stores it as current for the user,
// replacing any previous one.
func (r *Registry) Mint(userID int64) uuid.UUID {
	token := uuid.New()

	r.mu.Lock()
	r.current[userID] = token
	r.mu.Unlock()

	return token
}

// IsCurrent reports whether token is still the latest one minted for the
// user. Long-running work must re-check this at bounded intervals and
// abort without merging partial output once it observes false.
func (r *Registry) IsCurrent(userID int64, token uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cur, ok := r.current[userID]
	return ok && cur == token
}

// Current returns the latest token minted for the user, if any.
func (r *Registry) Current(userID int64) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cur, ok := r.current[userID]
	return cur, ok
}
