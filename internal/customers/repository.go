package customers

import (
	"context"
	"errors"
	"sync"
)

// ErrProfileNotFound is returned when no profile exists for a sender.
var ErrProfileNotFound = errors.New("customers: profile not found")

// ProfileRepository persists customer profiles keyed by sender ID.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Upsert(ctx context.Context, profile *Profile) error
}

// HistoryRepository keeps the rolling, capped conversation history per sender.
type HistoryRepository interface {
	Append(ctx context.Context, id string, turns ...Turn) error
	History(ctx context.Context, id string) ([]Turn, error)
}

// Store combines both persistence concerns; every backend implements it.
type Store interface {
	ProfileRepository
	HistoryRepository
}

// DefaultHistoryLimit is the number of turns kept when a backend is built with a non-positive limit.
const DefaultHistoryLimit = 10

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// InMemoryRepository is a process-local Store used for development, tests and the simulator.
type InMemoryRepository struct {
	mu       sync.RWMutex
	limit    int
	profiles map[string]*Profile
	history  map[string][]Turn
}

// NewInMemoryRepository creates a new in-memory store keeping at most historyLimit turns per sender.
func NewInMemoryRepository(historyLimit int) *InMemoryRepository {
	return &InMemoryRepository{
		limit:    normalizeLimit(historyLimit),
		profiles: make(map[string]*Profile),
		history:  make(map[string][]Turn),
	}
}

// Get returns a copy of the stored profile.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return profile.Clone(), nil
}

// Upsert stores a copy of the profile.
func (r *InMemoryRepository) Upsert(ctx context.Context, profile *Profile) error {
	if profile == nil || profile.ID == "" {
		return errors.New("customers: profile id required")
	}
	r.mu.Lock()
	r.profiles[profile.ID] = profile.Clone()
	r.mu.Unlock()
	return nil
}

// Append adds turns and evicts the oldest beyond the limit.
func (r *InMemoryRepository) Append(ctx context.Context, id string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	history := append(r.history[id], turns...)
	if over := len(history) - r.limit; over > 0 {
		history = append([]Turn(nil), history[over:]...)
	}
	r.history[id] = history
	return nil
}

// History returns the retained turns oldest first.
func (r *InMemoryRepository) History(ctx context.Context, id string) ([]Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Turn(nil), r.history[id]...), nil
}
