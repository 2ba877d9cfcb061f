// internal/store/memory.go
//
// In-memory registry of live game sessions.
// Each HTTP client plays its own session; this store only maps session IDs
// to *game.Session for the lifetime of the process.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Tracks last access so idle sessions can be reaped.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/internal/game"
)

// ErrNotFound is returned by Get for unknown or reaped session IDs.
var ErrNotFound = errors.New("session not found")

// Store defines the registry interface for game sessions.
type Store interface {
	// Save adds or replaces a session, keyed by its ID.
	Save(ctx context.Context, s *game.Session) error

	// Get retrieves a session by ID and marks it active.
	Get(ctx context.Context, id string) (*game.Session, error)

	// Delete removes a session and cancels its timers.
	Delete(ctx context.Context, id string) error

	// Reap removes sessions idle for longer than idle and returns how many.
	Reap(ctx context.Context, idle time.Duration) int

	// Len reports the number of live sessions.
	Len() int
}

type entry struct {
	sess       *game.Session
	lastActive time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex      // guards sessions
	sessions map[string]*entry // keyed by Session.ID()
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return newMemory(time.Now)
}

func newMemory(now func() time.Time) *memory {
	return &memory{sessions: make(map[string]*entry), now: now}
}

func (m *memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = &entry{sess: s, lastActive: m.now()}
	return nil
}

// Get takes the write lock because it refreshes lastActive.
func (m *memory) Get(ctx context.Context, id string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastActive = m.now()
	return e.sess, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.sess.Close()
	return nil
}

func (m *memory) Reap(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var stale []*game.Session
	for id, e := range m.sessions {
		if e.lastActive.Before(cutoff) {
			stale = append(stale, e.sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		log.Info().Int("reaped", len(stale)).Dur("idle", idle).Msg("idle sessions removed")
	}
	return len(stale)
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunReaper calls Reap every interval until ctx is done.
func RunReaper(ctx context.Context, st Store, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st.Reap(ctx, idle)
		}
	}
}
