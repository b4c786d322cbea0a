package session

import (
	"sync"

	"github.com/rs/zerolog"
)

// Store holds the session snapshot and is its only writer. Every mutator
// re-enforces the User/IsAuthenticated invariant and re-serializes the
// persisted projection, so readers can never observe a half-applied state.
type Store struct {
	mu       sync.Mutex
	snapshot Snapshot
	proj     ProjectionStore
	logger   zerolog.Logger
}

// NewStore creates a store in the initial bootstrapping state:
// no user, loading, no error.
func NewStore(proj ProjectionStore, log zerolog.Logger) *Store {
	return &Store{
		snapshot: Snapshot{IsLoading: true},
		proj:     proj,
		logger:   log,
	}
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}
	return snap
}

// SetUser replaces the current user. A non-nil user clears any stale
// auth error (a successful authentication supersedes it). Loading is
// always cleared: a user arriving means the in-flight operation is done.
func (s *Store) SetUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.User = u
	s.snapshot.IsAuthenticated = u != nil
	s.snapshot.IsLoading = false
	if u != nil {
		s.snapshot.AuthError = ""
	}
	s.persistLocked()
}

// SetLoading marks whether a session-affecting operation is in flight.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.IsLoading = loading
	s.persistLocked()
}

// SetError publishes a human-readable auth error on the snapshot.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.AuthError = msg
	s.persistLocked()
}

// ClearError removes any published auth error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.AuthError = ""
	s.persistLocked()
}

// Logout resets the store to the logged-out state and clears the
// persisted projection. The auth error is deliberately preserved so a
// forced sign-out (for example a missing profile) keeps its explanation
// visible.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.User = nil
	s.snapshot.IsAuthenticated = false
	s.snapshot.IsLoading = false
	if err := s.proj.Clear(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear persisted session")
	}
}

// RecoverPersisted loads the persisted projection into the snapshot. It
// must run before the first mutation: every mutator re-serializes the
// slot, so a prior process's state is only observable here. A consistent
// slot rehydrates the previous session's user; an inconsistent or
// unreadable one is discarded and the store reset to the logged-out
// state. Returns true when stale state was discarded.
func (s *Store) RecoverPersisted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok, err := s.proj.Load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load persisted session, discarding")
	} else if !ok {
		return false
	} else if !p.Corrupted() {
		s.snapshot.User = p.User
		s.snapshot.IsAuthenticated = p.IsAuthenticated
		return false
	}

	if clearErr := s.proj.Clear(); clearErr != nil {
		s.logger.Warn().Err(clearErr).Msg("Failed to clear persisted session")
	}
	s.snapshot.User = nil
	s.snapshot.IsAuthenticated = false
	return true
}

// persistLocked re-serializes the durable projection. Persistence
// failures are logged, never surfaced: the in-memory snapshot stays
// authoritative.
func (s *Store) persistLocked() {
	p := Projection{
		User:            s.snapshot.User,
		IsAuthenticated: s.snapshot.IsAuthenticated,
	}
	if err := s.proj.Save(p); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist session projection")
	}
}
