// Package projection provides durable single-slot stores for the session
// projection: an OS keyring slot, a JSON file under the user config
// directory, and an in-memory store for tests.
package projection

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/employd-dev/employd/internal/session"
)

// NewDefaultStore returns the keyring-backed store when the OS keyring
// is usable, falling back to the config-dir file store on headless
// machines without one.
func NewDefaultStore(log zerolog.Logger) session.ProjectionStore {
	return chooseStore(NewKeyringStore(), func() (session.ProjectionStore, error) {
		return NewFileStore()
	}, log)
}

// chooseStore probes the primary store with a read; an empty slot is
// fine, a backend failure switches to the fallback.
func chooseStore(primary session.ProjectionStore, fallback func() (session.ProjectionStore, error), log zerolog.Logger) session.ProjectionStore {
	if _, _, err := primary.Load(); err == nil {
		return primary
	}

	fb, err := fallback()
	if err != nil {
		log.Warn().Err(err).Msg("Session storage fallback unavailable, staying on keyring")
		return primary
	}
	log.Warn().Msg("OS keyring unavailable, persisting session under the config directory")
	return fb
}

// envelope is the on-disk shape of the slot. The projection nests under
// "state" so the slot can grow versioning metadata later without
// breaking existing readers.
type envelope struct {
	State session.Projection `json:"state"`
}

func encode(p session.Projection) ([]byte, error) {
	return json.Marshal(envelope{State: p})
}

// decode parses a stored slot. An unparseable slot is reported as
// absent: a prior session we cannot read is a session we do not have.
func decode(data []byte) (session.Projection, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return session.Projection{}, false
	}
	return env.State, true
}
