package state

import (
	"context"
	"log/slog"
)

// Slot binds one key of one session, for callers that persist a single
// value and cannot act on storage errors. Errors are logged.
type Slot struct {
	store   Store
	session string
	key     string
	logger  *slog.Logger
}

// NewSlot returns the slot key of session in store.
func NewSlot(store Store, session, key string, logger *slog.Logger) *Slot {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Slot{store: store, session: session, key: key, logger: logger}
}

// Load returns the stored value and whether one exists.
func (s *Slot) Load() (string, bool) {
	value, ok, err := s.store.Get(context.Background(), s.session, s.key)
	if err != nil {
		s.logger.Warn("failed to load state", "key", s.key, "error", err)
		return "", false
	}
	return value, ok
}

// Save stores value.
func (s *Slot) Save(value string) {
	if err := s.store.Set(context.Background(), s.session, s.key, value); err != nil {
		s.logger.Warn("failed to save state", "key", s.key, "error", err)
	}
}
