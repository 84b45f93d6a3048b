// Package state persists renderer state between runs.
//
// State lives in key-value slots scoped by session identity. A session is
// one opened document, identified by SessionKey.
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// QueryTextKey is the slot holding the last entered query text.
const QueryTextKey = "query_text"

// Store reads and writes session-scoped slots.
type Store interface {
	// Get returns the value of key in session and whether it was set.
	Get(ctx context.Context, session, key string) (string, bool, error)
	// Set stores value under key in session.
	Set(ctx context.Context, session, key, value string) error
	// Delete removes key from session.
	Delete(ctx context.Context, session, key string) error
	// Close releases the store.
	Close() error
}

// SessionKey derives the session identity of the document at path.
// The same file always maps to the same session.
func SessionKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:16])
}
