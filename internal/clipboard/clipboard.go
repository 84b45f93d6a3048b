// Package clipboard provides text sinks for copied queries.
package clipboard

import (
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// Sink accepts plain text.
type Sink interface {
	WriteText(text string) error
}

// System writes to the operating system clipboard.
type System struct{}

// Available reports whether a system clipboard utility was found.
func (System) Available() bool {
	return !clipboard.Unsupported
}

// WriteText replaces the clipboard contents with text.
func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("no clipboard utility available (install xclip, xsel or wl-clipboard)")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// ReadText returns the current clipboard contents.
func (System) ReadText() (string, error) {
	return clipboard.ReadAll()
}

// Memory keeps copied text in process, for headless sessions and tests.
type Memory struct {
	mu      sync.Mutex
	history []string
}

// WriteText records text as the latest clipboard contents.
func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, text)
	return nil
}

// ReadText returns the latest text written, or "" if none.
func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return "", nil
	}
	return m.history[len(m.history)-1], nil
}

// History returns every text written, oldest first.
func (m *Memory) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

// Detect returns the system clipboard when one is usable, and an in-memory
// sink otherwise.
func Detect() Sink {
	if (System{}).Available() {
		return System{}
	}
	return &Memory{}
}
