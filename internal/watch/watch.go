// Package watch reports changes to a single file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of events, such as an editor writing a
// file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// Op is the kind of change observed.
type Op int

// Change kinds.
const (
	OpChanged Op = iota
	OpCreated
	OpDeleted
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpDeleted:
		return "deleted"
	default:
		return "changed"
	}
}

// Event is a change of the watched file.
type Event struct {
	Path string
	Op   Op
}

// Config holds watcher configuration.
type Config struct {
	// Path is the file to watch (required).
	Path string
	// Debounce delays delivery until events stop arriving (default 100ms).
	Debounce time.Duration
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Watcher delivers change, create and delete events for exactly one path.
//
// The parent directory is watched rather than the file itself so the watch
// survives the file being deleted and recreated, as editors and export tools
// commonly do.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// New starts watching cfg.Path. Events are only delivered once Run is called.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path not specified")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", cfg.Path, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		logger:   logger.With("path", abs),
		fsw:      fsw,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Run delivers debounced events to fn until ctx is cancelled, then releases
// the watch. fn runs on a timer goroutine, never concurrently with itself.
func (w *Watcher) Run(ctx context.Context, fn func(Event)) error {
	defer func() { _ = w.fsw.Close() }()

	var (
		mu      sync.Mutex
		timer   *time.Timer
		pending Op
		deliver sync.Mutex
		stopped bool
	)
	defer func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			op, relevant := w.classify(event)
			if !relevant {
				continue
			}

			mu.Lock()
			pending = op
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				if stopped {
					mu.Unlock()
					return
				}
				ev := Event{Path: w.path, Op: pending}
				mu.Unlock()

				deliver.Lock()
				defer deliver.Unlock()
				w.logger.Debug("file changed", "op", ev.Op)
				fn(ev)
			})
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) classify(event fsnotify.Event) (Op, bool) {
	if filepath.Clean(event.Name) != w.path {
		return 0, false
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return OpDeleted, true
	case event.Has(fsnotify.Create):
		return OpCreated, true
	case event.Has(fsnotify.Write):
		return OpChanged, true
	default:
		return 0, false
	}
}
