// Package notifier tells the event streams of one browser session what part
// of the page to redraw.
package notifier

import "sync"

// Change is a set of page regions that need redrawing.
type Change uint8

// Page regions.
const (
	ChangeResults Change = 1 << iota
	ChangeStatus
	ChangeSignals

	ChangeAll = ChangeResults | ChangeStatus | ChangeSignals
)

// Has reports whether c includes every region of other.
func (c Change) Has(other Change) bool { return c&other == other }

// Listener accumulates changes until its stream takes them. Changes are
// merged, never dropped: a slow stream redraws the union of everything it
// missed.
type Listener struct {
	mu      sync.Mutex
	pending Change
	ready   chan struct{}
}

// Ready is signalled when changes are pending.
func (l *Listener) Ready() <-chan struct{} { return l.ready }

// Take returns and clears the pending changes.
func (l *Listener) Take() Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.pending
	l.pending = 0
	return c
}

func (l *Listener) add(c Change) {
	l.mu.Lock()
	l.pending |= c
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Notifier broadcasts changes to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{listeners: make(map[*Listener]struct{})}
}

// Subscribe returns a listener that starts with initial pending.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe(initial Change) *Listener {
	l := &Listener{ready: make(chan struct{}, 1)}
	if initial != 0 {
		l.add(initial)
	}
	n.mu.Lock()
	n.listeners[l] = struct{}{}
	n.mu.Unlock()
	return l
}

// Unsubscribe removes a listener.
func (n *Notifier) Unsubscribe(l *Listener) {
	n.mu.Lock()
	delete(n.listeners, l)
	n.mu.Unlock()
}

// Listeners returns the number of subscribed listeners.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Broadcast adds c to every listener. It never blocks.
func (n *Notifier) Broadcast(c Change) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for l := range n.listeners {
		l.add(c)
	}
}
