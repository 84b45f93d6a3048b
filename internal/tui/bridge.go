package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/leapstack-labs/leapview/pkg/protocol"
)

// Handler answers renderer requests; *backend.Dispatcher satisfies it.
type Handler interface {
	Handle(ctx context.Context, msg protocol.FrontMessage)
}

// ReplyMsg carries one backend message into the program.
type ReplyMsg struct {
	Msg protocol.BackMessage
}

// NoticeMsg is a transient confirmation shown in the status line.
type NoticeMsg string

// Bridge moves messages between the program and the backend. Requests are
// handled one at a time, in order, by Serve; replies and notices are
// delivered to the program through Wait.
type Bridge struct {
	requests chan protocol.FrontMessage
	events   chan tea.Msg
	done     chan struct{}
}

// NewBridge creates a bridge with the given queue capacity.
func NewBridge(capacity int) *Bridge {
	if capacity <= 0 {
		capacity = 16
	}
	return &Bridge{
		requests: make(chan protocol.FrontMessage, capacity),
		events:   make(chan tea.Msg, capacity),
		done:     make(chan struct{}),
	}
}

// Post delivers a backend message to the program.
func (b *Bridge) Post(msg protocol.BackMessage) {
	b.send(ReplyMsg{Msg: msg})
}

// Notify delivers a notice to the program.
func (b *Bridge) Notify(text string) {
	b.send(NoticeMsg(text))
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

// Request queues a renderer message for the backend.
func (b *Bridge) Request(msg protocol.FrontMessage) {
	select {
	case b.requests <- msg:
	case <-b.done:
	}
}

// Serve hands queued requests to h until ctx is cancelled or the bridge is
// closed.
func (b *Bridge) Serve(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case msg := <-b.requests:
			h.Handle(ctx, msg)
		}
	}
}

// Wait returns a command that blocks for the next reply or notice.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-b.done:
			return nil
		}
	}
}

// Close releases goroutines blocked on the bridge.
func (b *Bridge) Close() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}
