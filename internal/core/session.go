package core

import "sync"

// DefaultOutboxSize is the buffered event capacity of a session outbox.
const DefaultOutboxSize = 32

// Session pairs a verified identity with one live transport handle.
// Events queued on the outbox are drained by the transport's write loop.
type Session struct {
	UserID   int64
	Username string

	outbox    chan *Event
	closeOnce sync.Once
	done      chan struct{}
}

// NewSession constructs a session with an initialized outbox.
func NewSession(userID int64, username string, outboxSize int) *Session {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Session{
		UserID:   userID,
		Username: username,
		outbox:   make(chan *Event, outboxSize),
		done:     make(chan struct{}),
	}
}

// Deliver queues an event for the session's transport. Non-blocking:
// events to a slow or closed session are dropped, never redelivered.
func (s *Session) Deliver(event *Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.outbox <- event:
		return true
	default:
		return false
	}
}

// Events exposes the outbox for the transport's write loop.
func (s *Session) Events() <-chan *Event {
	return s.outbox
}

// Close marks the session terminated. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed when the session has been terminated, either by its own
// disconnect or by being replaced with a newer connection.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
