package hub

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrBufferFull is returned by Deliver when the member's send buffer is full.
	ErrBufferFull = errors.New("send buffer full")
	// ErrMemberClosed is returned by Deliver after the member was closed.
	ErrMemberClosed = errors.New("member closed")
	// ErrHubClosed is returned by Join after the hub was closed.
	ErrHubClosed = errors.New("hub closed")
)

// Member is one live connection registered in a group.
type Member interface {
	ID() string
	// Deliver enqueues payload without blocking.
	Deliver(payload []byte) error
	// Accepts reports whether updates for symbol should reach this member.
	Accepts(symbol string) bool
	Close()
}

// DeliveryError describes a failed delivery to one member. The member is
// evicted from the group and closed; the publisher never sees this error.
type DeliveryError struct {
	Group    string
	MemberID string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s in %s: %v", e.MemberID, e.Group, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// BufferedMember is a Member backed by a bounded channel. The connection's
// writer drains Messages; the channel is closed by Close.
type BufferedMember struct {
	id     string
	filter func(symbol string) bool

	mu     sync.RWMutex
	send   chan []byte
	closed bool
}

var _ Member = (*BufferedMember)(nil)

// NewBufferedMember creates a member with a send buffer of size slots.
// A nil filter accepts every symbol.
func NewBufferedMember(id string, size int, filter func(symbol string) bool) *BufferedMember {
	if size <= 0 {
		size = 1
	}
	return &BufferedMember{id: id, filter: filter, send: make(chan []byte, size)}
}

func (m *BufferedMember) ID() string { return m.id }

// Deliver enqueues payload or fails immediately.
func (m *BufferedMember) Deliver(payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrMemberClosed
	}
	select {
	case m.send <- payload:
		return nil
	default:
		return ErrBufferFull
	}
}

func (m *BufferedMember) Accepts(symbol string) bool {
	return m.filter == nil || m.filter(symbol)
}

// Messages returns the queue drained by the connection writer.
func (m *BufferedMember) Messages() <-chan []byte {
	return m.send
}

// Close closes the send queue. It is safe to call more than once.
func (m *BufferedMember) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.send)
}

// Closed reports whether Close was called.
func (m *BufferedMember) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
