package hub

import (
	"fmt"
	"sync"
)

// Recipient is the push handle through which the hub reaches one session.
// It is implemented by the transport adapter.
//
// Deliver must not block. A Recipient that cannot accept the message returns
// an error wrapping ErrDeliveryUnreachable; the hub drops the message.
type Recipient interface {
	Deliver(msg Message) error
}

// ChannelRecipient routes delivered messages to a buffered Go channel which a
// per-connection writer goroutine drains.
type ChannelRecipient struct {
	session  SessionID
	messages chan Message
	mu       sync.Mutex
	closed   bool
}

// DefaultRecipientBuffer is used when NewChannelRecipient is given a
// non-positive buffer size.
const DefaultRecipientBuffer = 64

// NewChannelRecipient creates a ChannelRecipient for the given session.
//
// Postcondition: Returns a ChannelRecipient with an open message channel.
func NewChannelRecipient(session SessionID, bufferSize int) *ChannelRecipient {
	if bufferSize <= 0 {
		bufferSize = DefaultRecipientBuffer
	}
	return &ChannelRecipient{
		session:  session,
		messages: make(chan Message, bufferSize),
	}
}

// Session returns the session this recipient delivers to.
func (r *ChannelRecipient) Session() SessionID {
	return r.session
}

// Deliver enqueues msg without blocking.
//
// Postcondition: msg is buffered, or an error wrapping ErrDeliveryUnreachable
// is returned if the recipient is closed or its buffer is full.
func (r *ChannelRecipient) Deliver(msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recipient %s closed: %w", r.session.Short(), ErrDeliveryUnreachable)
	}
	select {
	case r.messages <- msg:
		return nil
	default:
		return fmt.Errorf("recipient %s buffer full: %w", r.session.Short(), ErrDeliveryUnreachable)
	}
}

// Messages returns the read-only message channel. It is closed by Close.
func (r *ChannelRecipient) Messages() <-chan Message {
	return r.messages
}

// Close closes the message channel. It is idempotent.
func (r *ChannelRecipient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		close(r.messages)
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (r *ChannelRecipient) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
