// Package hub is the real-time coordination hub for quiz rooms. A single
// goroutine owns the connection registry and the room index; every mutation
// reaches it as a request on a bounded queue and is applied in arrival order.
package hub

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionID identifies one connected participant.
type SessionID string

// NewSessionID returns a fresh random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// Short returns an abbreviated form of the ID for display names and logs.
func (s SessionID) Short() string {
	if len(s) > 8 {
		return string(s[:8])
	}
	return string(s)
}

// RoomID identifies a room. IDs are random UUIDs and are not reused.
type RoomID string

func newRoomID() RoomID {
	return RoomID(uuid.NewString())
}

// MessageType is the discriminant carried by every outbound message.
type MessageType int

const (
	// TypeCreate is sent to the creator of a room; Text holds the join code.
	TypeCreate MessageType = iota + 1
	// TypeJoin announces a new member to the rest of the room.
	TypeJoin
	// TypeLeave announces a departed member to the rest of the room.
	TypeLeave
	// TypeMessage is a free-form chat or game payload.
	TypeMessage
	// TypeError reports a failed request to the requesting session.
	TypeError
	// TypeInformation carries server notices such as answer results.
	TypeInformation
)

var messageTypeNames = map[MessageType]string{
	TypeCreate:      "Create",
	TypeJoin:        "Join",
	TypeLeave:       "Leave",
	TypeMessage:     "Message",
	TypeError:       "Error",
	TypeInformation: "Information",
}

// String returns the wire name of the type.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Valid reports whether t is one of the defined message types.
func (t MessageType) Valid() bool {
	_, ok := messageTypeNames[t]
	return ok
}

// ParseMessageType resolves a wire name to its MessageType.
func ParseMessageType(name string) (MessageType, error) {
	for t, n := range messageTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", name)
}

// MarshalText encodes the type by name so JSON carries "Message" rather than 4.
func (t MessageType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid message type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *MessageType) UnmarshalText(text []byte) error {
	parsed, err := ParseMessageType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Message is the record delivered to a session's Recipient.
type Message struct {
	Text string      `json:"text"`
	Type MessageType `json:"type"`
}

// ErrorMessage converts a failed request into the Error message a session
// handler sends back to its own session.
func ErrorMessage(err error) Message {
	return Message{Text: err.Error(), Type: TypeError}
}
