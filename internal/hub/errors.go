package hub

import "errors"

// ErrRoomNotFound is returned when a request targets an unknown room.
var ErrRoomNotFound = errors.New("room not found")

// ErrSessionUnknown is returned when a request needs a connected session
// that has no registry entry.
var ErrSessionUnknown = errors.New("session unknown")

// ErrNotMember is returned when a session acts on a room it has not joined.
var ErrNotMember = errors.New("session is not a member of the room")

// ErrAlreadyAnswered is returned when a member answers a question it has
// already answered in the room.
var ErrAlreadyAnswered = errors.New("question already answered")

// ErrDeliveryUnreachable is returned by a Recipient that cannot accept a
// message. The hub logs and drops it.
var ErrDeliveryUnreachable = errors.New("delivery unreachable")

// ErrQueueFull is returned when the inbound request queue has no room.
// Session handlers should relay it to their session as an Error message.
var ErrQueueFull = errors.New("hub request queue full")

// ErrHubStopped is returned for requests submitted after the hub stopped.
var ErrHubStopped = errors.New("hub stopped")
