package hub

import "time"

// Metrics receives hub instrumentation. Implementations must be safe for
// concurrent use; RequestRejected is called from submitting goroutines.
type Metrics interface {
	RequestHandled(kind, outcome string, elapsed time.Duration)
	RequestRejected(kind string)
	MessageDelivered(t MessageType)
	MessageDropped(reason string)
	SetState(sessions, rooms, queueDepth int)
}

type nopMetrics struct{}

func (nopMetrics) RequestHandled(string, string, time.Duration) {}
func (nopMetrics) RequestRejected(string)                       {}
func (nopMetrics) MessageDelivered(MessageType)                 {}
func (nopMetrics) MessageDropped(string)                        {}
func (nopMetrics) SetState(int, int, int)                       {}
