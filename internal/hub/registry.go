package hub

import "sort"

// registry maps connected sessions to their push handles. It is only touched
// from the hub goroutine.
type registry struct {
	recipients map[SessionID]Recipient
}

func newRegistry() *registry {
	return &registry{recipients: make(map[SessionID]Recipient)}
}

// register upserts the handle for session, replacing any previous one.
// It reports whether a previous handle was replaced.
func (r *registry) register(session SessionID, rc Recipient) bool {
	_, replaced := r.recipients[session]
	r.recipients[session] = rc
	return replaced
}

// unregister removes the entry for session. Absent sessions are a no-op.
func (r *registry) unregister(session SessionID) bool {
	if _, ok := r.recipients[session]; !ok {
		return false
	}
	delete(r.recipients, session)
	return true
}

func (r *registry) lookup(session SessionID) (Recipient, bool) {
	rc, ok := r.recipients[session]
	return rc, ok
}

func (r *registry) len() int {
	return len(r.recipients)
}

func (r *registry) sessions() []SessionID {
	out := make([]SessionID, 0, len(r.recipients))
	for s := range r.recipients {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
