package hub

import (
	"fmt"
	"sort"
	"time"

	"github.com/cory-johannsen/quizhub/internal/quiz"
)

// maxCodeAttempts bounds the retries for a join code not used by a live room.
const maxCodeAttempts = 10

// maxIDAttempts bounds the retries for a room ID never issued before.
const maxIDAttempts = 3

// room is the hub-owned state of one room. It never leaves the hub goroutine;
// callers receive RoomInfo copies.
type room struct {
	id        RoomID
	code      string
	quiz      *quiz.Quiz
	createdBy SessionID
	createdAt time.Time
	members   map[SessionID]struct{}
	players   map[SessionID]*quiz.Player
	// answered holds the question indices each member has scored.
	answered map[SessionID]map[int]struct{}
}

func (r *room) has(session SessionID) bool {
	_, ok := r.members[session]
	return ok
}

func (r *room) hasAnswered(session SessionID, question int) bool {
	_, ok := r.answered[session][question]
	return ok
}

func (r *room) markAnswered(session SessionID, question int) {
	set, ok := r.answered[session]
	if !ok {
		set = make(map[int]struct{})
		r.answered[session] = set
	}
	set[question] = struct{}{}
}

func (r *room) dropMember(session SessionID) {
	delete(r.members, session)
	delete(r.players, session)
	delete(r.answered, session)
}

// memberList returns members in a stable order so fan-out is deterministic.
func (r *room) memberList() []SessionID {
	out := make([]SessionID, 0, len(r.members))
	for s := range r.members {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *room) info() RoomInfo {
	info := RoomInfo{
		ID:        r.id,
		Code:      r.code,
		CreatedBy: r.createdBy,
		CreatedAt: r.createdAt,
		Members:   r.memberList(),
	}
	if r.quiz != nil {
		info.QuizID = r.quiz.ID
		info.QuizName = r.quiz.Name
	}
	return info
}

// RoomInfo is a read-only copy of a room's state.
type RoomInfo struct {
	ID        RoomID      `json:"id"`
	Code      string      `json:"code"`
	QuizID    string      `json:"quiz_id"`
	QuizName  string      `json:"quiz_name"`
	CreatedBy SessionID   `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	Members   []SessionID `json:"members"`
}

// roomIndex maps rooms to their member sets. It is only touched from the hub
// goroutine.
type roomIndex struct {
	rooms      map[RoomID]*room
	codes      map[string]RoomID
	newID      func() RoomID
	codeLength int
	// issued records every room ID ever handed out; entries are never removed.
	issued map[RoomID]struct{}
}

func newRoomIndex(newID func() RoomID, codeLength int) *roomIndex {
	if newID == nil {
		newID = newRoomID
	}
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	return &roomIndex{
		rooms:      make(map[RoomID]*room),
		codes:      make(map[string]RoomID),
		issued:     make(map[RoomID]struct{}),
		newID:      newID,
		codeLength: codeLength,
	}
}

// create allocates a room with a fresh ID and join code and adds creator as
// its first member.
//
// Postcondition: The returned room is in the index with exactly one member and
// an ID no earlier room, live or pruned, has carried.
func (x *roomIndex) create(q *quiz.Quiz, creator SessionID, now time.Time) (*room, error) {
	var id RoomID
	for range maxIDAttempts {
		candidate := x.newID()
		if _, used := x.issued[candidate]; !used {
			id = candidate
			break
		}
	}
	if id == "" {
		return nil, fmt.Errorf("no unused room id after %d attempts", maxIDAttempts)
	}

	var code string
	for range maxCodeAttempts {
		c, err := GenerateCode(x.codeLength)
		if err != nil {
			return nil, err
		}
		if _, taken := x.codes[c]; !taken {
			code = c
			break
		}
	}
	if code == "" {
		return nil, fmt.Errorf("failed to generate unique join code after %d attempts", maxCodeAttempts)
	}

	r := &room{
		id:        id,
		code:      code,
		quiz:      q,
		createdBy: creator,
		createdAt: now,
		members:   make(map[SessionID]struct{}),
		players:   make(map[SessionID]*quiz.Player),
		answered:  make(map[SessionID]map[int]struct{}),
	}
	x.issued[id] = struct{}{}
	x.rooms[id] = r
	x.codes[code] = id
	x.addMember(r, creator)
	return r, nil
}

func (x *roomIndex) get(id RoomID) (*room, bool) {
	r, ok := x.rooms[id]
	return r, ok
}

func (x *roomIndex) byCode(code string) (*room, bool) {
	id, ok := x.codes[NormalizeCode(code)]
	if !ok {
		return nil, false
	}
	return x.get(id)
}

// join adds session to the room. Re-joining is a no-op.
// It reports whether the session was newly added.
func (x *roomIndex) join(session SessionID, id RoomID) (bool, error) {
	r, ok := x.rooms[id]
	if !ok {
		return false, fmt.Errorf("join room %s: %w", id, ErrRoomNotFound)
	}
	if r.has(session) {
		return false, nil
	}
	x.addMember(r, session)
	return true, nil
}

func (x *roomIndex) addMember(r *room, session SessionID) {
	r.members[session] = struct{}{}
	r.players[session] = &quiz.Player{Name: session.Short()}
}

// leave removes session from the room and deletes the room if that left it
// empty.
func (x *roomIndex) leave(session SessionID, id RoomID) (removed, pruned bool) {
	r, ok := x.rooms[id]
	if !ok || !r.has(session) {
		return false, false
	}
	r.dropMember(session)
	if len(r.members) == 0 {
		x.remove(r)
		return true, true
	}
	return true, false
}

// leaveAll removes session from every room, pruning rooms left empty.
// It returns the rooms that still exist after the removal and therefore need
// a leave notice.
func (x *roomIndex) leaveAll(session SessionID) []*room {
	var affected []*room
	for _, r := range x.rooms {
		if !r.has(session) {
			continue
		}
		r.dropMember(session)
		if len(r.members) == 0 {
			x.remove(r)
			continue
		}
		affected = append(affected, r)
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i].id < affected[j].id })
	return affected
}

func (x *roomIndex) remove(r *room) {
	delete(x.rooms, r.id)
	if x.codes[r.code] == r.id {
		delete(x.codes, r.code)
	}
}

func (x *roomIndex) len() int {
	return len(x.rooms)
}

func (x *roomIndex) infos() []RoomInfo {
	out := make([]RoomInfo, 0, len(x.rooms))
	for _, r := range x.rooms {
		out = append(out, r.info())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
