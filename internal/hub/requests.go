package hub

import "github.com/cory-johannsen/quizhub/internal/quiz"

// request is one entry of the hub mailbox. The hub goroutine switches on the
// concrete type.
type request interface {
	kind() string
	// fail answers the caller with err if the handler could not.
	fail(err error)
}

// result carries a synchronous reply.
type result[T any] struct {
	val T
	err error
}

// newReply allocates a reply channel. The buffer of one lets the hub answer
// without blocking when the caller has already given up.
func newReply[T any]() chan result[T] {
	return make(chan result[T], 1)
}

func answer[T any](ch chan result[T], val T, err error) {
	select {
	case ch <- result[T]{val: val, err: err}:
	default:
	}
}

type connectRequest struct {
	session   SessionID
	recipient Recipient
	reply     chan result[struct{}]
}

func (r *connectRequest) kind() string   { return "connect" }
func (r *connectRequest) fail(err error) { answer(r.reply, struct{}{}, err) }

type disconnectRequest struct {
	session SessionID
	reply   chan result[struct{}]
}

func (r *disconnectRequest) kind() string   { return "disconnect" }
func (r *disconnectRequest) fail(err error) { answer(r.reply, struct{}{}, err) }

type leaveRequest struct {
	session SessionID
	reply   chan result[struct{}]
}

func (r *leaveRequest) kind() string   { return "leave" }
func (r *leaveRequest) fail(err error) { answer(r.reply, struct{}{}, err) }

type leaveRoomRequest struct {
	session SessionID
	room    RoomID
	reply   chan result[struct{}]
}

func (r *leaveRoomRequest) kind() string   { return "leave_room" }
func (r *leaveRoomRequest) fail(err error) { answer(r.reply, struct{}{}, err) }

type createRoomRequest struct {
	session SessionID
	quiz    *quiz.Quiz
	reply   chan result[RoomInfo]
}

func (r *createRoomRequest) kind() string   { return "create_room" }
func (r *createRoomRequest) fail(err error) { answer(r.reply, RoomInfo{}, err) }

// joinRoomRequest targets a room by ID, or by join code when room is empty.
type joinRoomRequest struct {
	session SessionID
	room    RoomID
	code    string
	reply   chan result[RoomID]
}

func (r *joinRoomRequest) kind() string {
	if r.room == "" {
		return "join_by_code"
	}
	return "join_room"
}
func (r *joinRoomRequest) fail(err error) { answer(r.reply, "", err) }

// broadcastRequest has no reply; delivery is fire-and-forget.
type broadcastRequest struct {
	room    RoomID
	msg     Message
	exclude SessionID
}

func (r *broadcastRequest) kind() string { return "broadcast" }
func (r *broadcastRequest) fail(error)   {}

type submitAnswerRequest struct {
	session  SessionID
	room     RoomID
	question int
	option   int
	reply    chan result[quiz.Player]
}

func (r *submitAnswerRequest) kind() string   { return "submit_answer" }
func (r *submitAnswerRequest) fail(err error) { answer(r.reply, quiz.Player{}, err) }

type scoresRequest struct {
	room  RoomID
	reply chan result[[]quiz.Player]
}

func (r *scoresRequest) kind() string   { return "scores" }
func (r *scoresRequest) fail(err error) { answer(r.reply, nil, err) }

type snapshotRequest struct {
	reply chan result[Snapshot]
}

func (r *snapshotRequest) kind() string   { return "snapshot" }
func (r *snapshotRequest) fail(err error) { answer(r.reply, Snapshot{}, err) }
