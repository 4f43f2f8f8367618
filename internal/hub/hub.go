package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/quizhub/internal/quiz"
)

// DefaultQueueSize is the inbound request queue capacity when none is configured.
const DefaultQueueSize = 1024

// Options configures a Hub. Zero values select defaults.
type Options struct {
	// QueueSize bounds the inbound request queue.
	QueueSize int
	// CodeLength is the length of generated join codes.
	CodeLength int
	// RecipientBuffer sizes recipients made by NewRecipient.
	RecipientBuffer int
	// Scorer awards points for submitted answers.
	Scorer quiz.Scorer
	// Metrics receives instrumentation.
	Metrics Metrics
	// Now returns the current time.
	Now func() time.Time
	// NewRoomID allocates room identifiers.
	NewRoomID func() RoomID
}

// Snapshot is a read-only view of the hub's state at one point in the
// request order.
type Snapshot struct {
	Sessions []SessionID `json:"sessions"`
	Rooms    []RoomInfo  `json:"rooms"`
}

// Stats are counters readable without going through the request queue.
type Stats struct {
	Sessions   int  `json:"sessions"`
	Rooms      int  `json:"rooms"`
	QueueDepth int  `json:"queue_depth"`
	QueueSize  int  `json:"queue_size"`
	Running    bool `json:"running"`
}

// Hub serializes all session and room mutations through one goroutine.
//
// The registry and room index are owned by Run; every exported method is safe
// for concurrent use and communicates with Run through the request queue.
type Hub struct {
	logger   *zap.Logger
	requests chan request
	done     chan struct{}
	running  atomic.Bool
	stopped  atomic.Bool

	// Owned by the Run goroutine.
	sessions *registry
	rooms    *roomIndex
	scorer   quiz.Scorer
	metrics  Metrics
	now      func() time.Time

	recipientBuffer int
	sessionCount    atomic.Int64
	roomCount       atomic.Int64
}

// New creates a Hub. Call Run to start processing requests.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a Hub whose queue accepts requests immediately; they
// are processed once Run starts.
func New(logger *zap.Logger, opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Scorer == nil {
		opts.Scorer = quiz.FixedScorer{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{
		logger:   logger,
		requests: make(chan request, opts.QueueSize),
		done:     make(chan struct{}),
		sessions: newRegistry(),
		rooms:    newRoomIndex(opts.NewRoomID, opts.CodeLength),
		scorer:   opts.Scorer,
		metrics:  opts.Metrics,
		now:      opts.Now,

		recipientBuffer: opts.RecipientBuffer,
	}
}

// NewRecipient returns a ChannelRecipient sized by Options.RecipientBuffer,
// for transport adapters that drain a channel per session.
func (h *Hub) NewRecipient(session SessionID) *ChannelRecipient {
	return NewChannelRecipient(session, h.recipientBuffer)
}

// Run processes requests in arrival order until ctx is cancelled.
// Requests still queued when Run returns fail with ErrHubStopped.
//
// Precondition: Run must be called at most once.
func (h *Hub) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return errors.New("hub already running")
	}
	start := time.Now()
	h.logger.Info("hub started", zap.Int("queue_size", cap(h.requests)))

	defer func() {
		h.stopped.Store(true)
		close(h.done)
		h.logger.Info("hub stopped",
			zap.Int("sessions", h.sessions.len()),
			zap.Int("rooms", h.rooms.len()),
			zap.Int("abandoned_requests", len(h.requests)),
			zap.Duration("uptime", time.Since(start)),
		)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-h.requests:
			h.dispatch(req)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Stats returns counters as of the last processed request.
func (h *Hub) Stats() Stats {
	return Stats{
		Sessions:   int(h.sessionCount.Load()),
		Rooms:      int(h.roomCount.Load()),
		QueueDepth: len(h.requests),
		QueueSize:  cap(h.requests),
		Running:    h.running.Load() && !h.stopped.Load(),
	}
}

// Connect registers recipient as the push handle for session, replacing any
// previous handle.
func (h *Hub) Connect(ctx context.Context, session SessionID, recipient Recipient) error {
	if recipient == nil {
		return errors.New("connect: recipient must not be nil")
	}
	reply := newReply[struct{}]()
	_, err := call(ctx, h, &connectRequest{session: session, recipient: recipient, reply: reply}, reply)
	return err
}

// Disconnect removes session from every room and from the registry. It is
// idempotent and never rejected for backpressure: it waits for queue space.
func (h *Hub) Disconnect(ctx context.Context, session SessionID) error {
	reply := newReply[struct{}]()
	req := &disconnectRequest{session: session, reply: reply}
	if err := h.submitWait(ctx, req); err != nil {
		return err
	}
	_, err := await(ctx, h, reply)
	return err
}

// Leave removes session from every room it belongs to without disconnecting it.
func (h *Hub) Leave(ctx context.Context, session SessionID) error {
	reply := newReply[struct{}]()
	_, err := call(ctx, h, &leaveRequest{session: session, reply: reply}, reply)
	return err
}

// LeaveRoom removes session from a single room.
//
// Postcondition: Returns ErrRoomNotFound if the room does not exist; leaving a
// room the session is not in is a no-op.
func (h *Hub) LeaveRoom(ctx context.Context, session SessionID, room RoomID) error {
	reply := newReply[struct{}]()
	_, err := call(ctx, h, &leaveRoomRequest{session: session, room: room, reply: reply}, reply)
	return err
}

// CreateRoom creates a room around q with session as its first member.
//
// Precondition: q must be non-nil.
// Postcondition: Returns the new room's ID, or ErrSessionUnknown if session
// is not connected.
func (h *Hub) CreateRoom(ctx context.Context, session SessionID, q *quiz.Quiz) (RoomID, error) {
	if q == nil {
		return "", errors.New("create room: quiz must not be nil")
	}
	reply := newReply[RoomInfo]()
	info, err := call(ctx, h, &createRoomRequest{session: session, quiz: q, reply: reply}, reply)
	return info.ID, err
}

// JoinRoom adds session to room. Joining a room twice is a no-op.
//
// Postcondition: Returns ErrRoomNotFound for unknown rooms and
// ErrSessionUnknown for unconnected sessions; the index is unchanged on error.
func (h *Hub) JoinRoom(ctx context.Context, session SessionID, room RoomID) error {
	if room == "" {
		return fmt.Errorf("join room: empty room id: %w", ErrRoomNotFound)
	}
	reply := newReply[RoomID]()
	_, err := call(ctx, h, &joinRoomRequest{session: session, room: room, reply: reply}, reply)
	return err
}

// JoinByCode resolves a human-facing join code and joins that room.
func (h *Hub) JoinByCode(ctx context.Context, session SessionID, code string) (RoomID, error) {
	reply := newReply[RoomID]()
	return call(ctx, h, &joinRoomRequest{session: session, code: code, reply: reply}, reply)
}

// Broadcast queues a message for every member of room except exclude (which
// may be empty). It returns once the request is queued; delivery happens
// asynchronously and is never acknowledged.
func (h *Hub) Broadcast(_ context.Context, room RoomID, text string, t MessageType, exclude SessionID) error {
	if !t.Valid() {
		return fmt.Errorf("broadcast: invalid message type %d", int(t))
	}
	return h.submit(&broadcastRequest{
		room:    room,
		msg:     Message{Text: text, Type: t},
		exclude: exclude,
	})
}

// SubmitAnswer scores session's answer to a question of the room's quiz.
//
// Postcondition: Returns the player's updated score state, or ErrRoomNotFound,
// ErrNotMember, quiz.ErrQuestionOutOfRange, quiz.ErrUnknownOption or
// ErrAlreadyAnswered. Each question scores at most once per membership.
func (h *Hub) SubmitAnswer(ctx context.Context, session SessionID, room RoomID, question, option int) (quiz.Player, error) {
	reply := newReply[quiz.Player]()
	return call(ctx, h, &submitAnswerRequest{
		session:  session,
		room:     room,
		question: question,
		option:   option,
		reply:    reply,
	}, reply)
}

// Scores returns the room's players ordered by points, highest first.
func (h *Hub) Scores(ctx context.Context, room RoomID) ([]quiz.Player, error) {
	reply := newReply[[]quiz.Player]()
	return call(ctx, h, &scoresRequest{room: room, reply: reply}, reply)
}

// Snapshot returns a consistent copy of all sessions and rooms.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := newReply[Snapshot]()
	return call(ctx, h, &snapshotRequest{reply: reply}, reply)
}

// submit enqueues req without blocking.
func (h *Hub) submit(req request) error {
	if h.stopped.Load() {
		return ErrHubStopped
	}
	select {
	case h.requests <- req:
		return nil
	default:
		h.metrics.RequestRejected(req.kind())
		h.logger.Warn("hub queue full, rejecting request",
			zap.String("request", req.kind()),
			zap.Int("queue_size", cap(h.requests)),
		)
		return fmt.Errorf("%s: %w", req.kind(), ErrQueueFull)
	}
}

// submitWait enqueues req, waiting for queue space.
func (h *Hub) submitWait(ctx context.Context, req request) error {
	if h.stopped.Load() {
		return ErrHubStopped
	}
	select {
	case h.requests <- req:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func call[T any](ctx context.Context, h *Hub, req request, reply chan result[T]) (T, error) {
	if err := h.submit(req); err != nil {
		var zero T
		return zero, err
	}
	return await(ctx, h, reply)
}

func await[T any](ctx context.Context, h *Hub, reply chan result[T]) (T, error) {
	var zero T
	select {
	case r := <-reply:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		// The request may have been answered just before the hub stopped.
		select {
		case r := <-reply:
			return r.val, r.err
		default:
			return zero, ErrHubStopped
		}
	}
}

// dispatch applies one request. A panicking handler fails only its own request.
func (h *Hub) dispatch(req request) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("hub request panicked",
				zap.String("request", req.kind()),
				zap.Any("panic", p),
			)
			req.fail(fmt.Errorf("%s: internal error", req.kind()))
			h.metrics.RequestHandled(req.kind(), "panic", time.Since(start))
		}
		h.publishState()
	}()

	var err error
	switch r := req.(type) {
	case *connectRequest:
		err = h.handleConnect(r)
	case *disconnectRequest:
		err = h.handleDisconnect(r)
	case *leaveRequest:
		err = h.handleLeave(r)
	case *leaveRoomRequest:
		err = h.handleLeaveRoom(r)
	case *createRoomRequest:
		err = h.handleCreateRoom(r)
	case *joinRoomRequest:
		err = h.handleJoinRoom(r)
	case *broadcastRequest:
		err = h.handleBroadcast(r)
	case *submitAnswerRequest:
		err = h.handleSubmitAnswer(r)
	case *scoresRequest:
		err = h.handleScores(r)
	case *snapshotRequest:
		err = h.handleSnapshot(r)
	default:
		err = fmt.Errorf("unknown request %T", req)
		req.fail(err)
	}
	h.metrics.RequestHandled(req.kind(), outcome(err), time.Since(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrSessionUnknown):
		return "session_unknown"
	case errors.Is(err, ErrNotMember):
		return "not_member"
	case errors.Is(err, ErrAlreadyAnswered):
		return "already_answered"
	default:
		return "error"
	}
}

func (h *Hub) publishState() {
	sessions, rooms := h.sessions.len(), h.rooms.len()
	h.sessionCount.Store(int64(sessions))
	h.roomCount.Store(int64(rooms))
	h.metrics.SetState(sessions, rooms, len(h.requests))
}

func (h *Hub) handleConnect(r *connectRequest) error {
	if h.sessions.register(r.session, r.recipient) {
		h.logger.Debug("session handle replaced", zap.String("session", string(r.session)))
	} else {
		h.logger.Debug("session connected", zap.String("session", string(r.session)))
	}
	answer(r.reply, struct{}{}, nil)
	return nil
}

func (h *Hub) handleDisconnect(r *disconnectRequest) error {
	h.leaveAll(r.session, "disconnected")
	if h.sessions.unregister(r.session) {
		h.logger.Debug("session disconnected", zap.String("session", string(r.session)))
	}
	answer(r.reply, struct{}{}, nil)
	return nil
}

func (h *Hub) handleLeave(r *leaveRequest) error {
	h.leaveAll(r.session, "left")
	answer(r.reply, struct{}{}, nil)
	return nil
}

func (h *Hub) handleLeaveRoom(r *leaveRoomRequest) error {
	rm, ok := h.rooms.get(r.room)
	if !ok {
		err := fmt.Errorf("leave room %s: %w", r.room, ErrRoomNotFound)
		answer(r.reply, struct{}{}, err)
		return err
	}
	removed, pruned := h.rooms.leave(r.session, r.room)
	switch {
	case pruned:
		h.logger.Debug("room pruned", zap.String("room", string(r.room)))
	case removed:
		h.broadcast(rm, Message{Text: r.session.Short() + " left", Type: TypeLeave}, r.session)
	}
	answer(r.reply, struct{}{}, nil)
	return nil
}

// leaveAll removes session from all rooms and notifies the remaining members.
func (h *Hub) leaveAll(session SessionID, verb string) {
	before := h.rooms.len()
	affected := h.rooms.leaveAll(session)
	msg := Message{Text: session.Short() + " " + verb, Type: TypeLeave}
	for _, rm := range affected {
		h.broadcast(rm, msg, session)
	}
	if pruned := before - h.rooms.len(); pruned > 0 {
		h.logger.Debug("rooms pruned",
			zap.String("session", string(session)),
			zap.Int("count", pruned),
		)
	}
}

func (h *Hub) handleCreateRoom(r *createRoomRequest) error {
	if _, ok := h.sessions.lookup(r.session); !ok {
		err := fmt.Errorf("create room: session %s: %w", r.session, ErrSessionUnknown)
		answer(r.reply, RoomInfo{}, err)
		return err
	}
	rm, err := h.rooms.create(r.quiz, r.session, h.now())
	if err != nil {
		err = fmt.Errorf("create room: %w", err)
		answer(r.reply, RoomInfo{}, err)
		return err
	}
	h.logger.Info("room created",
		zap.String("room", string(rm.id)),
		zap.String("code", rm.code),
		zap.String("quiz", r.quiz.ID),
		zap.String("session", string(r.session)),
	)
	answer(r.reply, rm.info(), nil)
	h.deliver(r.session, Message{Text: rm.code, Type: TypeCreate})
	return nil
}

func (h *Hub) handleJoinRoom(r *joinRoomRequest) error {
	fail := func(err error) error {
		answer(r.reply, "", err)
		return err
	}

	if _, ok := h.sessions.lookup(r.session); !ok {
		return fail(fmt.Errorf("join room: session %s: %w", r.session, ErrSessionUnknown))
	}

	id := r.room
	if id == "" {
		rm, ok := h.rooms.byCode(r.code)
		if !ok {
			return fail(fmt.Errorf("join code %q: %w", NormalizeCode(r.code), ErrRoomNotFound))
		}
		id = rm.id
	}

	added, err := h.rooms.join(r.session, id)
	if err != nil {
		return fail(err)
	}
	if added {
		rm, _ := h.rooms.get(id)
		h.broadcast(rm, Message{Text: r.session.Short() + " joined", Type: TypeJoin}, r.session)
		h.logger.Debug("session joined room",
			zap.String("session", string(r.session)),
			zap.String("room", string(id)),
		)
	}
	answer(r.reply, id, nil)
	return nil
}

func (h *Hub) handleBroadcast(r *broadcastRequest) error {
	rm, ok := h.rooms.get(r.room)
	if !ok {
		h.logger.Debug("broadcast to unknown room dropped", zap.String("room", string(r.room)))
		return fmt.Errorf("broadcast to %s: %w", r.room, ErrRoomNotFound)
	}
	h.broadcast(rm, r.msg, r.exclude)
	return nil
}

func (h *Hub) handleSubmitAnswer(r *submitAnswerRequest) error {
	fail := func(err error) error {
		answer(r.reply, quiz.Player{}, err)
		return err
	}

	rm, ok := h.rooms.get(r.room)
	if !ok {
		return fail(fmt.Errorf("submit answer: room %s: %w", r.room, ErrRoomNotFound))
	}
	player, ok := rm.players[r.session]
	if !ok || !rm.has(r.session) {
		return fail(fmt.Errorf("submit answer: session %s: %w", r.session, ErrNotMember))
	}
	correct, err := rm.quiz.Check(r.question, r.option)
	if err != nil {
		return fail(fmt.Errorf("submit answer: %w", err))
	}
	if rm.hasAnswered(r.session, r.question) {
		return fail(fmt.Errorf("submit answer: question %d: %w", r.question, ErrAlreadyAnswered))
	}
	points, err := h.scorer.Score(correct, player.Streak)
	if err != nil {
		return fail(fmt.Errorf("submit answer: scoring: %w", err))
	}
	player.Record(correct, points)
	rm.markAnswered(r.session, r.question)

	verdict := "wrong"
	if correct {
		verdict = "right"
	}
	h.broadcast(rm, Message{
		Text: fmt.Sprintf("%s answered question %d %s (%d points)", player.Name, r.question+1, verdict, player.Points),
		Type: TypeInformation,
	}, r.session)

	answer(r.reply, *player, nil)
	return nil
}

func (h *Hub) handleScores(r *scoresRequest) error {
	rm, ok := h.rooms.get(r.room)
	if !ok {
		err := fmt.Errorf("scores: room %s: %w", r.room, ErrRoomNotFound)
		answer(r.reply, nil, err)
		return err
	}
	players := make([]quiz.Player, 0, len(rm.players))
	for _, p := range rm.players {
		players = append(players, *p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Points != players[j].Points {
			return players[i].Points > players[j].Points
		}
		return players[i].Name < players[j].Name
	})
	answer(r.reply, players, nil)
	return nil
}

func (h *Hub) handleSnapshot(r *snapshotRequest) error {
	answer(r.reply, Snapshot{
		Sessions: h.sessions.sessions(),
		Rooms:    h.rooms.infos(),
	}, nil)
	return nil
}

// broadcast delivers msg to every member of rm except exclude.
func (h *Hub) broadcast(rm *room, msg Message, exclude SessionID) {
	for _, s := range rm.memberList() {
		if s == exclude {
			continue
		}
		h.deliver(s, msg)
	}
}

// deliver hands msg to the session's recipient. Stale, unreachable or
// panicking recipients are logged and skipped.
func (h *Hub) deliver(session SessionID, msg Message) {
	defer func() {
		if p := recover(); p != nil {
			h.metrics.MessageDropped("panic")
			h.logger.Error("recipient panicked",
				zap.String("session", string(session)),
				zap.Stringer("type", msg.Type),
				zap.Any("panic", p),
			)
		}
	}()

	rc, ok := h.sessions.lookup(session)
	if !ok {
		h.metrics.MessageDropped("stale")
		h.logger.Debug("skipping delivery to unregistered session",
			zap.String("session", string(session)),
			zap.Stringer("type", msg.Type),
		)
		return
	}
	if err := rc.Deliver(msg); err != nil {
		h.metrics.MessageDropped("unreachable")
		h.logger.Debug("delivery dropped",
			zap.String("session", string(session)),
			zap.Stringer("type", msg.Type),
			zap.Error(err),
		)
		return
	}
	h.metrics.MessageDelivered(msg.Type)
}
