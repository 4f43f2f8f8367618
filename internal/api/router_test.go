package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/quizhub/internal/config"
	"github.com/cory-johannsen/quizhub/internal/hub"
	"github.com/cory-johannsen/quizhub/internal/observability"
	"github.com/cory-johannsen/quizhub/internal/quiz"
	"github.com/cory-johannsen/quizhub/internal/storage/postgres"
)

// memUsers is an in-memory UserStore.
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]postgres.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]postgres.User)}
}

func (m *memUsers) Add(_ context.Context, username, email, password string) (postgres.User, error) {
	if err := postgres.ValidateUser(username, email, password); err != nil {
		return postgres.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return postgres.User{}, postgres.ErrUserExists
		}
	}
	u := postgres.User{ID: uuid.New(), Username: username, Email: email, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) Get(_ context.Context, id uuid.UUID) (postgres.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return postgres.User{}, postgres.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) List(_ context.Context, _, _ int) ([]postgres.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []postgres.User
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, id uuid.UUID, upd postgres.UserUpdate) (postgres.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return postgres.User{}, postgres.ErrUserNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	m.users[id] = u
	return u, nil
}

func (m *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return postgres.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

type fixture struct {
	hub     *hub.Hub
	handler http.Handler
	users   *memUsers
	dbErr   error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	metrics := observability.NewMetrics()

	h := hub.New(logger, hub.Options{Metrics: metrics})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})

	catalog, err := quiz.NewCatalog([]*quiz.Quiz{{
		ID:   "capitals",
		Name: "Capitals",
		Questions: []quiz.Question{{
			Question: "Capital of France?",
			Answers: []quiz.Answer{
				{Option: 1, Text: "Lyon"},
				{Option: 2, Text: "Paris", Correct: true},
			},
		}},
	}})
	require.NoError(t, err)

	f := &fixture{hub: h, users: newMemUsers()}
	f.handler = NewRouter(Deps{
		Logger:  logger,
		Hub:     h,
		Quizzes: catalog,
		Users:   f.users,
		Metrics: metrics,
		Checks: map[string]func(context.Context) error{
			"database": func(context.Context) error { return f.dbErr },
		},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	require.Eventually(t, func() bool { return f.hub.Stats().Running }, time.Second, 10*time.Millisecond)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"hub":"ok","database":"ok"}}`, rec.Body.String())

	f.dbErr = errors.New("connection refused")
	rec = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRoomsAndScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.hub.Connect(ctx, "alice", hub.NewChannelRecipient("alice", 8)))
	catalogQuiz := &quiz.Quiz{ID: "capitals", Name: "Capitals", Questions: []quiz.Question{{
		Question: "Capital of France?",
		Answers:  []quiz.Answer{{Option: 1, Text: "Paris", Correct: true}},
	}}}
	id, err := f.hub.CreateRoom(ctx, "alice", catalogQuiz)
	require.NoError(t, err)
	_, err = f.hub.SubmitAnswer(ctx, "alice", id, 0, 1)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/v1/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rooms []hub.RoomInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, id, rooms[0].ID)
	assert.Equal(t, []hub.SessionID{"alice"}, rooms[0].Members)

	rec = f.do(t, http.MethodGet, "/api/v1/rooms/"+string(id)+"/scores", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var scores []quiz.Player
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
	require.Len(t, scores, 1)
	assert.Equal(t, quiz.DefaultPoints, scores[0].Points)

	rec = f.do(t, http.MethodGet, "/api/v1/rooms/missing/scores", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats hub.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 1, stats.Rooms)
}

func TestQuizzes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/quizzes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"capitals","name":"Capitals","description":"","questions":1}]`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/quizzes/capitals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Capital of France?")

	rec = f.do(t, http.MethodGet, "/api/v1/quizzes/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsersCRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/users", createUserRequest{
		Username: "quizmaster", Email: "qm@example.com", Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created postgres.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "quizmaster", created.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = f.do(t, http.MethodPost, "/api/v1/users", createUserRequest{
		Username: "quizmaster", Email: "qm@example.com", Password: "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/users", createUserRequest{Username: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/users/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	email := "new@example.com"
	rec = f.do(t, http.MethodPut, "/api/v1/users/"+created.ID.String(), updateUserRequest{Email: &email})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), email)

	rec = f.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []postgres.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = f.do(t, http.MethodDelete, "/api/v1/users/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/v1/users/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/users/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsersListEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/quizzes", nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `quizhub_http_requests_total{method="GET",route="/api/v1/quizzes",status="200"} 1`), body)
}

func TestCORSPreflight(t *testing.T) {
	logger := zaptest.NewLogger(t)
	h := hub.New(logger, hub.Options{})
	catalog, err := quiz.NewCatalog(nil)
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Logger:         logger,
		Hub:            h,
		Quizzes:        catalog,
		AllowedOrigins: []string{"http://dashboard.local"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stats", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogLevelEndpoint(t *testing.T) {
	logging, err := observability.NewLogging(config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	h := hub.New(zaptest.NewLogger(t), hub.Options{})
	catalog, err := quiz.NewCatalog(nil)
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Logger:   logging.Logger,
		Hub:      h,
		Quizzes:  catalog,
		LogLevel: logging.LevelHandler(),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/debug/loglevel", strings.NewReader(`{"level":"warn"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warn", logging.Level().String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/loglevel", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
