package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cory-johannsen/quizhub/internal/hub"
	"github.com/cory-johannsen/quizhub/internal/quiz"
)

type viewHandler struct {
	logger  *zap.Logger
	hub     HubView
	quizzes quiz.Provider
}

// hubError maps hub failures to HTTP statuses.
func (h *viewHandler) hubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hub.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, hub.ErrQueueFull), errors.Is(err, hub.ErrHubStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("hub request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "hub request failed")
	}
}

func (h *viewHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

func (h *viewHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	snap, err := h.hub.Snapshot(r.Context())
	if err != nil {
		h.hubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Rooms)
}

func (h *viewHandler) RoomScores(w http.ResponseWriter, r *http.Request) {
	scores, err := h.hub.Scores(r.Context(), hub.RoomID(chi.URLParam(r, "id")))
	if err != nil {
		h.hubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

type quizSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Questions   int    `json:"questions"`
}

func (h *viewHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizzes.List(r.Context())
	if err != nil {
		h.logger.Error("listing quizzes", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list quizzes")
		return
	}
	out := make([]quizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, quizSummary{
			ID:          q.ID,
			Name:        q.Name,
			Description: q.Description,
			Questions:   len(q.Questions),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *viewHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := h.quizzes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, quiz.ErrQuizNotFound) {
			writeError(w, http.StatusNotFound, "quiz not found")
			return
		}
		h.logger.Error("getting quiz", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get quiz")
		return
	}
	writeJSON(w, http.StatusOK, q)
}
