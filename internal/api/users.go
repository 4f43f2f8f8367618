package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/quizhub/internal/storage/postgres"
)

type userHandler struct {
	logger *zap.Logger
	repo   UserStore
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (h *userHandler) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, postgres.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, postgres.ErrUserExists):
		writeError(w, http.StatusConflict, "username or email already taken")
	case errors.Is(err, postgres.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("user store failed", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to "+op+" user")
	}
}

func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *userHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit < 0 || offset < 0 {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative")
		return
	}
	users, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		h.storeError(w, "list", err)
		return
	}
	if users == nil {
		users = []postgres.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *userHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	u, err := h.repo.Add(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.storeError(w, "create", err)
		return
	}
	h.logger.Info("user created", zap.String("user_id", u.ID.String()), zap.String("username", u.Username))
	writeJSON(w, http.StatusCreated, u)
}

func (h *userHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *userHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	u, err := h.repo.Update(r.Context(), id, postgres.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.storeError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *userHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.storeError(w, "delete", err)
		return
	}
	h.logger.Info("user deleted", zap.String("user_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}
