package api

import (
	"context"
	"net/http"
	"sort"
)

type healthHandler struct {
	hub    HubView
	checks map[string]func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServeHTTP reports 200 when the hub is running and every check passes,
// 503 otherwise.
func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: map[string]string{}}

	if h.hub.Stats().Running {
		resp.Checks["hub"] = "ok"
	} else {
		resp.Checks["hub"] = "stopped"
		resp.Status = "unavailable"
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
