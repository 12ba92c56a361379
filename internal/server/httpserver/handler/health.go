package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/server/clusterserver"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. A node is ready once its initial load
// from peers finished.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		err := domain.ErrServiceUnavailable
		h.writeError(w, r, http.StatusServiceUnavailable, err.Code, err.Message, "initial data load in progress")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// MembersResponse is the response body for GET /v1/ns/cluster/members.
type MembersResponse struct {
	Self    string                 `json:"self"`
	Members []clusterserver.Member `json:"members"`
}

// handleMembers handles GET /v1/ns/cluster/members.
func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	if h.cluster == nil {
		h.writeJSON(w, r, http.StatusOK, MembersResponse{Members: []clusterserver.Member{}})
		return
	}
	h.writeJSON(w, r, http.StatusOK, MembersResponse{
		Self:    h.cluster.Self(),
		Members: h.cluster.Members(),
	})
}
