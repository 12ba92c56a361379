package handler

import (
	"net/http"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// handleConnect handles POST /v1/ns/connection.
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.naming.Connect(r.Context(), req.ConnectionID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, req)
}

// handleDisconnect handles DELETE /v1/ns/connection/{id}.
func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.naming.Disconnect(r.Context(), r.PathValue("id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, nil)
}

// handleSubscribe handles POST /v1/ns/subscriber.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.naming.Subscribe(r.Context(), req.toOperation()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, nil)
}

// handleUnsubscribe handles DELETE /v1/ns/subscriber.
func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.naming.Unsubscribe(r.Context(), req.toOperation()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, nil)
}

// handleListSubscribers handles GET /v1/ns/subscribers.
func (h *Handler) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	svc := serviceFromQuery(r)
	if err := svc.Validate(); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, newList(h.naming.Subscribers(svc)))
}

// handleListClients handles GET /v1/ns/clients.
func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, newList(h.naming.ListClients()))
}

// handleGetClient handles GET /v1/ns/clients/{id}.
func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("client id is required"))
		return
	}
	view, err := h.naming.GetClient(id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, view)
}
