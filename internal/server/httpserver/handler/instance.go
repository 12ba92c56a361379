package handler

import (
	"net/http"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/core/operation"
)

// handleRegisterInstance handles POST /v1/ns/instance.
func (h *Handler) handleRegisterInstance(w http.ResponseWriter, r *http.Request) {
	var req InstanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	clientID, err := h.naming.RegisterInstance(r.Context(), req.toOperation())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, RegisterInstanceResponse{ClientID: clientID})
}

// handleDeregisterInstance handles DELETE /v1/ns/instance.
func (h *Handler) handleDeregisterInstance(w http.ResponseWriter, r *http.Request) {
	var req InstanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.naming.DeregisterInstance(r.Context(), req.toOperation()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, nil)
}

// handleBeat handles PUT /v1/ns/instance/beat.
func (h *Handler) handleBeat(w http.ResponseWriter, r *http.Request) {
	var req InstanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.naming.Beat(r.Context(), req.toOperation()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, nil)
}

// handleListInstances handles GET /v1/ns/instance/list.
func (h *Handler) handleListInstances(w http.ResponseWriter, r *http.Request) {
	svc := serviceFromQuery(r)
	healthyOnly, err := queryBool(r, "healthy_only")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	instances, err := h.naming.ListInstances(svc, healthyOnly)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if instances == nil {
		instances = []operation.InstanceView{}
	}
	h.writeJSON(w, r, http.StatusOK, ListInstancesResponse{Service: svc, Instances: instances})
}

// handleListServices handles GET /v1/ns/service/list.
func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	services := h.naming.ListServices(r.URL.Query().Get("namespace_id"))
	h.writeJSON(w, r, http.StatusOK, newList(services))
}

func serviceFromQuery(r *http.Request) domain.Service {
	q := r.URL.Query()
	return domain.ParseService(q.Get("namespace_id"), q.Get("group_name"), q.Get("service_name"))
}
