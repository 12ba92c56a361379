package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/core/operation"
	"github.com/yndnr/regmesh-go/internal/server/clusterserver"
	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// NamingService is the naming operation surface. *operation.Service
// implements it.
type NamingService interface {
	Connect(ctx context.Context, connectionID string) error
	Disconnect(ctx context.Context, connectionID string) error
	RegisterInstance(ctx context.Context, req operation.InstanceRequest) (string, error)
	DeregisterInstance(ctx context.Context, req operation.InstanceRequest) error
	Beat(ctx context.Context, req operation.InstanceRequest) error
	Subscribe(ctx context.Context, req operation.SubscribeRequest) error
	Unsubscribe(ctx context.Context, req operation.SubscribeRequest) error
	ListInstances(svc domain.Service, healthyOnly bool) ([]operation.InstanceView, error)
	ListServices(namespace string) []domain.Service
	Subscribers(svc domain.Service) []string
	ListClients() []string
	GetClient(clientID string) (operation.ClientView, error)
}

// ClusterView exposes the member list.
type ClusterView interface {
	Self() string
	Members() []clusterserver.Member
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	naming  NamingService
	cluster ClusterView
	ready   func() bool
	logger  *slog.Logger
	mux     *http.ServeMux
}

// Config wires a Handler.
type Config struct {
	Naming  NamingService
	Cluster ClusterView

	// Ready reports whether the node finished its initial data load.
	// Nil means always ready.
	Ready func() bool

	Logger *slog.Logger
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Ready == nil {
		cfg.Ready = func() bool { return true }
	}
	h := &Handler{
		naming:  cfg.Naming,
		cluster: cfg.Cluster,
		ready:   cfg.Ready,
		logger:  cfg.Logger,
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	h.mux.HandleFunc("GET /v1/ns/cluster/members", h.handleMembers)

	h.mux.HandleFunc("POST /v1/ns/instance", h.handleRegisterInstance)
	h.mux.HandleFunc("DELETE /v1/ns/instance", h.handleDeregisterInstance)
	h.mux.HandleFunc("PUT /v1/ns/instance/beat", h.handleBeat)
	h.mux.HandleFunc("GET /v1/ns/instance/list", h.handleListInstances)
	h.mux.HandleFunc("GET /v1/ns/service/list", h.handleListServices)

	h.mux.HandleFunc("POST /v1/ns/subscriber", h.handleSubscribe)
	h.mux.HandleFunc("DELETE /v1/ns/subscriber", h.handleUnsubscribe)
	h.mux.HandleFunc("GET /v1/ns/subscribers", h.handleListSubscribers)

	h.mux.HandleFunc("POST /v1/ns/connection", h.handleConnect)
	h.mux.HandleFunc("DELETE /v1/ns/connection/{id}", h.handleDisconnect)
	h.mux.HandleFunc("GET /v1/ns/clients", h.handleListClients)
	h.mux.HandleFunc("GET /v1/ns/clients/{id}", h.handleGetClient)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrBadRequest.WithDetails("empty request body")
		}
		return domain.ErrBadRequest.WithDetails("invalid JSON body: " + err.Error())
	}
	return nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.ErrInvalidArgument.WithDetails(key + " must be a boolean")
	}
	return b, nil
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := domain.AsDomainError(err); ok {
		status := de.Status()
		if status >= http.StatusInternalServerError {
			logger.L(r.Context()).Error("request failed", "error", err)
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	logger.L(r.Context()).Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}
