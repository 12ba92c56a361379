package clusterserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/distro"
)

// DistroHandler is the receiving side of distro. *distro.Protocol
// implements it.
type DistroHandler interface {
	OnReceive(data distro.Data) bool
	OnVerify(data distro.Data, source string) bool
	OnQuery(key distro.Key) (distro.Data, error)
	OnSnapshot(resourceType string) (distro.Data, error)
}

// Handler implements the DistroService RPC handlers.
type Handler struct {
	distro DistroHandler
	logger *slog.Logger
}

// NewHandler creates a new RPC handler.
func NewHandler(h DistroHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		distro: h,
		logger: logger,
	}
}

// Mount registers every procedure on mux with the given options.
func (h *Handler) Mount(mux *http.ServeMux, opts ...connect.HandlerOption) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux.Handle(ProcedureSyncData, connect.NewUnaryHandler(ProcedureSyncData, h.SyncData, opts...))
	mux.Handle(ProcedureVerifyData, connect.NewUnaryHandler(ProcedureVerifyData, h.VerifyData, opts...))
	mux.Handle(ProcedureQueryData, connect.NewUnaryHandler(ProcedureQueryData, h.QueryData, opts...))
	mux.Handle(ProcedureQuerySnapshot, connect.NewUnaryHandler(ProcedureQuerySnapshot, h.QuerySnapshot, opts...))
}

// SyncData applies a change pushed by the owner.
func (h *Handler) SyncData(
	ctx context.Context,
	req *connect.Request[DataRequest],
) (*connect.Response[Ack], error) {
	ok := h.distro.OnReceive(req.Msg.Data)
	return connect.NewResponse(&Ack{OK: ok}), nil
}

// VerifyData checks a verify batch from the source node.
func (h *Handler) VerifyData(
	ctx context.Context,
	req *connect.Request[DataRequest],
) (*connect.Response[Ack], error) {
	source := req.Header().Get(HeaderSource)
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("verify request without %s header", HeaderSource))
	}
	ok := h.distro.OnVerify(req.Msg.Data, source)
	return connect.NewResponse(&Ack{OK: ok}), nil
}

// QueryData returns one locally held record.
func (h *Handler) QueryData(
	ctx context.Context,
	req *connect.Request[QueryDataRequest],
) (*connect.Response[DataResponse], error) {
	data, err := h.distro.OnQuery(req.Msg.Key)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DataResponse{Data: data}), nil
}

// QuerySnapshot returns every record of a resource type.
func (h *Handler) QuerySnapshot(
	ctx context.Context,
	req *connect.Request[QuerySnapshotRequest],
) (*connect.Response[DataResponse], error) {
	data, err := h.distro.OnSnapshot(req.Msg.ResourceType)
	if err != nil {
		h.logger.Warn("snapshot failed", "resource_type", req.Msg.ResourceType, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DataResponse{Data: data}), nil
}

// toConnectError maps domain errors onto Connect codes by their status.
func toConnectError(err error) error {
	switch status := domain.StatusOf(err); {
	case status == 404:
		return connect.NewError(connect.CodeNotFound, err)
	case status == 409:
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case status == 503:
		return connect.NewError(connect.CodeUnavailable, err)
	case status >= 400 && status < 500:
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
