package clusterserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

// unaryOnly passes streaming calls through untouched. The distro service
// has no streaming procedures.
type unaryOnly struct{}

func (unaryOnly) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (unaryOnly) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// LoggingInterceptor logs served calls. Successes log at debug, since
// verify traffic would drown everything else; rejections the caller caused
// log at warn and failures at error.
type LoggingInterceptor struct {
	unaryOnly
	logger *slog.Logger
}

// NewLoggingInterceptor creates a server-side logging interceptor.
func NewLoggingInterceptor(l *slog.Logger) *LoggingInterceptor {
	if l == nil {
		l = slog.Default()
	}
	return &LoggingInterceptor{logger: l}
}

// WrapUnary implements connect.Interceptor.
func (i *LoggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		requestID := req.Header().Get(HeaderRequestID)
		if requestID != "" {
			ctx = logger.WithRequestID(ctx, requestID)
		}

		resp, err := next(ctx, req)

		attrs := []any{
			"procedure", req.Spec().Procedure,
			"request_id", requestID,
			"source", req.Header().Get(HeaderSource),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case err == nil:
			i.logger.Debug("cluster rpc served", attrs...)
		case callerFault(err):
			i.logger.Warn("cluster rpc rejected", append(attrs, "error", err)...)
		default:
			i.logger.Error("cluster rpc failed", append(attrs, "peer", req.Peer().Addr, "error", err)...)
		}
		return resp, err
	}
}

func callerFault(err error) bool {
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Code() {
	case connect.CodeInvalidArgument, connect.CodeNotFound, connect.CodeFailedPrecondition:
		return true
	}
	return false
}

// RecoveryInterceptor turns a handler panic into an internal error.
type RecoveryInterceptor struct {
	unaryOnly
	logger *slog.Logger
}

// NewRecoveryInterceptor creates a server-side recovery interceptor.
func NewRecoveryInterceptor(l *slog.Logger) *RecoveryInterceptor {
	if l == nil {
		l = slog.Default()
	}
	return &RecoveryInterceptor{logger: l}
}

// WrapUnary implements connect.Interceptor.
func (i *RecoveryInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
		defer func() {
			if r := recover(); r != nil {
				i.logger.Error("cluster rpc panic recovered", "procedure", req.Spec().Procedure, "panic", r)
				err = connect.NewError(connect.CodeInternal, errors.New("internal error"))
			}
		}()
		return next(ctx, req)
	}
}

// SourceInterceptor stamps outgoing requests with this node's address and
// a request id, reusing the caller's id when the context carries one.
type SourceInterceptor struct {
	unaryOnly
	self string
}

// NewSourceInterceptor creates a client-side interceptor.
func NewSourceInterceptor(self string) *SourceInterceptor {
	return &SourceInterceptor{self: self}
}

// WrapUnary implements connect.Interceptor.
func (i *SourceInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			id := logger.RequestIDFromContext(ctx)
			if id == "" {
				id = logger.NewRequestID()
			}
			req.Header().Set(HeaderSource, i.self)
			req.Header().Set(HeaderRequestID, id)
		}
		return next(ctx, req)
	}
}

// DefaultInterceptors returns the server-side chain, outermost first.
func DefaultInterceptors(l *slog.Logger) []connect.Interceptor {
	return []connect.Interceptor{
		NewRecoveryInterceptor(l),
		NewLoggingInterceptor(l),
	}
}
