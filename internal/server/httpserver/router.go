package httpserver

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/yndnr/regmesh-go/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Naming  handler.NamingService
	Cluster handler.ClusterView
	Ready   func() bool

	// Metrics is served at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string

	// Observer receives per-request metrics. Optional.
	Observer RequestObserver

	// RateLimit is the per-IP rate limit of the naming API
	// (requests/second). Zero disables limiting.
	RateLimit float64
	RateBurst int

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
//
// Order: Recover -> RequestID -> AccessLog -> mux; the naming API adds
// RateLimit below the mux.
func NewRouter(cfg *RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	l := cfg.Logger.With("component", "http_server")

	var api http.Handler = handler.New(handler.Config{
		Naming:  cfg.Naming,
		Cluster: cfg.Cluster,
		Ready:   cfg.Ready,
		Logger:  l,
	})
	if cfg.RateLimit > 0 {
		api = RateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst)(api)
	}

	mux := http.NewServeMux()
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, cfg.Metrics)
	}
	mux.Handle("/", api)

	return Chain(mux,
		Recover(l),
		RequestID(l),
		AccessLog(cfg.Observer),
	)
}
