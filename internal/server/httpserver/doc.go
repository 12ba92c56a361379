// Package httpserver serves the naming HTTP API.
//
// Routes live in the handler subpackage. This package adds the middleware
// chain (Recover, RequestID, AccessLog, RateLimit), mounts /metrics and
// owns the listener.
package httpserver
