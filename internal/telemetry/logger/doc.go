// Package logger builds the process-wide structured logger for regmesh.
//
// It configures log/slog with a JSON or text handler whose level is held in
// a shared slog.LevelVar, so the level can be changed at runtime (config
// reload) without rebuilding loggers already handed to components.
//
//   - logger.go: handler construction and level control
//   - context.go: request id propagation through context.Context
//   - redact.go: redaction of credential-like attributes
package logger
