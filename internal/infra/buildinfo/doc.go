// Package buildinfo exposes build information for regmesh.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/regmesh-go/internal/infra/buildinfo.Version=v1.0.0"
//
// GoVersion falls back to the running toolchain when it was not injected.
package buildinfo
