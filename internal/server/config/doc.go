// Package config defines the regmesh-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation (addresses, port conflicts, tunables)
//   - cluster.go: conversion into component configurations
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// REGMESH_ environment variables and command-line overrides.
package config
