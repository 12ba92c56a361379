// Package handler provides the HTTP handlers of the naming API.
//
//   - instance.go: instance registration, heartbeats and queries
//   - client.go: connection clients, subscriptions and client inspection
//   - health.go: health, readiness and cluster members
//
// Handlers decode the request, call the naming service and map domain
// errors to HTTP statuses. Every response uses the Response envelope.
package handler
