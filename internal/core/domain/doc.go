// Package domain defines the core domain models for regmesh.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Service: namespaced service identity used as a map key
//   - InstancePublishInfo: an instance a client publishes for a service
//   - Subscriber: a client's subscription to a service
//   - Errors: domain error codes shared by every layer
package domain
