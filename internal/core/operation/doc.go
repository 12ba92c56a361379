// Package operation implements the naming write and read paths on top of
// the client managers: instance registration, heartbeats, subscriptions
// and instance listing.
//
// Writes for ip-port clients are accepted only by the node responsible for
// the client's address. Other nodes answer with ErrNotResponsible naming
// the owner, and the caller retries there.
package operation
