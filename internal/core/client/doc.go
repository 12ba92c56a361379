// Package client models the ephemeral clients of the registry.
//
// A client owns the instances it publishes and the services it subscribes
// to. Two kinds exist:
//
//   - ConnectionBasedClient: bound to a long-lived connection. A native
//     client (connected to this node) never expires locally; a synced copy
//     expires unless verify renews it within the ttl.
//   - IPPortBasedClient: identified by "ip:port#ephemeral" and kept alive by
//     heartbeats. It carries a cancellable health check task.
//
// Every mutation bumps the client's revision, which doubles as the
// checksum compared by the verify cycle. A released client is terminal and
// ignores further mutations.
package client
