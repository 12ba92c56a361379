// Package healthcheck expires ephemeral clients.
//
// Reactor runs one beat check per ip-port client this node owns: instances
// that stop beating turn unhealthy, then get deregistered, and a client
// that stopped beating entirely is disconnected. ExpiredClientCleaner
// sweeps replicas that their owner stopped confirming.
package healthcheck
