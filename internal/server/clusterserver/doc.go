// Package clusterserver provides cluster communication for regmesh.
//
//   - discovery.go: gossip membership on hashicorp/memberlist
//   - members.go: the member list the distro layer and the ring consume
//   - handler.go, client.go: distro RPC over Connect with a JSON codec
//   - server.go: the cluster RPC listener
//
// Members are identified by their cluster RPC address. Gossip carries that
// address in the node metadata.
package clusterserver
