// Package distro implements the leaderless replication protocol for
// ephemeral registry data.
//
// Every node owns the keys the responsible-node ring assigns to it and
// pushes changes of those keys to all peers. A periodic verify cycle sends
// a checksum record per owned key to every peer; a peer whose copy is
// missing or stale pulls the full record back from the sender. Resource
// types plug in through the ComponentHolder: a DataStorage produces data,
// a DataProcessor applies it and a TransportAgent carries it.
package distro
