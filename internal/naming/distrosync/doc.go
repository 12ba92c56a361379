// Package distrosync plugs the ephemeral client registry into the distro
// protocol.
//
// Storage exposes local clients as distro data, Processor applies client
// data received from peers and turns local client events into pushes, and
// TransportAgent carries client data over the cluster RPC channel.
package distrosync
