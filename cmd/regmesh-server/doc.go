// Package main provides the entry point for regmesh-server.
//
// regmesh-server is one node of the regmesh naming registry. It holds the
// ephemeral clients registered through the naming API and replicates them
// to its peers with the distro protocol.
package main
