// Package clientmanager owns the live client registry.
//
// ConnectionBasedManager holds connection clients, EphemeralIPPortManager
// holds heartbeat clients and Delegate routes each call to one of them by
// the shape of the client id. Managers publish connect, disconnect and
// verify-failure events on the notify bus; they never talk to peers.
package clientmanager
