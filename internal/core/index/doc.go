// Package index maps services to the clients publishing or subscribing
// them. It is rebuilt from client events and never replicated: every node
// derives its own index from the clients it holds.
package index
