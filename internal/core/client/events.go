package client

import "github.com/yndnr/regmesh-go/internal/core/domain"

// Event type names published on the notify bus.
const (
	EventConnected    = "client.connected"
	EventDisconnected = "client.disconnected"
	EventChanged      = "client.changed"
	EventVerifyFailed = "client.verify_failed"

	EventServiceRegistered   = "client.service.registered"
	EventServiceDeregistered = "client.service.deregistered"
	EventServiceSubscribed   = "client.service.subscribed"
	EventServiceUnsubscribed = "client.service.unsubscribed"
)

// ConnectedEvent is published when a client is added to a manager.
type ConnectedEvent struct {
	Client Client
}

func (ConnectedEvent) EventType() string { return EventConnected }

// DisconnectedEvent is published after a client is removed and released.
// Native is true when the client was owned by this node.
type DisconnectedEvent struct {
	Client Client
	Native bool
}

func (DisconnectedEvent) EventType() string { return EventDisconnected }

// ChangedEvent is published after a client's replicated state changed.
type ChangedEvent struct {
	Client Client
}

func (ChangedEvent) EventType() string { return EventChanged }

// VerifyFailedEvent is published when a verify record from Source did not
// match the local copy.
type VerifyFailedEvent struct {
	ClientID string
	Source   string
}

func (VerifyFailedEvent) EventType() string { return EventVerifyFailed }

// ServiceEvent reports a client registering, deregistering, subscribing or
// unsubscribing a service. Type is one of the EventService* names.
type ServiceEvent struct {
	Type     string
	Service  domain.Service
	ClientID string
}

func (e ServiceEvent) EventType() string { return e.Type }
