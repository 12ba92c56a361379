package clientmanager

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/infra/notify"
)

// Manager is implemented by every client manager.
type Manager interface {
	// ClientConnected registers an already built client. It returns false
	// when a client with the same id exists.
	ClientConnected(c client.Client) bool

	// ClientConnectedID creates and registers a client owned by this node.
	ClientConnectedID(clientID string, attrs client.Attributes) bool

	// SyncClientConnected creates and registers a replica received from a
	// peer.
	SyncClientConnected(clientID string, attrs client.Attributes) bool

	// ClientDisconnected removes and releases the client. It returns false
	// when the id is unknown.
	ClientDisconnected(clientID string) bool

	// GetClient returns the client, or ok=false when unknown.
	GetClient(clientID string) (c client.Client, ok bool)

	Contains(clientID string) bool
	AllClientID() []string

	// IsResponsibleClient reports whether this node owns c.
	IsResponsibleClient(c client.Client) bool

	// VerifyClient checks a peer's verify record against the local copy
	// and renews the copy on a match.
	VerifyClient(info client.VerifyInfo) bool
}

// Responsibility locates the owner of a key.
type Responsibility interface {
	Responsible(key string) bool
}

// Publisher accepts events; *notify.Center implements it.
type Publisher interface {
	Publish(e notify.Event) bool
}

// HealthChecker attaches a periodic beat check to an ip-port client.
type HealthChecker interface {
	ScheduleCheck(c *client.IPPortBasedClient) client.Cancellable
}

// Config configures the managers.
type Config struct {
	// ConnectionClientTTL bounds the life of an unverified synced
	// connection client.
	ConnectionClientTTL time.Duration

	// ClientExpiredTime bounds the silence of an ip-port client.
	ClientExpiredTime time.Duration

	Clock  clockwork.Clock
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ConnectionClientTTL <= 0 {
		c.ConnectionClientTTL = client.DefaultConnectionClientTTL
	}
	if c.ClientExpiredTime <= 0 {
		c.ClientExpiredTime = client.DefaultClientExpiredTime
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) clientOptions() client.Options {
	return client.Options{Clock: c.Clock, Logger: c.Logger}
}
