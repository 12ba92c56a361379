package clientmanager

import (
	"log/slog"
	"time"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/pkg/cmap"
)

// ConnectionBasedManager manages connection clients.
type ConnectionBasedManager struct {
	cfg       Config
	publisher Publisher
	logger    *slog.Logger

	clients *cmap.Map[*client.ConnectionBasedClient]
}

var _ Manager = (*ConnectionBasedManager)(nil)

// NewConnectionBasedManager creates an empty manager.
func NewConnectionBasedManager(cfg Config, publisher Publisher) *ConnectionBasedManager {
	cfg = cfg.withDefaults()
	return &ConnectionBasedManager{
		cfg:       cfg,
		publisher: publisher,
		logger:    cfg.Logger.With("component", "connection_client_manager"),
		clients:   cmap.New[*client.ConnectionBasedClient](),
	}
}

func (m *ConnectionBasedManager) ClientConnected(c client.Client) bool {
	cc, ok := c.(*client.ConnectionBasedClient)
	if !ok {
		m.logger.Warn("rejecting non-connection client", "client_id", c.ClientID(), "kind", c.Kind())
		return false
	}
	if !m.clients.SetIfAbsent(cc.ClientID(), cc) {
		return false
	}
	m.logger.Info("client connected", "client_id", cc.ClientID(), "native", cc.IsNative())
	m.publisher.Publish(client.ConnectedEvent{Client: cc})
	return true
}

func (m *ConnectionBasedManager) ClientConnectedID(clientID string, attrs client.Attributes) bool {
	return m.ClientConnected(client.NewConnectionBasedClient(clientID, true, attrs.Revision, m.cfg.ConnectionClientTTL, m.cfg.clientOptions()))
}

func (m *ConnectionBasedManager) SyncClientConnected(clientID string, attrs client.Attributes) bool {
	return m.ClientConnected(client.NewConnectionBasedClient(clientID, false, attrs.Revision, m.cfg.ConnectionClientTTL, m.cfg.clientOptions()))
}

func (m *ConnectionBasedManager) ClientDisconnected(clientID string) bool {
	c, ok := m.clients.Pop(clientID)
	if ok {
		m.release(c)
	}
	return ok
}

// RemoveIfExpired disconnects the client only if it is still expired at
// now. The check and the removal are atomic against the map, so a replica
// renewed after it was listed survives.
func (m *ConnectionBasedManager) RemoveIfExpired(clientID string, now time.Time) bool {
	c, ok := m.clients.DeleteIf(clientID, func(c *client.ConnectionBasedClient) bool {
		return c.IsExpire(now)
	})
	if ok {
		m.release(c)
	}
	return ok
}

func (m *ConnectionBasedManager) release(c *client.ConnectionBasedClient) {
	c.Release()
	m.logger.Info("client disconnected", "client_id", c.ClientID(), "native", c.IsNative())
	m.publisher.Publish(client.DisconnectedEvent{Client: c, Native: c.IsNative()})
}

func (m *ConnectionBasedManager) GetClient(clientID string) (client.Client, bool) {
	c, ok := m.clients.Get(clientID)
	if !ok {
		return nil, false
	}
	return c, true
}

func (m *ConnectionBasedManager) Contains(clientID string) bool {
	return m.clients.Has(clientID)
}

func (m *ConnectionBasedManager) AllClientID() []string {
	return m.clients.Keys()
}

// IsResponsibleClient reports whether c is connected to this node.
func (m *ConnectionBasedManager) IsResponsibleClient(c client.Client) bool {
	cc, ok := c.(*client.ConnectionBasedClient)
	return ok && cc.IsNative()
}

func (m *ConnectionBasedManager) VerifyClient(info client.VerifyInfo) bool {
	c, ok := m.clients.Get(info.ClientID)
	if !ok {
		return false
	}
	if rev := c.Revision(); rev != info.Revision {
		m.logger.Info("verify revision mismatch",
			"client_id", info.ClientID,
			"local_revision", rev,
			"remote_revision", info.Revision,
		)
		return false
	}
	c.Renew()
	return true
}

// ExpiredClients returns the ids of clients expired at now.
func (m *ConnectionBasedManager) ExpiredClients(now time.Time) []string {
	var ids []string
	m.clients.Range(func(id string, c *client.ConnectionBasedClient) bool {
		if c.IsExpire(now) {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// Count returns the number of clients.
func (m *ConnectionBasedManager) Count() int {
	return m.clients.Count()
}
