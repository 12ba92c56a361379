package clientmanager

import (
	"log/slog"
	"time"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/pkg/cmap"
)

// EphemeralIPPortManager manages heartbeat clients.
type EphemeralIPPortManager struct {
	cfg            Config
	publisher      Publisher
	responsibility Responsibility
	logger         *slog.Logger

	checker HealthChecker
	clients *cmap.Map[*client.IPPortBasedClient]
}

var _ Manager = (*EphemeralIPPortManager)(nil)

// NewEphemeralIPPortManager creates an empty manager. Responsibility is
// decided on the client's "ip:port".
func NewEphemeralIPPortManager(cfg Config, publisher Publisher, responsibility Responsibility) *EphemeralIPPortManager {
	cfg = cfg.withDefaults()
	return &EphemeralIPPortManager{
		cfg:            cfg,
		publisher:      publisher,
		responsibility: responsibility,
		logger:         cfg.Logger.With("component", "ipport_client_manager"),
		clients:        cmap.New[*client.IPPortBasedClient](),
	}
}

// SetHealthChecker binds the beat check scheduler. It must be called before
// the first client connects.
func (m *EphemeralIPPortManager) SetHealthChecker(hc HealthChecker) {
	m.checker = hc
}

func (m *EphemeralIPPortManager) ClientConnected(c client.Client) bool {
	ipc, ok := c.(*client.IPPortBasedClient)
	if !ok {
		m.logger.Warn("rejecting non ip-port client", "client_id", c.ClientID(), "kind", c.Kind())
		return false
	}
	if !ipc.IsEphemeral() {
		m.logger.Warn("rejecting persistent client", "client_id", c.ClientID())
		return false
	}
	if !m.clients.SetIfAbsent(ipc.ClientID(), ipc) {
		return false
	}
	if m.checker != nil {
		ipc.SetHealthCheckTask(m.checker.ScheduleCheck(ipc))
	}
	m.logger.Info("client connected", "client_id", ipc.ClientID())
	m.publisher.Publish(client.ConnectedEvent{Client: ipc})
	return true
}

func (m *EphemeralIPPortManager) ClientConnectedID(clientID string, attrs client.Attributes) bool {
	c, err := client.NewIPPortBasedClient(clientID, attrs.Revision, m.cfg.ClientExpiredTime, m.cfg.clientOptions())
	if err != nil {
		m.logger.Warn("invalid ip-port client id", "client_id", clientID, "error", err)
		return false
	}
	return m.ClientConnected(c)
}

// SyncClientConnected registers a replica. Ip-port clients carry no native
// flag, ownership is always recomputed from the ring.
func (m *EphemeralIPPortManager) SyncClientConnected(clientID string, attrs client.Attributes) bool {
	return m.ClientConnectedID(clientID, attrs)
}

func (m *EphemeralIPPortManager) ClientDisconnected(clientID string) bool {
	c, ok := m.clients.Pop(clientID)
	if ok {
		m.release(c)
	}
	return ok
}

// RemoveIfExpired disconnects a replica only if it is still expired at
// now, checked atomically with the removal. Owned clients are left to
// their beat check.
func (m *EphemeralIPPortManager) RemoveIfExpired(clientID string, now time.Time) bool {
	c, ok := m.clients.DeleteIf(clientID, func(c *client.IPPortBasedClient) bool {
		return c.IsExpire(now) && !m.responsibility.Responsible(c.ResponsibleID())
	})
	if ok {
		m.release(c)
	}
	return ok
}

func (m *EphemeralIPPortManager) release(c *client.IPPortBasedClient) {
	native := m.IsResponsibleClient(c)
	c.Release()
	m.logger.Info("client disconnected", "client_id", c.ClientID(), "responsible", native)
	m.publisher.Publish(client.DisconnectedEvent{Client: c, Native: native})
}

func (m *EphemeralIPPortManager) GetClient(clientID string) (client.Client, bool) {
	c, ok := m.clients.Get(clientID)
	if !ok {
		return nil, false
	}
	return c, true
}

// GetIPPortClient returns the concrete client.
func (m *EphemeralIPPortManager) GetIPPortClient(clientID string) (*client.IPPortBasedClient, bool) {
	return m.clients.Get(clientID)
}

func (m *EphemeralIPPortManager) Contains(clientID string) bool {
	return m.clients.Has(clientID)
}

func (m *EphemeralIPPortManager) AllClientID() []string {
	return m.clients.Keys()
}

func (m *EphemeralIPPortManager) IsResponsibleClient(c client.Client) bool {
	ipc, ok := c.(*client.IPPortBasedClient)
	return ok && m.responsibility.Responsible(ipc.ResponsibleID())
}

func (m *EphemeralIPPortManager) VerifyClient(info client.VerifyInfo) bool {
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
	c.RefreshHeartbeat()
	return true
}

// ExpiredClients returns the ids of clients expired at now that this node
// does not own. Owned clients are expired by their beat check.
func (m *EphemeralIPPortManager) ExpiredClients(now time.Time) []string {
	var ids []string
	m.clients.Range(func(id string, c *client.IPPortBasedClient) bool {
		if c.IsExpire(now) && !m.responsibility.Responsible(c.ResponsibleID()) {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// Count returns the number of clients.
func (m *EphemeralIPPortManager) Count() int {
	return m.clients.Count()
}
