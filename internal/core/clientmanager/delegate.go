package clientmanager

import (
	"slices"
	"time"

	"github.com/yndnr/regmesh-go/internal/core/client"
)

// Delegate routes every call to the connection or ip-port manager, chosen
// by the client id: ids of the form "ip:port#ephemeral" belong to the
// ip-port manager, everything else to the connection manager.
type Delegate struct {
	conn   *ConnectionBasedManager
	ipPort *EphemeralIPPortManager
}

var _ Manager = (*Delegate)(nil)

// NewDelegate combines the two managers.
func NewDelegate(conn *ConnectionBasedManager, ipPort *EphemeralIPPortManager) *Delegate {
	return &Delegate{conn: conn, ipPort: ipPort}
}

func (d *Delegate) route(clientID string) Manager {
	if client.IsIPPortClientID(clientID) {
		return d.ipPort
	}
	return d.conn
}

func (d *Delegate) ClientConnected(c client.Client) bool {
	return d.route(c.ClientID()).ClientConnected(c)
}

func (d *Delegate) ClientConnectedID(clientID string, attrs client.Attributes) bool {
	return d.route(clientID).ClientConnectedID(clientID, attrs)
}

func (d *Delegate) SyncClientConnected(clientID string, attrs client.Attributes) bool {
	return d.route(clientID).SyncClientConnected(clientID, attrs)
}

func (d *Delegate) ClientDisconnected(clientID string) bool {
	return d.route(clientID).ClientDisconnected(clientID)
}

func (d *Delegate) GetClient(clientID string) (client.Client, bool) {
	return d.route(clientID).GetClient(clientID)
}

func (d *Delegate) Contains(clientID string) bool {
	return d.route(clientID).Contains(clientID)
}

func (d *Delegate) AllClientID() []string {
	return slices.Concat(d.conn.AllClientID(), d.ipPort.AllClientID())
}

func (d *Delegate) IsResponsibleClient(c client.Client) bool {
	return d.route(c.ClientID()).IsResponsibleClient(c)
}

func (d *Delegate) VerifyClient(info client.VerifyInfo) bool {
	return d.route(info.ClientID).VerifyClient(info)
}

// ExpiredClients returns expired replicas from both managers.
func (d *Delegate) ExpiredClients(now time.Time) []string {
	return slices.Concat(d.conn.ExpiredClients(now), d.ipPort.ExpiredClients(now))
}

// RemoveIfExpired removes clientID if it is still an expired replica at
// now.
func (d *Delegate) RemoveIfExpired(clientID string, now time.Time) bool {
	if client.IsIPPortClientID(clientID) {
		return d.ipPort.RemoveIfExpired(clientID, now)
	}
	return d.conn.RemoveIfExpired(clientID, now)
}

// Connection returns the connection manager.
func (d *Delegate) Connection() *ConnectionBasedManager { return d.conn }

// IPPort returns the ip-port manager.
func (d *Delegate) IPPort() *EphemeralIPPortManager { return d.ipPort }

// Counts returns the number of clients per kind.
func (d *Delegate) Counts() map[client.Kind]int {
	return map[client.Kind]int{
		client.KindConnection: d.conn.Count(),
		client.KindIPPort:     d.ipPort.Count(),
	}
}
