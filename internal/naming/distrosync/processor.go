package distrosync

import (
	"encoding/json"
	"log/slog"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/clientmanager"
	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/distro"
	"github.com/yndnr/regmesh-go/internal/infra/notify"
)

// Syncer pushes a key to the peers. distro.Protocol implements it.
type Syncer interface {
	Sync(key distro.Key, op distro.DataOperation)
}

// Processor applies client data from peers and pushes local client
// changes. It is a distro.DataProcessor and a notify.Subscriber.
type Processor struct {
	manager   clientmanager.Manager
	syncer    Syncer
	publisher clientmanager.Publisher
	logger    *slog.Logger
}

var (
	_ distro.DataProcessor = (*Processor)(nil)
	_ notify.Subscriber    = (*Processor)(nil)
)

// NewProcessor creates a Processor.
func NewProcessor(manager clientmanager.Manager, syncer Syncer, publisher clientmanager.Publisher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		manager:   manager,
		syncer:    syncer,
		publisher: publisher,
		logger:    logger.With("component", "distro_client_processor"),
	}
}

func (p *Processor) ProcessType() string { return ResourceType }

func (p *Processor) SubscribeTypes() []string {
	return []string{client.EventChanged, client.EventDisconnected}
}

// OnEvent pushes owned clients' changes and removals to the peers.
func (p *Processor) OnEvent(ev notify.Event) {
	switch e := ev.(type) {
	case client.ChangedEvent:
		c := e.Client
		if c == nil || !c.IsEphemeral() || !p.manager.IsResponsibleClient(c) {
			return
		}
		p.syncer.Sync(Key(c.ClientID()), distro.OpChange)
	case client.DisconnectedEvent:
		if e.Client == nil || !e.Client.IsEphemeral() || !e.Native {
			return
		}
		p.syncer.Sync(Key(e.Client.ClientID()), distro.OpDelete)
	}
}

func (p *Processor) ProcessData(data distro.Data) bool {
	switch data.Type {
	case distro.OpDelete:
		return p.remove(data.Key.ResourceKey)
	case distro.OpAdd, distro.OpChange:
		sd, err := client.UnmarshalSyncData(data.Content)
		if err != nil {
			p.logger.Warn("drop client data", "client_id", data.Key.ResourceKey, "error", err)
			return false
		}
		return p.apply(sd)
	default:
		p.logger.Warn("unexpected data operation", "client_id", data.Key.ResourceKey, "op", data.Type)
		return false
	}
}

func (p *Processor) ProcessVerifyData(data distro.Data, source string) bool {
	var info client.VerifyInfo
	if err := json.Unmarshal(data.Content, &info); err != nil {
		p.logger.Warn("drop verify record", "source", source, "error", err)
		return false
	}
	if info.ClientID == "" {
		info.ClientID = data.Key.ResourceKey
	}
	if p.manager.VerifyClient(info) {
		return true
	}
	p.publisher.Publish(client.VerifyFailedEvent{ClientID: info.ClientID, Source: source})
	return false
}

func (p *Processor) ProcessSnapshot(data distro.Data) bool {
	snap, err := client.UnmarshalSnapshot(data.Content)
	if err != nil {
		p.logger.Warn("drop client snapshot", "error", err)
		return false
	}
	applied := 0
	for _, sd := range snap.Clients {
		if p.apply(sd) {
			applied++
		}
	}
	p.logger.Info("client snapshot applied", "clients", len(snap.Clients), "applied", applied)
	return true
}

func (p *Processor) remove(clientID string) bool {
	if c, ok := p.manager.GetClient(clientID); ok && isNativeConnection(c) {
		p.logger.Warn("ignoring remote removal of a native client", "client_id", clientID)
		return false
	}
	p.manager.ClientDisconnected(clientID)
	return true
}

// apply creates or upgrades the replica described by sd.
func (p *Processor) apply(sd client.SyncData) bool {
	if !sd.Ephemeral {
		p.logger.Warn("drop persistent client data", "client_id", sd.ClientID)
		return false
	}
	p.manager.SyncClientConnected(sd.ClientID, client.Attributes{Revision: sd.Revision})
	c, ok := p.manager.GetClient(sd.ClientID)
	if !ok {
		p.logger.Warn("replica not created", "client_id", sd.ClientID)
		return false
	}
	if isNativeConnection(c) {
		return true
	}
	p.upgrade(c, sd)
	return true
}

func (p *Processor) upgrade(c client.Client, sd client.SyncData) {
	incoming := make(map[domain.Service]domain.InstancePublishInfo, len(sd.Publishers))
	for _, e := range sd.Publishers {
		incoming[e.Service] = e.Instance
	}

	for _, svc := range c.AllPublishedServices() {
		if _, keep := incoming[svc]; keep {
			continue
		}
		if _, removed := c.RemoveServiceInstance(svc); removed {
			p.publishService(client.EventServiceDeregistered, svc, c.ClientID())
		}
	}
	for svc, inst := range incoming {
		if cur, ok := c.GetInstancePublishInfo(svc); ok && cur.Equal(inst) {
			continue
		}
		if c.AddServiceInstance(svc, inst) {
			p.publishService(client.EventServiceRegistered, svc, c.ClientID())
		}
	}
	c.SetRevision(sd.Revision)
}

func (p *Processor) publishService(typ string, svc domain.Service, clientID string) {
	p.publisher.Publish(client.ServiceEvent{Type: typ, Service: svc, ClientID: clientID})
}

func isNativeConnection(c client.Client) bool {
	cc, ok := c.(*client.ConnectionBasedClient)
	return ok && cc.IsNative()
}
