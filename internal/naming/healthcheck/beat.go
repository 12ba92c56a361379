package healthcheck

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/clientmanager"
)

// ClientBeatCheckTask checks one ip-port client. Replicas are skipped;
// their owner checks them.
type ClientBeatCheckTask struct {
	client    *client.IPPortBasedClient
	cfg       Config
	clock     clockwork.Clock
	manager   clientmanager.Manager
	publisher clientmanager.Publisher
	metrics   Metrics
	logger    *slog.Logger
}

// Run performs one check.
func (t *ClientBeatCheckTask) Run() {
	c := t.client
	if c.Released() || !t.manager.IsResponsibleClient(c) {
		return
	}
	now := t.clock.Now()

	if c.IsExpire(now) {
		t.logger.Info("client expired", "client_id", c.ClientID(), "last_heartbeat", c.LastHeartbeat())
		if t.manager.ClientDisconnected(c.ClientID()) {
			t.metrics.ClientExpired(c.Kind())
		}
		return
	}

	changed := false
	for _, svc := range c.ExpiredServices(now, t.cfg.InstanceDeleteTimeout) {
		if _, ok := c.RemoveServiceInstance(svc); ok {
			t.logger.Info("instance expired", "client_id", c.ClientID(), "service", svc.String())
			t.publisher.Publish(client.ServiceEvent{
				Type:     client.EventServiceDeregistered,
				Service:  svc,
				ClientID: c.ClientID(),
			})
			changed = true
		}
	}
	for _, svc := range c.UnhealthyCandidates(now, t.cfg.HeartbeatTimeout) {
		if c.MarkUnhealthy(svc) {
			t.logger.Info("instance unhealthy", "client_id", c.ClientID(), "service", svc.String())
			changed = true
		}
	}
	if changed {
		t.publisher.Publish(client.ChangedEvent{Client: c})
	}
}
