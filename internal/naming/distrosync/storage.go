package distrosync

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/clientmanager"
	"github.com/yndnr/regmesh-go/internal/distro"
)

// ResourceType is the distro resource type of ephemeral clients.
const ResourceType = "regmesh:naming:client"

// Key returns the distro key of a client.
func Key(clientID string) distro.Key {
	return distro.NewKey(clientID, ResourceType)
}

// Storage serves local clients to the distro protocol.
type Storage struct {
	manager clientmanager.Manager
	logger  *slog.Logger
}

var _ distro.DataStorage = (*Storage)(nil)

// NewStorage creates a Storage over manager.
func NewStorage(manager clientmanager.Manager, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{manager: manager, logger: logger.With("component", "distro_client_storage")}
}

func (s *Storage) GetDistroData(key distro.Key) (distro.Data, bool) {
	c, ok := s.manager.GetClient(key.ResourceKey)
	if !ok || c.Released() || !c.IsEphemeral() {
		return distro.Data{}, false
	}
	content, err := c.GenerateSyncData().Marshal()
	if err != nil {
		s.logger.Error("encode client sync data failed", "client_id", key.ResourceKey, "error", err)
		return distro.Data{}, false
	}
	return distro.NewData(Key(c.ClientID()), distro.OpChange, content), true
}

// GetDatumSnapshot returns every ephemeral client this node holds, owned
// or replicated.
func (s *Storage) GetDatumSnapshot() (distro.Data, error) {
	var snap client.SnapshotData
	for _, id := range s.manager.AllClientID() {
		c, ok := s.manager.GetClient(id)
		if !ok || c.Released() || !c.IsEphemeral() {
			continue
		}
		snap.Clients = append(snap.Clients, c.GenerateSyncData())
	}
	content, err := json.Marshal(snap)
	if err != nil {
		return distro.Data{}, fmt.Errorf("encode client snapshot: %w", err)
	}
	return distro.NewData(distro.Key{ResourceType: ResourceType}, distro.OpSnapshot, content), nil
}

// GetVerifyData returns one verify record per client this node owns.
func (s *Storage) GetVerifyData() ([]distro.Data, error) {
	var out []distro.Data
	for _, id := range s.manager.AllClientID() {
		c, ok := s.manager.GetClient(id)
		if !ok || c.Released() || !c.IsEphemeral() || !s.manager.IsResponsibleClient(c) {
			continue
		}
		content, err := json.Marshal(client.VerifyInfo{ClientID: id, Revision: c.Revision()})
		if err != nil {
			return nil, fmt.Errorf("encode verify info: %w", err)
		}
		out = append(out, distro.NewData(Key(id), distro.OpVerify, content))
	}
	return out, nil
}
