package operation

import (
	"cmp"
	"slices"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// InstanceView is an instance together with the client publishing it.
type InstanceView struct {
	ClientID string `json:"client_id"`
	domain.InstancePublishInfo
}

// ListInstances returns the enabled instances of svc known to this node,
// replicas included. healthyOnly drops unhealthy ones.
func (s *Service) ListInstances(svc domain.Service, healthyOnly bool) ([]InstanceView, error) {
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	var out []InstanceView
	for _, id := range s.index.Publishers(svc) {
		c, ok := s.manager.GetClient(id)
		if !ok {
			continue
		}
		inst, ok := c.GetInstancePublishInfo(svc)
		if !ok || !inst.Enabled || (healthyOnly && !inst.Healthy) {
			continue
		}
		out = append(out, InstanceView{ClientID: id, InstancePublishInfo: inst})
	}
	slices.SortFunc(out, func(a, b InstanceView) int {
		return cmp.Compare(a.Address(), b.Address())
	})
	return out, nil
}

// ListServices returns the services with a publisher in namespace.
func (s *Service) ListServices(namespace string) []domain.Service {
	return s.index.Services(namespace)
}

// Subscribers returns the ids of clients subscribed to svc.
func (s *Service) Subscribers(svc domain.Service) []string {
	return s.index.Subscribers(svc)
}

// ClientView describes one client.
type ClientView struct {
	ClientID    string                `json:"client_id"`
	Kind        client.Kind           `json:"kind"`
	Ephemeral   bool                  `json:"ephemeral"`
	Responsible bool                  `json:"responsible"`
	Revision    uint64                `json:"revision"`
	LastUpdated int64                 `json:"last_updated"`
	Publishers  []client.PublishEntry `json:"publishers"`
	Subscribed  []domain.Service      `json:"subscribed,omitempty"`
}

// ListClients returns every client id held by this node.
func (s *Service) ListClients() []string {
	ids := s.manager.AllClientID()
	slices.Sort(ids)
	return ids
}

// GetClient describes one client.
func (s *Service) GetClient(clientID string) (ClientView, error) {
	c, ok := s.manager.GetClient(clientID)
	if !ok {
		return ClientView{}, domain.ErrClientNotFound.WithDetails(clientID)
	}
	data := c.GenerateSyncData()
	return ClientView{
		ClientID:    c.ClientID(),
		Kind:        c.Kind(),
		Ephemeral:   c.IsEphemeral(),
		Responsible: s.manager.IsResponsibleClient(c),
		Revision:    data.Revision,
		LastUpdated: c.LastUpdatedTime().UnixMilli(),
		Publishers:  data.Publishers,
		Subscribed:  c.AllSubscribedServices(),
	}, nil
}
