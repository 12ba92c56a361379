package operation

import (
	"context"
	"log/slog"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/clientmanager"
	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// Router locates the node responsible for a key. *mapper.Mapper
// implements it.
type Router interface {
	Responsible(key string) bool
	MapServer(key string) string
}

// Index lists the clients of a service. *index.Index implements it.
type Index interface {
	Publishers(svc domain.Service) []string
	Subscribers(svc domain.Service) []string
	Services(namespace string) []domain.Service
}

// Service is the naming operation service.
type Service struct {
	manager   clientmanager.Manager
	router    Router
	index     Index
	publisher clientmanager.Publisher
	logger    *slog.Logger
}

// New creates a Service. A nil logger uses slog.Default().
func New(manager clientmanager.Manager, router Router, index Index, publisher clientmanager.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		manager:   manager,
		router:    router,
		index:     index,
		publisher: publisher,
		logger:    logger.With("component", "naming_operation"),
	}
}

// InstanceRequest addresses one instance of a service.
type InstanceRequest struct {
	Service  domain.Service
	Instance domain.InstancePublishInfo

	// ConnectionID selects a connection client instead of the ip-port
	// client derived from the instance address.
	ConnectionID string
}

func (r InstanceRequest) validate() error {
	if err := r.Service.Validate(); err != nil {
		return err
	}
	return r.Instance.Validate()
}

// Connect registers a native connection client.
func (s *Service) Connect(_ context.Context, connectionID string) error {
	if connectionID == "" {
		return domain.ErrMissingArgument.WithDetails("connection id is required")
	}
	if client.IsIPPortClientID(connectionID) {
		return domain.ErrInvalidArgument.WithDetails("connection id must not contain " + client.IDSeparator)
	}
	if !s.manager.ClientConnectedID(connectionID, client.Attributes{}) {
		s.logger.Debug("connection already registered", "client_id", connectionID)
	}
	return nil
}

// Disconnect removes a connection client and everything it published.
func (s *Service) Disconnect(_ context.Context, connectionID string) error {
	if !s.manager.ClientDisconnected(connectionID) {
		return domain.ErrClientNotFound.WithDetails(connectionID)
	}
	return nil
}

// RegisterInstance publishes req.Instance for req.Service and returns the
// id of the client holding it. The ip-port client is created on first use.
func (s *Service) RegisterInstance(_ context.Context, req InstanceRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	c, err := s.writableClient(req, true)
	if err != nil {
		return "", err
	}
	if !c.AddServiceInstance(req.Service, req.Instance) {
		return "", domain.ErrClientRemoved.WithDetails(c.ClientID())
	}
	s.publisher.Publish(client.ServiceEvent{
		Type:     client.EventServiceRegistered,
		Service:  req.Service,
		ClientID: c.ClientID(),
	})
	s.publisher.Publish(client.ChangedEvent{Client: c})
	s.logger.Info("instance registered",
		"client_id", c.ClientID(),
		"service", req.Service.String(),
		"address", req.Instance.Address(),
	)
	return c.ClientID(), nil
}

// DeregisterInstance withdraws the instance. An ip-port client left with
// nothing published stays until its heartbeat expires.
func (s *Service) DeregisterInstance(_ context.Context, req InstanceRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	c, err := s.writableClient(req, false)
	if err != nil {
		return err
	}
	if _, ok := c.RemoveServiceInstance(req.Service); !ok {
		return domain.ErrInstanceNotFound.WithDetails(req.Service.String())
	}
	s.publisher.Publish(client.ServiceEvent{
		Type:     client.EventServiceDeregistered,
		Service:  req.Service,
		ClientID: c.ClientID(),
	})
	s.publisher.Publish(client.ChangedEvent{Client: c})
	s.logger.Info("instance deregistered", "client_id", c.ClientID(), "service", req.Service.String())
	return nil
}

// Beat renews an ip-port instance. An instance turned healthy again is
// replicated; a plain renewal is not, peers learn of it through verify.
func (s *Service) Beat(_ context.Context, req InstanceRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	req.ConnectionID = ""
	c, err := s.writableClient(req, false)
	if err != nil {
		return err
	}
	ipc, ok := c.(*client.IPPortBasedClient)
	if !ok {
		return domain.ErrInvalidArgument.WithDetails("heartbeats apply to ip-port clients only")
	}
	changed, found := ipc.Heartbeat(req.Service)
	if !found {
		return domain.ErrInstanceNotFound.WithDetails(req.Service.String())
	}
	if changed {
		s.publisher.Publish(client.ChangedEvent{Client: ipc})
	}
	return nil
}

// SubscribeRequest subscribes the client identified by Subscriber's
// address, or by ConnectionID, to Service.
type SubscribeRequest struct {
	Service      domain.Service
	Subscriber   domain.Subscriber
	ConnectionID string
}

// Subscribe records the subscription. The subscriber list itself stays on
// the node holding the client; the client change is still published so
// replicas pick up the new revision.
func (s *Service) Subscribe(_ context.Context, req SubscribeRequest) error {
	c, err := s.subscriberClient(req, true)
	if err != nil {
		return err
	}
	if !c.AddServiceSubscriber(req.Service, req.Subscriber) {
		return domain.ErrClientRemoved.WithDetails(c.ClientID())
	}
	s.publisher.Publish(client.ServiceEvent{
		Type:     client.EventServiceSubscribed,
		Service:  req.Service,
		ClientID: c.ClientID(),
	})
	s.publisher.Publish(client.ChangedEvent{Client: c})
	return nil
}

// Unsubscribe drops the subscription.
func (s *Service) Unsubscribe(_ context.Context, req SubscribeRequest) error {
	c, err := s.subscriberClient(req, false)
	if err != nil {
		return err
	}
	if !c.RemoveServiceSubscriber(req.Service) {
		return domain.ErrInstanceNotFound.WithDetails("no subscription to " + req.Service.String())
	}
	s.publisher.Publish(client.ServiceEvent{
		Type:     client.EventServiceUnsubscribed,
		Service:  req.Service,
		ClientID: c.ClientID(),
	})
	s.publisher.Publish(client.ChangedEvent{Client: c})
	return nil
}

func (s *Service) subscriberClient(req SubscribeRequest, create bool) (client.Client, error) {
	if err := req.Service.Validate(); err != nil {
		return nil, err
	}
	if req.ConnectionID == "" {
		inst := domain.NewInstancePublishInfo(req.Subscriber.IP, req.Subscriber.Port)
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		return s.writableClient(InstanceRequest{Service: req.Service, Instance: inst}, create)
	}
	return s.writableClient(InstanceRequest{Service: req.Service, ConnectionID: req.ConnectionID}, create)
}

// writableClient resolves the client a write applies to. Connection
// clients must already exist; ip-port clients are created when create is
// set and this node owns the address.
func (s *Service) writableClient(req InstanceRequest, create bool) (client.Client, error) {
	if req.ConnectionID != "" {
		c, ok := s.manager.GetClient(req.ConnectionID)
		if !ok {
			return nil, domain.ErrClientNotFound.WithDetails(req.ConnectionID)
		}
		if !s.manager.IsResponsibleClient(c) {
			return nil, domain.ErrNotResponsible.WithDetails("connection is held by another node")
		}
		return c, nil
	}

	addr := req.Instance.Address()
	if !s.router.Responsible(addr) {
		return nil, domain.ErrNotResponsible.WithDetails(s.router.MapServer(addr))
	}
	id := client.IPPortClientID(addr, true)
	if c, ok := s.manager.GetClient(id); ok {
		return c, nil
	}
	if !create {
		return nil, domain.ErrClientNotFound.WithDetails(id)
	}
	s.manager.ClientConnectedID(id, client.Attributes{})
	c, ok := s.manager.GetClient(id)
	if !ok {
		return nil, domain.ErrInternalServer.WithDetails("client vanished after connect: " + id)
	}
	return c, nil
}
