package index

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/infra/notify"
)

type clientSet map[string]struct{}

// Index is a notify.Subscriber keeping service -> client id sets.
type Index struct {
	logger *slog.Logger

	mu          sync.RWMutex
	publishers  map[domain.Service]clientSet
	subscribers map[domain.Service]clientSet
}

var _ notify.Subscriber = (*Index)(nil)

// New creates an empty index. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		logger:      logger.With("component", "service_index"),
		publishers:  make(map[domain.Service]clientSet),
		subscribers: make(map[domain.Service]clientSet),
	}
}

func (x *Index) SubscribeTypes() []string {
	return []string{
		client.EventServiceRegistered,
		client.EventServiceDeregistered,
		client.EventServiceSubscribed,
		client.EventServiceUnsubscribed,
		client.EventDisconnected,
	}
}

func (x *Index) OnEvent(e notify.Event) {
	switch ev := e.(type) {
	case client.ServiceEvent:
		switch ev.Type {
		case client.EventServiceRegistered:
			x.add(x.publishers, ev.Service, ev.ClientID)
		case client.EventServiceDeregistered:
			x.remove(x.publishers, ev.Service, ev.ClientID)
		case client.EventServiceSubscribed:
			x.add(x.subscribers, ev.Service, ev.ClientID)
		case client.EventServiceUnsubscribed:
			x.remove(x.subscribers, ev.Service, ev.ClientID)
		}
	case client.DisconnectedEvent:
		x.RemoveClient(ev.Client.ClientID())
	}
}

func (x *Index) add(m map[domain.Service]clientSet, svc domain.Service, clientID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	set, ok := m[svc]
	if !ok {
		set = make(clientSet)
		m[svc] = set
	}
	set[clientID] = struct{}{}
}

func (x *Index) remove(m map[domain.Service]clientSet, svc domain.Service, clientID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	removeLocked(m, svc, clientID)
}

func removeLocked(m map[domain.Service]clientSet, svc domain.Service, clientID string) {
	set, ok := m[svc]
	if !ok {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(m, svc)
	}
}

// RemoveClient drops clientID from every service. Events for a released
// client can arrive after its disconnect, so the index never trusts the
// client's own service lists here.
func (x *Index) RemoveClient(clientID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for _, m := range []map[domain.Service]clientSet{x.publishers, x.subscribers} {
		for svc, set := range m {
			if _, ok := set[clientID]; ok {
				removeLocked(m, svc, clientID)
				n++
			}
		}
	}
	if n > 0 {
		x.logger.Debug("client removed from index", "client_id", clientID, "services", n)
	}
}

// Publishers returns the ids of clients publishing svc, sorted.
func (x *Index) Publishers(svc domain.Service) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Sorted(maps.Keys(x.publishers[svc]))
}

// Subscribers returns the ids of clients subscribing svc, sorted.
func (x *Index) Subscribers(svc domain.Service) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Sorted(maps.Keys(x.subscribers[svc]))
}

// Services returns every service with at least one publisher in namespace.
// An empty namespace matches all.
func (x *Index) Services(namespace string) []domain.Service {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []domain.Service
	for svc := range x.publishers {
		if namespace == "" || svc.Namespace == namespace {
			out = append(out, svc)
		}
	}
	slices.SortFunc(out, func(a, b domain.Service) int {
		return cmp.Compare(a.String(), b.String())
	})
	return out
}
