package client

import (
	"cmp"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// Kind distinguishes client implementations.
type Kind string

const (
	KindConnection Kind = "connection"
	KindIPPort     Kind = "ipport"
)

// Client is an ephemeral registry client.
type Client interface {
	ClientID() string
	Kind() Kind
	IsEphemeral() bool
	LastUpdatedTime() time.Time

	AddServiceInstance(svc domain.Service, inst domain.InstancePublishInfo) bool
	RemoveServiceInstance(svc domain.Service) (domain.InstancePublishInfo, bool)
	GetInstancePublishInfo(svc domain.Service) (domain.InstancePublishInfo, bool)
	AllPublishedServices() []domain.Service

	AddServiceSubscriber(svc domain.Service, sub domain.Subscriber) bool
	RemoveServiceSubscriber(svc domain.Service) bool
	GetSubscriber(svc domain.Service) (domain.Subscriber, bool)
	AllSubscribedServices() []domain.Service

	// GenerateSyncData captures the replicated state.
	GenerateSyncData() SyncData

	// IsExpire reports whether the client should be removed at now.
	IsExpire(now time.Time) bool

	Revision() uint64
	SetRevision(rev uint64)

	// Release moves the client to its terminal state.
	Release()
	Released() bool
}

// Cancellable is a scheduled task attached to a client.
type Cancellable interface {
	Cancel() bool
}

// Options are shared by the client constructors.
type Options struct {
	Clock  clockwork.Clock
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// base holds the state common to every client kind. All fields are guarded
// by mu; mutations are serialized per client.
type base struct {
	id        string
	ephemeral bool
	clock     clockwork.Clock
	logger    *slog.Logger

	mu          sync.RWMutex
	publishers  map[domain.Service]domain.InstancePublishInfo
	subscribers map[domain.Service]domain.Subscriber
	lastUpdated time.Time
	revision    uint64
	released    bool
}

func newBase(id string, ephemeral bool, revision uint64, opts Options) *base {
	opts = opts.withDefaults()
	return &base{
		id:          id,
		ephemeral:   ephemeral,
		clock:       opts.Clock,
		logger:      opts.Logger,
		publishers:  make(map[domain.Service]domain.InstancePublishInfo),
		subscribers: make(map[domain.Service]domain.Subscriber),
		lastUpdated: opts.Clock.Now(),
		revision:    revision,
	}
}

func (b *base) ClientID() string  { return b.id }
func (b *base) IsEphemeral() bool { return b.ephemeral }

func (b *base) LastUpdatedTime() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdated
}

// touchLocked records a mutation. Caller holds mu.
func (b *base) touchLocked() {
	b.revision++
	b.lastUpdated = b.clock.Now()
}

// rejectLocked logs and reports whether the client is released. Caller
// holds mu.
func (b *base) rejectLocked(op string) bool {
	if !b.released {
		return false
	}
	b.logger.Warn("ignoring operation on released client", "client_id", b.id, "op", op)
	return true
}

func (b *base) addServiceInstance(svc domain.Service, inst domain.InstancePublishInfo) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectLocked("add_instance") {
		return false
	}
	b.publishers[svc] = inst.Clone()
	b.touchLocked()
	return true
}

func (b *base) RemoveServiceInstance(svc domain.Service) (domain.InstancePublishInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectLocked("remove_instance") {
		return domain.InstancePublishInfo{}, false
	}
	inst, ok := b.publishers[svc]
	if !ok {
		return domain.InstancePublishInfo{}, false
	}
	delete(b.publishers, svc)
	b.touchLocked()
	return inst, true
}

func (b *base) GetInstancePublishInfo(svc domain.Service) (domain.InstancePublishInfo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	inst, ok := b.publishers[svc]
	if !ok {
		return domain.InstancePublishInfo{}, false
	}
	return inst.Clone(), true
}

func (b *base) AllPublishedServices() []domain.Service {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedServices(maps.Keys(b.publishers))
}

func (b *base) AddServiceSubscriber(svc domain.Service, sub domain.Subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectLocked("add_subscriber") {
		return false
	}
	b.subscribers[svc] = sub
	b.touchLocked()
	return true
}

func (b *base) RemoveServiceSubscriber(svc domain.Service) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectLocked("remove_subscriber") {
		return false
	}
	if _, ok := b.subscribers[svc]; !ok {
		return false
	}
	delete(b.subscribers, svc)
	b.touchLocked()
	return true
}

func (b *base) GetSubscriber(svc domain.Service) (domain.Subscriber, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.subscribers[svc]
	return sub, ok
}

func (b *base) AllSubscribedServices() []domain.Service {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedServices(maps.Keys(b.subscribers))
}

func (b *base) GenerateSyncData() SyncData {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data := SyncData{
		ClientID:   b.id,
		Ephemeral:  b.ephemeral,
		Revision:   b.revision,
		Publishers: make([]PublishEntry, 0, len(b.publishers)),
	}
	for _, svc := range sortedServices(maps.Keys(b.publishers)) {
		data.Publishers = append(data.Publishers, PublishEntry{
			Service:  svc,
			Instance: b.publishers[svc].Clone(),
		})
	}
	return data
}

func (b *base) Revision() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}

func (b *base) SetRevision(rev uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revision = rev
}

func (b *base) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released
}

// release marks the client released and reports whether this call did it.
func (b *base) release() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return false
	}
	b.released = true
	return true
}

func sortedServices(seq iter.Seq[domain.Service]) []domain.Service {
	return slices.SortedFunc(seq, func(a, b domain.Service) int {
		return cmp.Or(
			cmp.Compare(a.Namespace, b.Namespace),
			cmp.Compare(a.Group, b.Group),
			cmp.Compare(a.Name, b.Name),
		)
	})
}
