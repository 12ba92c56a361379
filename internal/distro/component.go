package distro

import (
	"context"
	"slices"
	"sync"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// DataStorage produces the local data of one resource type.
type DataStorage interface {
	// GetDistroData returns the current full record for key, or ok=false
	// when the key is unknown locally.
	GetDistroData(key Key) (data Data, ok bool)

	// GetDatumSnapshot returns every record this node holds, used for a
	// peer's initial load.
	GetDatumSnapshot() (Data, error)

	// GetVerifyData returns one VERIFY record per key this node owns.
	GetVerifyData() ([]Data, error)
}

// DataProcessor applies data received from peers.
type DataProcessor interface {
	ProcessType() string

	// ProcessData applies an ADD, CHANGE or DELETE record.
	ProcessData(data Data) bool

	// ProcessVerifyData checks one verify record sent by source. false
	// means the local copy is missing or stale.
	ProcessVerifyData(data Data, source string) bool

	// ProcessSnapshot applies a full snapshot from a peer.
	ProcessSnapshot(data Data) bool
}

// Callback receives the outcome of an asynchronous send.
type Callback interface {
	OnSuccess()

	// OnFailed is called with a nil error when the target was not
	// reachable at all.
	OnFailed(err error)
}

// CallbackFuncs adapts two functions to Callback.
type CallbackFuncs struct {
	Success func()
	Failed  func(err error)
}

func (c CallbackFuncs) OnSuccess() {
	if c.Success != nil {
		c.Success()
	}
}

func (c CallbackFuncs) OnFailed(err error) {
	if c.Failed != nil {
		c.Failed(err)
	}
}

// TransportAgent carries data of one resource type to peers.
type TransportAgent interface {
	SyncData(ctx context.Context, data Data, target string) bool
	SyncDataWithCallback(ctx context.Context, data Data, target string, cb Callback)
	SyncVerifyData(ctx context.Context, data Data, target string) bool
	SyncVerifyDataWithCallback(ctx context.Context, data Data, target string, cb Callback)

	// GetData pulls the full record for key from target.
	GetData(ctx context.Context, key Key, target string) (Data, error)

	// GetDatumSnapshot pulls target's full snapshot.
	GetDatumSnapshot(ctx context.Context, target string) (Data, error)
}

// ComponentHolder maps resource types to their handlers. Lookup is an
// exact match on the resource type. Registration is idempotent and the
// last registration for a type wins.
type ComponentHolder struct {
	storages   sync.Map // string -> DataStorage
	agents     sync.Map // string -> TransportAgent
	processors sync.Map // string -> DataProcessor
}

// NewComponentHolder creates an empty holder.
func NewComponentHolder() *ComponentHolder {
	return &ComponentHolder{}
}

func (h *ComponentHolder) RegisterDataStorage(resourceType string, s DataStorage) {
	h.storages.Store(resourceType, s)
}

func (h *ComponentHolder) RegisterTransportAgent(resourceType string, a TransportAgent) {
	h.agents.Store(resourceType, a)
}

// RegisterDataProcessor registers p under its own ProcessType.
func (h *ComponentHolder) RegisterDataProcessor(p DataProcessor) {
	h.processors.Store(p.ProcessType(), p)
}

func (h *ComponentHolder) FindDataStorage(resourceType string) (DataStorage, error) {
	v, ok := h.storages.Load(resourceType)
	if !ok {
		return nil, domain.ErrHandlerNotFound.WithDetails("data storage for " + resourceType)
	}
	return v.(DataStorage), nil
}

func (h *ComponentHolder) FindTransportAgent(resourceType string) (TransportAgent, error) {
	v, ok := h.agents.Load(resourceType)
	if !ok {
		return nil, domain.ErrHandlerNotFound.WithDetails("transport agent for " + resourceType)
	}
	return v.(TransportAgent), nil
}

func (h *ComponentHolder) FindDataProcessor(resourceType string) (DataProcessor, error) {
	v, ok := h.processors.Load(resourceType)
	if !ok {
		return nil, domain.ErrHandlerNotFound.WithDetails("data processor for " + resourceType)
	}
	return v.(DataProcessor), nil
}

// DataStorageTypes returns the registered storage types in sorted order.
func (h *ComponentHolder) DataStorageTypes() []string {
	var types []string
	h.storages.Range(func(k, _ any) bool {
		types = append(types, k.(string))
		return true
	})
	slices.Sort(types)
	return types
}
