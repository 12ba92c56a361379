package distro

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/infra/schedule"
	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

const testType = "test:resource"

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("timers not registered: %v", err)
	}
}

func newTestScheduler(t *testing.T) (*schedule.Scheduler, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s := schedule.New(schedule.Config{Name: "distro-test", Workers: 2, Clock: clock, Logger: logger.Nop()})
	t.Cleanup(s.Stop)
	return s, clock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Logger = logger.Nop()
	return cfg
}

type staticMembers struct {
	mu    sync.Mutex
	self  string
	peers []string
}

func newMembers(self string, peers ...string) *staticMembers {
	return &staticMembers{self: self, peers: peers}
}

func (m *staticMembers) Self() string { return m.self }

func (m *staticMembers) AllMembersWithoutSelf() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.peers)
}

func (m *staticMembers) HasMember(addr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return addr == m.self || slices.Contains(m.peers, addr)
}

func (m *staticMembers) remove(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers = slices.DeleteFunc(m.peers, func(p string) bool { return p == addr })
}

type sent struct {
	data   Data
	target string
}

// recordingAgent records every outbound call. failSync makes the next n
// SyncDataWithCallback calls fail.
type recordingAgent struct {
	mu       sync.Mutex
	syncs    []sent
	verifies []sent
	failSync int
	remote   map[string]Data // resource key -> data served by GetData
	snapshot *Data
	queries  []Key
}

func newRecordingAgent() *recordingAgent {
	return &recordingAgent{remote: make(map[string]Data)}
}

func (a *recordingAgent) SyncData(_ context.Context, data Data, target string) bool {
	ok := true
	a.SyncDataWithCallback(context.Background(), data, target, CallbackFuncs{Failed: func(error) { ok = false }})
	return ok
}

func (a *recordingAgent) SyncDataWithCallback(_ context.Context, data Data, target string, cb Callback) {
	a.mu.Lock()
	a.syncs = append(a.syncs, sent{data: data, target: target})
	fail := a.failSync > 0
	if fail {
		a.failSync--
	}
	a.mu.Unlock()

	if fail {
		cb.OnFailed(errors.New("connection refused"))
		return
	}
	cb.OnSuccess()
}

func (a *recordingAgent) SyncVerifyData(_ context.Context, data Data, target string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verifies = append(a.verifies, sent{data: data, target: target})
	return true
}

func (a *recordingAgent) SyncVerifyDataWithCallback(ctx context.Context, data Data, target string, cb Callback) {
	if a.SyncVerifyData(ctx, data, target) {
		cb.OnSuccess()
	}
}

func (a *recordingAgent) GetData(_ context.Context, key Key, _ string) (Data, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, key)
	d, ok := a.remote[key.ResourceKey]
	if !ok {
		return Data{}, domain.ErrDistroTransport.WithDetails("not found")
	}
	return d, nil
}

func (a *recordingAgent) GetDatumSnapshot(_ context.Context, _ string) (Data, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.snapshot == nil {
		return Data{}, domain.ErrDistroTransport.WithDetails("no snapshot")
	}
	return *a.snapshot, nil
}

func (a *recordingAgent) syncCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.syncs)
}

func (a *recordingAgent) syncsCopy() []sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.syncs)
}

func (a *recordingAgent) verifyCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.verifies)
}

func (a *recordingAgent) verifiesCopy() []sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.verifies)
}

func (a *recordingAgent) queryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queries)
}

func (a *recordingAgent) setSnapshot(d Data) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot = &d
}

// mapStorage serves records from a map of resource key -> content.
type mapStorage struct {
	mu      sync.Mutex
	rt      string
	records map[string]string
	panics  bool
	err     error
}

func newMapStorage(rt string, kv ...string) *mapStorage {
	s := &mapStorage{rt: rt, records: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		s.records[kv[i]] = kv[i+1]
	}
	return s
}

func (s *mapStorage) GetDistroData(key Key) (Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key.ResourceKey]
	if !ok {
		return Data{}, false
	}
	return NewData(NewKey(key.ResourceKey, s.rt), OpChange, []byte(v)), true
}

func (s *mapStorage) GetDatumSnapshot() (Data, error) {
	return NewData(Key{ResourceType: s.rt}, OpSnapshot, []byte("snapshot")), nil
}

func (s *mapStorage) GetVerifyData() ([]Data, error) {
	if s.panics {
		panic("storage exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Data, 0, len(keys))
	for _, k := range keys {
		out = append(out, NewData(NewKey(k, s.rt), OpVerify, []byte(s.records[k])))
	}
	return out, nil
}

// mapProcessor applies data into a map and verifies by content equality.
type mapProcessor struct {
	mu        sync.Mutex
	rt        string
	records   map[string]string
	snapshots int
	panics    bool
}

func newMapProcessor(rt string) *mapProcessor {
	return &mapProcessor{rt: rt, records: make(map[string]string)}
}

func (p *mapProcessor) ProcessType() string { return p.rt }

func (p *mapProcessor) ProcessData(data Data) bool {
	if p.panics {
		panic("processor exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if data.Type == OpDelete {
		delete(p.records, data.Key.ResourceKey)
		return true
	}
	p.records[data.Key.ResourceKey] = string(data.Content)
	return true
}

func (p *mapProcessor) ProcessVerifyData(data Data, _ string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.records[data.Key.ResourceKey]
	return ok && v == string(data.Content)
}

func (p *mapProcessor) ProcessSnapshot(Data) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
	return true
}

func (p *mapProcessor) get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.records[key]
	return v, ok
}

func (p *mapProcessor) set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[key] = value
}
