package clientmanager

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/infra/notify"
	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(e notify.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return true
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type staticResponsibility map[string]bool

func (s staticResponsibility) Responsible(key string) bool { return s[key] }

type fakeHandle struct{ cancelled bool }

func (h *fakeHandle) Cancel() bool {
	was := h.cancelled
	h.cancelled = true
	return !was
}

type fakeChecker struct {
	scheduled []string
	handles   []*fakeHandle
}

func (f *fakeChecker) ScheduleCheck(c *client.IPPortBasedClient) client.Cancellable {
	f.scheduled = append(f.scheduled, c.ClientID())
	h := &fakeHandle{}
	f.handles = append(f.handles, h)
	return h
}

type fixture struct {
	clock    *clockwork.FakeClock
	pub      *recordingPublisher
	resp     staticResponsibility
	checker  *fakeChecker
	delegate *Delegate
}

func newFixture() *fixture {
	f := &fixture{
		clock:   clockwork.NewFakeClock(),
		pub:     &recordingPublisher{},
		resp:    staticResponsibility{},
		checker: &fakeChecker{},
	}
	cfg := Config{
		ConnectionClientTTL: time.Minute,
		ClientExpiredTime:   30 * time.Second,
		Clock:               f.clock,
		Logger:              logger.Nop(),
	}
	conn := NewConnectionBasedManager(cfg, f.pub)
	ipPort := NewEphemeralIPPortManager(cfg, f.pub, f.resp)
	ipPort.SetHealthChecker(f.checker)
	f.delegate = NewDelegate(conn, ipPort)
	return f
}

const (
	connID   = "01J0CONNECTION0000000000000"
	ipPortID = "10.0.0.1:8080#true"
)

func TestDelegate_RoutesByID(t *testing.T) {
	f := newFixture()

	if !f.delegate.ClientConnectedID(connID, client.Attributes{}) {
		t.Fatal("connect connection client failed")
	}
	if !f.delegate.ClientConnectedID(ipPortID, client.Attributes{}) {
		t.Fatal("connect ip-port client failed")
	}

	if !f.delegate.Connection().Contains(connID) || f.delegate.IPPort().Contains(connID) {
		t.Error("connection client routed to the wrong manager")
	}
	if !f.delegate.IPPort().Contains(ipPortID) || f.delegate.Connection().Contains(ipPortID) {
		t.Error("ip-port client routed to the wrong manager")
	}

	c, ok := f.delegate.GetClient(ipPortID)
	if !ok || c.Kind() != client.KindIPPort {
		t.Errorf("GetClient(ip-port) = %v, %v", c, ok)
	}

	ids := f.delegate.AllClientID()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != connID || ids[1] != ipPortID {
		t.Errorf("AllClientID() = %v", ids)
	}
}

func TestDelegate_NotFoundIsExplicit(t *testing.T) {
	f := newFixture()

	if c, ok := f.delegate.GetClient("missing"); ok || c != nil {
		t.Errorf("GetClient(missing) = %v, %v", c, ok)
	}
	if c, ok := f.delegate.GetClient("10.9.9.9:1#true"); ok || c != nil {
		t.Errorf("GetClient(missing ip-port) = %v, %v", c, ok)
	}
	if f.delegate.Contains("missing") {
		t.Error("Contains(missing) = true")
	}
	if f.delegate.ClientDisconnected("missing") {
		t.Error("ClientDisconnected(missing) = true")
	}
	if f.delegate.VerifyClient(client.VerifyInfo{ClientID: "missing"}) {
		t.Error("VerifyClient(missing) = true")
	}
}

func TestDelegate_DuplicateConnect(t *testing.T) {
	f := newFixture()
	f.delegate.ClientConnectedID(connID, client.Attributes{})
	if f.delegate.ClientConnectedID(connID, client.Attributes{}) {
		t.Error("second connect with the same id succeeded")
	}
	if got := len(f.pub.types()); got != 1 {
		t.Errorf("published %d events, want 1", got)
	}
}

func TestConnectionManager_Lifecycle(t *testing.T) {
	f := newFixture()
	f.delegate.ClientConnectedID(connID, client.Attributes{})
	f.delegate.SyncClientConnected("replica-1", client.Attributes{Revision: 5})

	native, _ := f.delegate.GetClient(connID)
	replica, _ := f.delegate.GetClient("replica-1")
	if !f.delegate.IsResponsibleClient(native) {
		t.Error("native connection client not responsible")
	}
	if f.delegate.IsResponsibleClient(replica) {
		t.Error("synced connection client responsible")
	}
	if replica.Revision() != 5 {
		t.Errorf("replica revision = %d, want 5", replica.Revision())
	}

	if !f.delegate.ClientDisconnected(connID) {
		t.Fatal("ClientDisconnected() = false")
	}
	if !native.Released() {
		t.Error("disconnected client not released")
	}

	types := f.pub.types()
	want := []string{client.EventConnected, client.EventConnected, client.EventDisconnected}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, types[i], want[i])
		}
	}
	if ev := f.pub.events[2].(client.DisconnectedEvent); !ev.Native {
		t.Error("disconnect of native client not flagged native")
	}
}

func TestConnectionManager_VerifyRenewsReplica(t *testing.T) {
	f := newFixture()
	f.delegate.SyncClientConnected("replica-1", client.Attributes{Revision: 3})

	f.clock.Advance(50 * time.Second)
	if f.delegate.VerifyClient(client.VerifyInfo{ClientID: "replica-1", Revision: 4}) {
		t.Fatal("verify with mismatched revision succeeded")
	}
	if !f.delegate.VerifyClient(client.VerifyInfo{ClientID: "replica-1", Revision: 3}) {
		t.Fatal("verify with matching revision failed")
	}

	f.clock.Advance(50 * time.Second)
	if ids := f.delegate.ExpiredClients(f.clock.Now()); len(ids) != 0 {
		t.Errorf("renewed replica expired: %v", ids)
	}
	f.clock.Advance(11 * time.Second)
	if ids := f.delegate.ExpiredClients(f.clock.Now()); len(ids) != 1 || ids[0] != "replica-1" {
		t.Errorf("ExpiredClients() = %v, want [replica-1]", ids)
	}
}

func TestIPPortManager_ResponsibilityAndHealthCheck(t *testing.T) {
	f := newFixture()
	f.resp["10.0.0.1:8080"] = true

	f.delegate.ClientConnectedID(ipPortID, client.Attributes{})
	f.delegate.ClientConnectedID("10.0.0.2:8080#true", client.Attributes{})

	owned, _ := f.delegate.GetClient(ipPortID)
	other, _ := f.delegate.GetClient("10.0.0.2:8080#true")
	if !f.delegate.IsResponsibleClient(owned) || f.delegate.IsResponsibleClient(other) {
		t.Error("responsibility not decided by the ring")
	}

	if len(f.checker.scheduled) != 2 {
		t.Fatalf("scheduled %d beat checks, want 2", len(f.checker.scheduled))
	}

	f.delegate.ClientDisconnected(ipPortID)
	if !f.checker.handles[0].cancelled {
		t.Error("disconnect did not cancel the beat check")
	}
}

func TestIPPortManager_RejectsInvalid(t *testing.T) {
	f := newFixture()
	if f.delegate.IPPort().ClientConnectedID("10.0.0.1#true", client.Attributes{}) {
		t.Error("client with malformed address accepted")
	}
	if f.delegate.ClientConnectedID("10.0.0.1:80#false", client.Attributes{}) {
		t.Error("persistent client accepted")
	}
	conn := client.NewConnectionBasedClient("c", true, 0, 0, client.Options{Logger: logger.Nop()})
	if f.delegate.IPPort().ClientConnected(conn) {
		t.Error("connection client accepted by ip-port manager")
	}
}

func TestIPPortManager_VerifyRefreshesHeartbeat(t *testing.T) {
	f := newFixture()
	f.delegate.SyncClientConnected(ipPortID, client.Attributes{Revision: 2})
	c, _ := f.delegate.IPPort().GetIPPortClient(ipPortID)
	c.AddServiceInstance(domain.NewService("", "", "orders"), domain.NewInstancePublishInfo("10.0.0.1", 8080))
	c.SetRevision(2)

	f.clock.Advance(25 * time.Second)
	if !f.delegate.VerifyClient(client.VerifyInfo{ClientID: ipPortID, Revision: 2}) {
		t.Fatal("verify failed")
	}
	f.clock.Advance(25 * time.Second)
	if ids := f.delegate.ExpiredClients(f.clock.Now()); len(ids) != 0 {
		t.Errorf("verified replica expired: %v", ids)
	}
	f.clock.Advance(6 * time.Second)
	if ids := f.delegate.ExpiredClients(f.clock.Now()); len(ids) != 1 {
		t.Errorf("ExpiredClients() = %v, want the silent replica", ids)
	}

	f.resp["10.0.0.1:8080"] = true
	if ids := f.delegate.ExpiredClients(f.clock.Now()); len(ids) != 0 {
		t.Errorf("owned client reported by the replica sweeper: %v", ids)
	}
}

func TestDelegate_RemoveIfExpired(t *testing.T) {
	f := newFixture()
	f.delegate.SyncClientConnected("replica-1", client.Attributes{})
	f.delegate.SyncClientConnected(ipPortID, client.Attributes{})
	f.delegate.ClientConnectedID("10.0.0.3:8080#true", client.Attributes{})
	f.resp["10.0.0.3:8080"] = true

	f.clock.Advance(2 * time.Minute)
	listed := f.clock.Now()

	// Renewed after the sweep listed it: the stale decision must not win.
	f.delegate.VerifyClient(client.VerifyInfo{ClientID: "replica-1"})
	if f.delegate.RemoveIfExpired("replica-1", listed) {
		t.Error("renewed connection replica removed")
	}

	if f.delegate.RemoveIfExpired("10.0.0.3:8080#true", listed) {
		t.Error("owned ip-port client removed by the replica sweep")
	}
	if !f.delegate.RemoveIfExpired(ipPortID, listed) {
		t.Error("expired ip-port replica kept")
	}
	if f.delegate.Contains(ipPortID) {
		t.Error("removed replica still present")
	}
	if f.delegate.RemoveIfExpired("unknown", listed) {
		t.Error("RemoveIfExpired() = true for unknown id")
	}
}
