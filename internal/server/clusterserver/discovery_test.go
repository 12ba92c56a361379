package clusterserver

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

func newTestDiscovery(t *testing.T, nodeID, rpcAddr string) *Discovery {
	t.Helper()
	d, err := NewDiscovery(DiscoveryConfig{
		NodeID:   nodeID,
		BindAddr: "127.0.0.1",
		BindPort: 0,
		RPCAddr:  rpcAddr,
		Logger:   logger.Nop(),
	})
	if err != nil {
		t.Fatalf("NewDiscovery failed: %v", err)
	}
	t.Cleanup(func() { d.Shutdown() })
	return d
}

func TestNewDiscovery(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		d := newTestDiscovery(t, "test-node", "127.0.0.1:7000")
		local := d.LocalMember()
		if local.NodeID != "test-node" {
			t.Errorf("node id = %q, want test-node", local.NodeID)
		}
		if local.Addr != "127.0.0.1:7000" {
			t.Errorf("rpc addr = %q, want 127.0.0.1:7000", local.Addr)
		}
		if local.State != NodeStateUp {
			t.Errorf("state = %q, want UP", local.State)
		}
	})

	t.Run("RequiresRPCAddr", func(t *testing.T) {
		if _, err := NewDiscovery(DiscoveryConfig{NodeID: "x", BindAddr: "127.0.0.1"}); err == nil {
			t.Error("expected error without rpc address")
		}
	})
}

func TestDiscovery_JoinPropagatesMembers(t *testing.T) {
	seed := newTestDiscovery(t, "seed", "127.0.0.1:7010")
	joiner := newTestDiscovery(t, "joiner", "127.0.0.1:7011")

	seedManager := NewMemberManager(seed.LocalMember(), logger.Nop())
	seedManager.Attach(seed)

	if err := joiner.Join([]string{seed.GossipAddr()}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !seedManager.HasMember("127.0.0.1:7011") {
		if time.Now().After(deadline) {
			t.Fatalf("seed never saw joiner, members = %v", seedManager.AllMembers())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := len(joiner.Members()); got != 2 {
		t.Errorf("joiner members = %d, want 2", got)
	}

	if err := joiner.Leave(); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	for seedManager.HasMember("127.0.0.1:7011") {
		if time.Now().After(deadline.Add(5 * time.Second)) {
			t.Fatal("seed kept the departed joiner")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDiscovery_JoinWithoutSeeds(t *testing.T) {
	d := newTestDiscovery(t, "alone", "127.0.0.1:7020")
	if err := d.Join(nil); err != nil {
		t.Errorf("Join(nil) = %v", err)
	}
	if got := len(d.Members()); got != 1 {
		t.Errorf("members = %d, want 1", got)
	}
}

func TestDiscovery_Callbacks(t *testing.T) {
	d := newTestDiscovery(t, "test-callbacks", "127.0.0.1:7040")

	var joined, updated, left Member
	d.Subscribe(MemberEvents{
		Join:   func(m Member) { joined = m },
		Update: func(m Member) { updated = m },
		Leave:  func(m Member) { left = m },
	})

	delegate, ok := d.config.Events.(*eventDelegate)
	if !ok {
		t.Fatal("expected eventDelegate")
	}

	meta, _ := json.Marshal(nodeMetadata{RPCAddr: "127.0.0.1:9000"})
	node := &memberlist.Node{
		Name:  "mock-node",
		Addr:  []byte{127, 0, 0, 1},
		Port:  8000,
		Meta:  meta,
		State: memberlist.StateAlive,
	}

	delegate.NotifyJoin(node)
	if joined.NodeID != "mock-node" || joined.Addr != "127.0.0.1:9000" || joined.GossipAddr != "127.0.0.1:8000" {
		t.Errorf("joined = %+v", joined)
	}

	node.State = memberlist.StateSuspect
	delegate.NotifyUpdate(node)
	if updated.State != NodeStateSuspicious {
		t.Errorf("updated state = %q, want SUSPICIOUS", updated.State)
	}

	node.State = memberlist.StateDead
	delegate.NotifyLeave(node)
	if left.Addr != "127.0.0.1:9000" || left.State != NodeStateDown {
		t.Errorf("left = %+v", left)
	}

	// a node without metadata falls back to its gossip address
	delegate.NotifyJoin(&memberlist.Node{Name: "bare", Addr: []byte{127, 0, 0, 2}, Port: 8001})
	if joined.Addr != "127.0.0.2:8001" {
		t.Errorf("fallback addr = %q", joined.Addr)
	}
}

func TestDiscovery_Shutdown(t *testing.T) {
	d := newTestDiscovery(t, "test-shutdown", "127.0.0.1:7050")
	if err := d.Shutdown(); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if err := d.Shutdown(); err != nil {
		t.Errorf("second Shutdown failed: %v", err)
	}
}

func TestMetadataDelegate(t *testing.T) {
	delegate := metadataDelegate(`{"rpc_addr":"127.0.0.1:7000"}`)

	if got := string(delegate.NodeMeta(512)); got != `{"rpc_addr":"127.0.0.1:7000"}` {
		t.Errorf("NodeMeta() = %s", got)
	}
	if got := delegate.NodeMeta(4); got != nil {
		t.Errorf("NodeMeta(4) = %q, want nil rather than truncated json", got)
	}

	delegate.NotifyMsg(nil)
	delegate.GetBroadcasts(0, 0)
	delegate.LocalState(false)
	delegate.MergeRemoteState(nil, false)
}

func TestSlogWriter(t *testing.T) {
	writer := &slogWriter{logger: logger.Nop()}
	n, err := writer.Write([]byte("test message\n"))
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}
	if n != len("test message\n") {
		t.Errorf("wrote %d bytes, want %d", n, len("test message\n"))
	}
}
