package clusterserver

import (
	"slices"
	"testing"

	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

func TestMemberManager(t *testing.T) {
	m := NewMemberManager(Member{NodeID: "n1", Addr: "10.0.0.1:7001"}, logger.Nop())

	var seen [][]string
	m.OnChange(func(addrs []string) { seen = append(seen, addrs) })
	if len(seen) != 1 || !slices.Equal(seen[0], []string{"10.0.0.1:7001"}) {
		t.Fatalf("initial notification = %v", seen)
	}

	m.Join(Member{NodeID: "n2", Addr: "10.0.0.2:7001"})
	m.Join(Member{NodeID: "n2", Addr: "10.0.0.2:7001"})
	if len(seen) != 2 {
		t.Errorf("repeated join notified again: %v", seen)
	}
	if got := m.AllMembersWithoutSelf(); !slices.Equal(got, []string{"10.0.0.2:7001"}) {
		t.Errorf("AllMembersWithoutSelf() = %v", got)
	}
	if !m.IsUp("10.0.0.2:7001") || !m.HasMember("10.0.0.2:7001") {
		t.Error("joined member not up")
	}

	m.Update(Member{NodeID: "n2", Addr: "10.0.0.2:7001", State: NodeStateSuspicious})
	if m.IsUp("10.0.0.2:7001") {
		t.Error("suspicious member reported up")
	}
	if !m.HasMember("10.0.0.2:7001") {
		t.Error("suspicious member dropped")
	}

	// restart on a new address replaces the old entry
	m.Join(Member{NodeID: "n2", Addr: "10.0.0.2:7002"})
	if m.HasMember("10.0.0.2:7001") {
		t.Error("stale address kept")
	}

	m.Leave(Member{NodeID: "n2", Addr: "10.0.0.2:7002"})
	if got := m.AllMembers(); !slices.Equal(got, []string{"10.0.0.1:7001"}) {
		t.Errorf("AllMembers() after leave = %v", got)
	}

	m.Leave(Member{NodeID: "n1", Addr: "10.0.0.1:7001"})
	if !m.HasMember("10.0.0.1:7001") {
		t.Error("self removed")
	}
	if _, ok := m.Find("10.0.0.9:1"); ok {
		t.Error("Find() of unknown member succeeded")
	}
}

func TestMemberManager_SetStatic(t *testing.T) {
	m := NewMemberManager(Member{NodeID: "n1", Addr: "a:1"}, logger.Nop())
	var last []string
	m.OnChange(func(addrs []string) { last = addrs })

	m.SetStatic([]string{"c:1", "b:1", ""})
	if !slices.Equal(last, []string{"a:1", "b:1", "c:1"}) {
		t.Errorf("members = %v", last)
	}
	if got := m.Members(); len(got) != 3 || got[1].Addr != "b:1" || got[1].State != NodeStateUp {
		t.Errorf("Members() = %+v", got)
	}
}
