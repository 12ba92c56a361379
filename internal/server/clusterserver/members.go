package clusterserver

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// NodeState is the liveness of a member as seen by gossip.
type NodeState string

const (
	NodeStateUp         NodeState = "UP"
	NodeStateSuspicious NodeState = "SUSPICIOUS"
	NodeStateDown       NodeState = "DOWN"
)

// Member is a cluster node. Addr, the cluster RPC address, identifies it
// everywhere outside gossip.
type Member struct {
	NodeID     string    `json:"node_id"`
	Addr       string    `json:"addr"`
	GossipAddr string    `json:"gossip_addr,omitempty"`
	State      NodeState `json:"state"`
}

// MemberManager holds the member list. Listeners registered with OnChange
// receive the sorted address list after every change, in registration
// order, on the goroutine that made the change.
type MemberManager struct {
	self   Member
	logger *slog.Logger

	mu        sync.RWMutex
	members   map[string]Member // by addr
	byNode    map[string]string // node id -> addr
	listeners []func(addrs []string)
}

// NewMemberManager creates a manager holding only self.
func NewMemberManager(self Member, logger *slog.Logger) *MemberManager {
	if logger == nil {
		logger = slog.Default()
	}
	self.State = NodeStateUp
	return &MemberManager{
		self:    self,
		logger:  logger.With("component", "member_manager"),
		members: map[string]Member{self.Addr: self},
		byNode:  map[string]string{self.NodeID: self.Addr},
	}
}

// Self returns this node's address.
func (m *MemberManager) Self() string { return m.self.Addr }

// SelfMember returns this node.
func (m *MemberManager) SelfMember() Member { return m.self }

// AllMembers returns every member address, self included, sorted.
func (m *MemberManager) AllMembers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.members))
}

// AllMembersWithoutSelf returns the peer addresses, sorted.
func (m *MemberManager) AllMembersWithoutSelf() []string {
	return slices.DeleteFunc(m.AllMembers(), func(a string) bool { return a == m.self.Addr })
}

// Members returns a copy of every member, sorted by address.
func (m *MemberManager) Members() []Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Collect(maps.Values(m.members))
	slices.SortFunc(out, func(a, b Member) int { return cmp.Compare(a.Addr, b.Addr) })
	return out
}

// Find returns the member at addr.
func (m *MemberManager) Find(addr string) (Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[addr]
	return mem, ok
}

// HasMember reports whether addr is a member.
func (m *MemberManager) HasMember(addr string) bool {
	_, ok := m.Find(addr)
	return ok
}

// IsUp reports whether addr is a member gossip considers alive.
func (m *MemberManager) IsUp(addr string) bool {
	mem, ok := m.Find(addr)
	return ok && mem.State == NodeStateUp
}

// OnChange registers fn and calls it once with the current list.
func (m *MemberManager) OnChange(fn func(addrs []string)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
	fn(m.AllMembers())
}

// Join adds or refreshes a member. A node that restarted on a new address
// replaces its old entry.
func (m *MemberManager) Join(mem Member) {
	if mem.Addr == "" {
		return
	}
	if mem.State == "" {
		mem.State = NodeStateUp
	}
	m.mu.Lock()
	changed := false
	if old, ok := m.byNode[mem.NodeID]; ok && old != mem.Addr && mem.NodeID != "" {
		delete(m.members, old)
		changed = true
	}
	if _, ok := m.members[mem.Addr]; !ok {
		changed = true
	}
	m.members[mem.Addr] = mem
	if mem.NodeID != "" {
		m.byNode[mem.NodeID] = mem.Addr
	}
	m.mu.Unlock()

	if changed {
		m.logger.Info("member joined", "node_id", mem.NodeID, "addr", mem.Addr)
		m.notify()
	}
}

// Update records a state change without altering the list.
func (m *MemberManager) Update(mem Member) {
	m.mu.Lock()
	old, ok := m.members[mem.Addr]
	if ok {
		m.members[mem.Addr] = mem
	}
	m.mu.Unlock()

	switch {
	case !ok:
		m.Join(mem)
	case old.State != mem.State:
		m.logger.Info("member state changed", "addr", mem.Addr, "from", old.State, "to", mem.State)
	}
}

// Leave removes a member. Self is never removed.
func (m *MemberManager) Leave(mem Member) {
	if mem.Addr == m.self.Addr {
		return
	}
	m.mu.Lock()
	_, ok := m.members[mem.Addr]
	delete(m.members, mem.Addr)
	if m.byNode[mem.NodeID] == mem.Addr {
		delete(m.byNode, mem.NodeID)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Info("member left", "node_id", mem.NodeID, "addr", mem.Addr)
		m.notify()
	}
}

// SetStatic replaces the peer list with fixed addresses. Used when the
// cluster is configured without gossip.
func (m *MemberManager) SetStatic(addrs []string) {
	m.mu.Lock()
	m.members = map[string]Member{m.self.Addr: m.self}
	m.byNode = map[string]string{m.self.NodeID: m.self.Addr}
	for _, a := range addrs {
		if a != "" {
			m.members[a] = Member{NodeID: a, Addr: a, State: NodeStateUp}
		}
	}
	m.mu.Unlock()
	m.notify()
}

// Attach subscribes the manager to gossip events and seeds it with the
// current gossip view.
func (m *MemberManager) Attach(d *Discovery) {
	d.Subscribe(MemberEvents{Join: m.Join, Leave: m.Leave, Update: m.Update})
	for _, mem := range d.Members() {
		if mem.Addr != m.self.Addr {
			m.Join(mem)
		}
	}
}

func (m *MemberManager) notify() {
	addrs := m.AllMembers()
	m.mu.RLock()
	listeners := slices.Clone(m.listeners)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(addrs)
	}
}
