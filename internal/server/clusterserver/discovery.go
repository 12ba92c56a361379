package clusterserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/memberlist"
)

// Discovery runs the memberlist gossip layer and translates node events
// into Members keyed by their cluster RPC address.
type Discovery struct {
	config     *memberlist.Config
	memberList *memberlist.Memberlist
	logger     *slog.Logger

	mu       sync.Mutex
	shutdown bool

	evMu   sync.Mutex
	events MemberEvents
}

// MemberEvents receives gossip membership changes. Nil fields are skipped.
// memberlist calls them serially from its own goroutines.
type MemberEvents struct {
	Join   func(Member)
	Leave  func(Member)
	Update func(Member)
}

// DiscoveryConfig configures the discovery mechanism.
type DiscoveryConfig struct {
	// NodeID is the unique node identifier.
	NodeID string

	// BindAddr is the address to bind for gossip communication.
	BindAddr string

	// BindPort is the port to bind for gossip communication.
	BindPort int

	// AdvertiseAddr overrides the gossip address announced to peers.
	AdvertiseAddr string
	AdvertisePort int

	// RPCAddr is the cluster RPC address (host:port). It is gossiped in
	// the node metadata and used as the member's identity in distro.
	RPCAddr string

	// SeedNodes are the initial nodes to join.
	SeedNodes []string

	// Logger for logging.
	Logger *slog.Logger
}

// nodeMetadata is gossiped with every node.
type nodeMetadata struct {
	RPCAddr string `json:"rpc_addr"`
}

// NewDiscovery creates a discovery instance. Call Join to contact the
// seeds once the callbacks are registered.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RPCAddr == "" {
		return nil, fmt.Errorf("discovery: rpc address is required")
	}

	meta, err := json.Marshal(nodeMetadata{RPCAddr: cfg.RPCAddr})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}
	if len(meta) > memberlist.MetaMaxSize {
		return nil, fmt.Errorf("discovery: node metadata is %d bytes, limit %d", len(meta), memberlist.MetaMaxSize)
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeID
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
		mlConfig.AdvertisePort = cfg.AdvertisePort
	}
	mlConfig.Delegate = metadataDelegate(meta)
	mlConfig.LogOutput = &slogWriter{logger: cfg.Logger}

	d := &Discovery{
		config: mlConfig,
		logger: cfg.Logger.With("component", "discovery"),
	}
	mlConfig.Events = (*eventDelegate)(d)

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	d.memberList = ml

	d.logger.Info("started discovery",
		"node_id", cfg.NodeID,
		"rpc_addr", cfg.RPCAddr,
		"gossip_port", ml.LocalNode().Port)
	return d, nil
}

// Join contacts the seed nodes. An empty list starts a new cluster.
func (d *Discovery) Join(seeds []string) error {
	if len(seeds) == 0 {
		d.logger.Info("no seed nodes, running as the first member")
		return nil
	}
	n, err := d.memberList.Join(seeds)
	if err != nil {
		return fmt.Errorf("join seed nodes: %w", err)
	}
	d.logger.Info("joined cluster", "seed_nodes", seeds, "joined_count", n)
	return nil
}

// Members returns the current alive members.
func (d *Discovery) Members() []Member {
	if d.memberList == nil {
		return nil
	}
	nodes := d.memberList.Members()
	out := make([]Member, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.toMember(n))
	}
	return out
}

// LocalMember returns this node.
func (d *Discovery) LocalMember() Member {
	return d.toMember(d.memberList.LocalNode())
}

// GossipAddr returns the bound gossip address.
func (d *Discovery) GossipAddr() string {
	n := d.memberList.LocalNode()
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Leave gracefully leaves the cluster.
func (d *Discovery) Leave() error {
	if d.memberList == nil {
		return nil
	}
	if err := d.memberList.Leave(0); err != nil {
		d.logger.Error("failed to leave cluster", "error", err)
		return err
	}
	d.logger.Info("left cluster")
	return nil
}

// Shutdown stops the discovery mechanism.
func (d *Discovery) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown || d.memberList == nil {
		return nil
	}
	d.shutdown = true

	if err := d.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	d.logger.Info("discovery shutdown complete")
	return nil
}

// Subscribe replaces the membership event handlers.
func (d *Discovery) Subscribe(ev MemberEvents) {
	d.evMu.Lock()
	d.events = ev
	d.evMu.Unlock()
}

func (d *Discovery) handlers() MemberEvents {
	d.evMu.Lock()
	defer d.evMu.Unlock()
	return d.events
}

func (d *Discovery) toMember(node *memberlist.Node) Member {
	gossipAddr := net.JoinHostPort(node.Addr.String(), strconv.Itoa(int(node.Port)))
	m := Member{
		NodeID:     node.Name,
		GossipAddr: gossipAddr,
		State:      stateOf(node.State),
	}
	var meta nodeMetadata
	if err := json.Unmarshal(node.Meta, &meta); err != nil || meta.RPCAddr == "" {
		d.logger.Warn("node without rpc metadata, using gossip address",
			"node_id", node.Name,
			"gossip_addr", gossipAddr)
		m.Addr = gossipAddr
		return m
	}
	m.Addr = meta.RPCAddr
	return m
}

func stateOf(s memberlist.NodeStateType) NodeState {
	switch s {
	case memberlist.StateAlive:
		return NodeStateUp
	case memberlist.StateSuspect:
		return NodeStateSuspicious
	default:
		return NodeStateDown
	}
}

// eventDelegate is the memberlist.EventDelegate view of a Discovery.
type eventDelegate Discovery

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	d := (*Discovery)(e)
	m := d.toMember(node)
	d.logger.Info("node joined", "node_id", m.NodeID, "gossip_addr", m.GossipAddr, "rpc_addr", m.Addr)
	if fn := d.handlers().Join; fn != nil {
		fn(m)
	}
}

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	d := (*Discovery)(e)
	m := d.toMember(node)
	d.logger.Info("node left", "node_id", m.NodeID, "rpc_addr", m.Addr, "state", m.State)
	if fn := d.handlers().Leave; fn != nil {
		fn(m)
	}
}

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	d := (*Discovery)(e)
	m := d.toMember(node)
	d.logger.Debug("node updated", "node_id", m.NodeID, "rpc_addr", m.Addr, "state", m.State)
	if fn := d.handlers().Update; fn != nil {
		fn(m)
	}
}

// slogWriter feeds memberlist's log output into slog at debug level.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	w.logger.Debug(strings.TrimSpace(string(p)))
	return len(p), nil
}

// metadataDelegate gossips the encoded nodeMetadata. Its size is checked
// against memberlist.MetaMaxSize at startup, so it is never truncated.
// User messages and push/pull state are unused.
type metadataDelegate []byte

func (m metadataDelegate) NodeMeta(limit int) []byte {
	if len(m) > limit {
		return nil
	}
	return m
}

func (metadataDelegate) NotifyMsg([]byte) {}
func (metadataDelegate) GetBroadcasts(_, _ int) [][]byte { return nil }
func (metadataDelegate) LocalState(bool) []byte { return nil }
func (metadataDelegate) MergeRemoteState(_ []byte, _ bool) {}
