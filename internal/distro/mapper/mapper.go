// Package mapper decides which cluster member is responsible for a key.
//
// Members are placed on a consistent-hash ring with virtual nodes hashed by
// MurmurHash3. A key belongs to the first virtual node at or after the
// key's hash, wrapping around. The ring is rebuilt on every membership
// change and swapped in atomically, so lookups never lock.
package mapper

import (
	"encoding/binary"
	"log/slog"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
)

// DefaultVirtualNodeCount is the number of ring positions per member.
const DefaultVirtualNodeCount = 256

type ring struct {
	hashes  []uint64
	owners  map[uint64]string
	members []string
}

// Mapper maps keys to responsible members.
type Mapper struct {
	self         string
	virtualNodes int
	logger       *slog.Logger

	ring atomic.Pointer[ring]
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithVirtualNodes sets the ring positions per member.
func WithVirtualNodes(n int) Option {
	return func(m *Mapper) {
		if n > 0 {
			m.virtualNodes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) { m.logger = l }
}

// New creates a Mapper for the local member self. Until the first
// OnMembersChanged call the ring is empty and self owns every key.
func New(self string, opts ...Option) *Mapper {
	m := &Mapper{
		self:         self,
		virtualNodes: DefaultVirtualNodeCount,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ring.Store(&ring{owners: map[uint64]string{}})
	return m
}

// Self returns the local member address.
func (m *Mapper) Self() string {
	return m.self
}

// OnMembersChanged rebuilds the ring from the healthy member addresses.
// Equal member sets always produce equal rings regardless of order.
func (m *Mapper) OnMembersChanged(members []string) {
	sorted := slices.Clone(members)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	r := &ring{
		hashes:  make([]uint64, 0, len(sorted)*m.virtualNodes),
		owners:  make(map[uint64]string, len(sorted)*m.virtualNodes),
		members: sorted,
	}
	for _, member := range sorted {
		for i := 0; i < m.virtualNodes; i++ {
			h := hashVirtualNode(member, i)
			// members are visited in sorted order, so on a collision the
			// smaller address keeps the position on every node
			if _, taken := r.owners[h]; taken {
				continue
			}
			r.owners[h] = member
			r.hashes = append(r.hashes, h)
		}
	}
	slices.Sort(r.hashes)

	m.ring.Store(r)
	m.logger.Info("distro mapper rebuilt", "members", len(sorted), "virtual_nodes", len(r.hashes))
}

// Members returns the members currently on the ring, sorted.
func (m *Mapper) Members() []string {
	return slices.Clone(m.ring.Load().members)
}

// MapServer returns the member responsible for key. With an empty ring the
// local member is responsible.
func (m *Mapper) MapServer(key string) string {
	r := m.ring.Load()
	if len(r.hashes) == 0 {
		return m.self
	}
	return r.owners[r.hashes[r.search(hashKey(key))]]
}

// Responsible reports whether the local member owns key.
func (m *Mapper) Responsible(key string) bool {
	return m.MapServer(key) == m.self
}

// Owners returns up to n distinct members for key, starting with the
// responsible one and walking the ring clockwise.
func (m *Mapper) Owners(key string, n int) []string {
	r := m.ring.Load()
	if len(r.hashes) == 0 {
		return []string{m.self}
	}
	n = min(n, len(r.members))
	out := make([]string, 0, n)
	start := r.search(hashKey(key))
	for i := 0; i < len(r.hashes) && len(out) < n; i++ {
		owner := r.owners[r.hashes[(start+i)%len(r.hashes)]]
		if !slices.Contains(out, owner) {
			out = append(out, owner)
		}
	}
	return out
}

// search returns the index of the first ring position >= h, wrapping.
func (r *ring) search(h uint64) int {
	idx := sort.Search(len(r.hashes), func(i int) bool {
		return r.hashes[i] >= h
	})
	if idx == len(r.hashes) {
		idx = 0
	}
	return idx
}

func hashKey(key string) uint64 {
	return murmur3.Sum64([]byte(key))
}

func hashVirtualNode(member string, index int) uint64 {
	h := murmur3.New64()
	h.Write([]byte(member))

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(index))
	h.Write(buf[:])

	return h.Sum64()
}
