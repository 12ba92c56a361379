package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/regmesh-go/internal/core/client"
)

// ClientCounter reports the clients held per kind.
// *clientmanager.Delegate implements it.
type ClientCounter interface {
	Counts() map[client.Kind]int
}

// MemberCounter reports the cluster size.
type MemberCounter interface {
	AllMembers() []string
}

// Collector samples gauges from live state at scrape time.
type Collector struct {
	clients ClientCounter
	members MemberCounter

	clientsDesc *prometheus.Desc
	membersDesc *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector. members may be nil.
func NewCollector(clients ClientCounter, members MemberCounter) *Collector {
	return &Collector{
		clients: clients,
		members: members,
		clientsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "registry", "clients"),
			"Clients held by this node, replicas included",
			[]string{"kind"}, nil,
		),
		membersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cluster", "members"),
			"Known cluster members, this node included",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.clientsDesc
	if c.members != nil {
		ch <- c.membersDesc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for kind, n := range c.clients.Counts() {
		ch <- prometheus.MustNewConstMetric(c.clientsDesc, prometheus.GaugeValue, float64(n), string(kind))
	}
	if c.members != nil {
		ch <- prometheus.MustNewConstMetric(c.membersDesc, prometheus.GaugeValue, float64(len(c.members.AllMembers())))
	}
}
