package domain

import (
	"maps"
	"net"
	"strconv"
	"strings"
)

// Naming defaults applied when a request omits them.
const (
	DefaultNamespace = "public"
	DefaultGroup     = "DEFAULT_GROUP"
	DefaultCluster   = "DEFAULT"

	// GroupServiceSeparator joins group and service name in grouped names.
	GroupServiceSeparator = "@@"

	MaxServiceNameLength = 512
	MaxMetadataEntries   = 64
)

// Service identifies a service inside a namespace and group.
// It is comparable and used directly as a map key.
type Service struct {
	Namespace string `json:"namespace"`
	Group     string `json:"group"`
	Name      string `json:"name"`
}

// NewService builds a Service, filling in the default namespace and group.
func NewService(namespace, group, name string) Service {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if group == "" {
		group = DefaultGroup
	}
	return Service{Namespace: namespace, Group: group, Name: name}
}

// ParseService accepts either a plain name or a grouped name ("group@@name").
// An explicit group parameter wins over the grouped prefix.
func ParseService(namespace, group, serviceName string) Service {
	if g, n, ok := strings.Cut(serviceName, GroupServiceSeparator); ok {
		if group == "" {
			group = g
		}
		serviceName = n
	}
	return NewService(namespace, group, serviceName)
}

// GroupedName returns "group@@name".
func (s Service) GroupedName() string {
	return s.Group + GroupServiceSeparator + s.Name
}

// String returns "namespace/group@@name".
func (s Service) String() string {
	return s.Namespace + "/" + s.GroupedName()
}

// Validate checks the service identity.
func (s Service) Validate() error {
	if s.Name == "" {
		return ErrMissingArgument.WithDetails("service name is required")
	}
	if len(s.Name) > MaxServiceNameLength {
		return ErrInvalidArgument.WithDetails("service name too long")
	}
	if strings.Contains(s.Name, GroupServiceSeparator) || strings.Contains(s.Group, GroupServiceSeparator) {
		return ErrInvalidArgument.WithDetails("service name and group must not contain " + GroupServiceSeparator)
	}
	return nil
}

// InstancePublishInfo is an instance a client publishes for one service.
type InstancePublishInfo struct {
	IP       string            `json:"ip"`
	Port     int               `json:"port"`
	Cluster  string            `json:"cluster"`
	Weight   float64           `json:"weight"`
	Healthy  bool              `json:"healthy"`
	Enabled  bool              `json:"enabled"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewInstancePublishInfo returns an enabled, healthy instance with weight 1.
func NewInstancePublishInfo(ip string, port int) InstancePublishInfo {
	return InstancePublishInfo{
		IP:      ip,
		Port:    port,
		Cluster: DefaultCluster,
		Weight:  1,
		Healthy: true,
		Enabled: true,
	}
}

// Address returns "ip:port".
func (i InstancePublishInfo) Address() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// Clone returns a deep copy so callers cannot alias the metadata map.
func (i InstancePublishInfo) Clone() InstancePublishInfo {
	c := i
	if i.Metadata != nil {
		c.Metadata = maps.Clone(i.Metadata)
	}
	return c
}

// Equal compares every field including metadata.
func (i InstancePublishInfo) Equal(o InstancePublishInfo) bool {
	return i.IP == o.IP &&
		i.Port == o.Port &&
		i.Cluster == o.Cluster &&
		i.Weight == o.Weight &&
		i.Healthy == o.Healthy &&
		i.Enabled == o.Enabled &&
		maps.Equal(i.Metadata, o.Metadata)
}

// Validate checks address, weight and metadata bounds.
func (i InstancePublishInfo) Validate() error {
	if i.IP == "" {
		return ErrMissingArgument.WithDetails("instance ip is required")
	}
	if net.ParseIP(i.IP) == nil {
		return ErrInvalidArgument.WithDetails("invalid instance ip: " + i.IP)
	}
	if i.Port <= 0 || i.Port > 65535 {
		return ErrInvalidArgument.WithDetails("instance port out of range")
	}
	if i.Weight < 0 || i.Weight > 10000 {
		return ErrInvalidArgument.WithDetails("instance weight out of range")
	}
	if len(i.Metadata) > MaxMetadataEntries {
		return ErrInvalidArgument.WithDetails("too many metadata entries")
	}
	return nil
}

// Subscriber is a client's subscription to one service.
type Subscriber struct {
	Addr      string `json:"addr"`
	Agent     string `json:"agent,omitempty"`
	App       string `json:"app,omitempty"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Namespace string `json:"namespace"`
	Service   string `json:"service"`
}
