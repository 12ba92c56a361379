package handler

import (
	"net"
	"strconv"
	"time"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/core/operation"
)

// Response is the standard API response envelope.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// InstanceRequest is the body of instance register, deregister and beat.
// ServiceName may carry the group as "group@@name".
type InstanceRequest struct {
	NamespaceID string            `json:"namespace_id,omitempty"`
	GroupName   string            `json:"group_name,omitempty"`
	ServiceName string            `json:"service_name"`
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	ClusterName string            `json:"cluster_name,omitempty"`
	Weight      *float64          `json:"weight,omitempty"`
	Healthy     *bool             `json:"healthy,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	// ConnectionID publishes through a connection client instead of the
	// ip-port client of the instance address.
	ConnectionID string `json:"connection_id,omitempty"`
}

func (r InstanceRequest) toOperation() operation.InstanceRequest {
	inst := domain.NewInstancePublishInfo(r.IP, r.Port)
	if r.ClusterName != "" {
		inst.Cluster = r.ClusterName
	}
	if r.Weight != nil {
		inst.Weight = *r.Weight
	}
	if r.Healthy != nil {
		inst.Healthy = *r.Healthy
	}
	if r.Enabled != nil {
		inst.Enabled = *r.Enabled
	}
	inst.Metadata = r.Metadata
	return operation.InstanceRequest{
		Service:      domain.ParseService(r.NamespaceID, r.GroupName, r.ServiceName),
		Instance:     inst,
		ConnectionID: r.ConnectionID,
	}
}

// RegisterInstanceResponse is the response body for POST /v1/ns/instance.
type RegisterInstanceResponse struct {
	ClientID string `json:"client_id"`
}

// ListInstancesResponse is the response body for GET /v1/ns/instance/list.
type ListInstancesResponse struct {
	Service   domain.Service           `json:"service"`
	Instances []operation.InstanceView `json:"instances"`
}

// SubscribeRequest is the body of subscribe and unsubscribe.
type SubscribeRequest struct {
	NamespaceID  string `json:"namespace_id,omitempty"`
	GroupName    string `json:"group_name,omitempty"`
	ServiceName  string `json:"service_name"`
	IP           string `json:"ip,omitempty"`
	Port         int    `json:"port,omitempty"`
	Agent        string `json:"agent,omitempty"`
	App          string `json:"app,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
}

func (r SubscribeRequest) toOperation() operation.SubscribeRequest {
	svc := domain.ParseService(r.NamespaceID, r.GroupName, r.ServiceName)
	return operation.SubscribeRequest{
		Service: svc,
		Subscriber: domain.Subscriber{
			Addr:      net.JoinHostPort(r.IP, strconv.Itoa(r.Port)),
			Agent:     r.Agent,
			App:       r.App,
			IP:        r.IP,
			Port:      r.Port,
			Namespace: svc.Namespace,
			Service:   svc.GroupedName(),
		},
		ConnectionID: r.ConnectionID,
	}
}

// ConnectRequest is the body of POST /v1/ns/connection.
type ConnectRequest struct {
	ConnectionID string `json:"connection_id"`
}

// ListResponse wraps a plain list.
type ListResponse[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

func newList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Count: len(items), Items: items}
}
