package clusterserver

import "github.com/yndnr/regmesh-go/internal/distro"

// Procedures of the distro service.
const (
	DistroServiceName = "regmesh.cluster.v1.DistroService"

	ProcedureSyncData      = "/" + DistroServiceName + "/SyncData"
	ProcedureVerifyData    = "/" + DistroServiceName + "/VerifyData"
	ProcedureQueryData     = "/" + DistroServiceName + "/QueryData"
	ProcedureQuerySnapshot = "/" + DistroServiceName + "/QuerySnapshot"
)

// Headers set by the cluster RPC client.
const (
	HeaderSource    = "Regmesh-Source"
	HeaderRequestID = "X-Request-ID"
)

// DataRequest carries one distro record.
type DataRequest struct {
	Data distro.Data `json:"data"`
}

// Ack reports whether the peer accepted a record.
type Ack struct {
	OK bool `json:"ok"`
}

// QueryDataRequest asks for one key.
type QueryDataRequest struct {
	Key distro.Key `json:"key"`
}

// QuerySnapshotRequest asks for a full snapshot of a resource type.
type QuerySnapshotRequest struct {
	ResourceType string `json:"resource_type"`
}

// DataResponse returns a distro record.
type DataResponse struct {
	Data distro.Data `json:"data"`
}
