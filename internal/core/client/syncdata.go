package client

import (
	"encoding/json"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// PublishEntry is one published instance in SyncData.
type PublishEntry struct {
	Service  domain.Service             `json:"service"`
	Instance domain.InstancePublishInfo `json:"instance"`
}

// SyncData is the replicated state of one client.
type SyncData struct {
	ClientID   string         `json:"client_id"`
	Ephemeral  bool           `json:"ephemeral"`
	Revision   uint64         `json:"revision"`
	Publishers []PublishEntry `json:"publishers"`
}

// SnapshotData is the full set of clients sent for an initial load.
type SnapshotData struct {
	Clients []SyncData `json:"clients"`
}

// Attributes are supplied when a client is created.
type Attributes struct {
	Revision uint64
}

// Marshal encodes d.
func (d SyncData) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalSyncData decodes data produced by SyncData.Marshal.
func UnmarshalSyncData(data []byte) (SyncData, error) {
	var d SyncData
	if err := json.Unmarshal(data, &d); err != nil {
		return SyncData{}, domain.ErrDecodeFailed.WithDetails("client sync data").WithCause(err)
	}
	if d.ClientID == "" {
		return SyncData{}, domain.ErrDecodeFailed.WithDetails("client sync data without client id")
	}
	return d, nil
}

// UnmarshalSnapshot decodes a snapshot payload.
func UnmarshalSnapshot(data []byte) (SnapshotData, error) {
	var s SnapshotData
	if err := json.Unmarshal(data, &s); err != nil {
		return SnapshotData{}, domain.ErrDecodeFailed.WithDetails("client snapshot").WithCause(err)
	}
	return s, nil
}

// VerifyInfo is the checksum record of one client sent by the verify cycle.
type VerifyInfo struct {
	ClientID string `json:"client_id"`
	Revision uint64 `json:"revision"`
}
