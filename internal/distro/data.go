package distro

import (
	"encoding/json"
	"fmt"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// DataOperation tells the receiver what to do with a Data.
type DataOperation string

const (
	OpAdd      DataOperation = "ADD"
	OpChange   DataOperation = "CHANGE"
	OpDelete   DataOperation = "DELETE"
	OpVerify   DataOperation = "VERIFY"
	OpSnapshot DataOperation = "SNAPSHOT"
	OpQuery    DataOperation = "QUERY"
)

// Key identifies one replicable unit.
type Key struct {
	ResourceKey  string `json:"resource_key"`
	ResourceType string `json:"resource_type"`

	// TargetServer routes delayed sync tasks. It is not part of the
	// key's identity.
	TargetServer string `json:"target_server,omitempty"`
}

// NewKey returns a key without a target.
func NewKey(resourceKey, resourceType string) Key {
	return Key{ResourceKey: resourceKey, ResourceType: resourceType}
}

// WithTarget returns a copy of k routed to target.
func (k Key) WithTarget(target string) Key {
	k.TargetServer = target
	return k
}

// Equal compares resource key and type.
func (k Key) Equal(o Key) bool {
	return k.ResourceKey == o.ResourceKey && k.ResourceType == o.ResourceType
}

// ID returns "type:key".
func (k Key) ID() string {
	return k.ResourceType + ":" + k.ResourceKey
}

func (k Key) String() string {
	if k.TargetServer == "" {
		return k.ID()
	}
	return k.ID() + "@" + k.TargetServer
}

// Data is one unit on the wire.
type Data struct {
	Key     Key           `json:"key"`
	Type    DataOperation `json:"type"`
	Content []byte        `json:"content,omitempty"`
}

// NewData builds a Data.
func NewData(key Key, op DataOperation, content []byte) Data {
	return Data{Key: key, Type: op, Content: content}
}

// BatchVerifyContent is the content of a batched VERIFY Data: the chunk's
// individual verify records.
type BatchVerifyContent []Data

// NewBatchVerifyData packs records into one VERIFY Data for resourceType.
func NewBatchVerifyData(resourceType string, records []Data) (Data, error) {
	content, err := json.Marshal(BatchVerifyContent(records))
	if err != nil {
		return Data{}, fmt.Errorf("encode verify batch: %w", err)
	}
	return NewData(Key{ResourceType: resourceType}, OpVerify, content), nil
}

// DecodeBatchVerifyData unpacks a batched VERIFY Data.
func DecodeBatchVerifyData(data Data) (BatchVerifyContent, error) {
	var records BatchVerifyContent
	if err := json.Unmarshal(data.Content, &records); err != nil {
		return nil, domain.ErrDecodeFailed.WithDetails("verify batch").WithCause(err)
	}
	return records, nil
}
