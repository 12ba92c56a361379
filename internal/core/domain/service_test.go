package domain

import (
	"errors"
	"testing"
)

func TestParseService(t *testing.T) {
	tests := []struct {
		name        string
		namespace   string
		group       string
		serviceName string
		want        Service
	}{
		{
			name:        "defaults",
			serviceName: "orders",
			want:        Service{Namespace: DefaultNamespace, Group: DefaultGroup, Name: "orders"},
		},
		{
			name:        "grouped name",
			namespace:   "dev",
			serviceName: "payments@@orders",
			want:        Service{Namespace: "dev", Group: "payments", Name: "orders"},
		},
		{
			name:        "explicit group wins",
			group:       "billing",
			serviceName: "payments@@orders",
			want:        Service{Namespace: DefaultNamespace, Group: "billing", Name: "orders"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseService(tt.namespace, tt.group, tt.serviceName)
			if got != tt.want {
				t.Errorf("ParseService() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestService_Validate(t *testing.T) {
	if err := NewService("", "", "orders").Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := NewService("", "", "").Validate(); !errors.Is(err, ErrMissingArgument) {
		t.Errorf("Validate() error = %v, want ErrMissingArgument", err)
	}
	if err := NewService("", "a@@b", "orders").Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Validate() error = %v, want ErrInvalidArgument", err)
	}
}

func TestInstancePublishInfo_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*InstancePublishInfo)
		wantErr error
	}{
		{name: "valid", modify: func(*InstancePublishInfo) {}},
		{name: "missing ip", modify: func(i *InstancePublishInfo) { i.IP = "" }, wantErr: ErrMissingArgument},
		{name: "bad ip", modify: func(i *InstancePublishInfo) { i.IP = "not-an-ip" }, wantErr: ErrInvalidArgument},
		{name: "port zero", modify: func(i *InstancePublishInfo) { i.Port = 0 }, wantErr: ErrInvalidArgument},
		{name: "negative weight", modify: func(i *InstancePublishInfo) { i.Weight = -1 }, wantErr: ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := NewInstancePublishInfo("10.0.0.1", 8080)
			tt.modify(&inst)
			err := inst.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstancePublishInfo_Clone(t *testing.T) {
	inst := NewInstancePublishInfo("10.0.0.1", 8080)
	inst.Metadata = map[string]string{"zone": "a"}

	c := inst.Clone()
	c.Metadata["zone"] = "b"

	if inst.Metadata["zone"] != "a" {
		t.Error("Clone should not share metadata")
	}
	if inst.Address() != "10.0.0.1:8080" {
		t.Errorf("Address() = %q", inst.Address())
	}
}
