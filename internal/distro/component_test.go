package distro

import (
	"errors"
	"slices"
	"testing"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

func TestComponentHolder_ExactMatch(t *testing.T) {
	h := NewComponentHolder()
	h.RegisterDataStorage(testType, newMapStorage(testType))
	h.RegisterTransportAgent(testType, newRecordingAgent())
	h.RegisterDataProcessor(newMapProcessor(testType))

	if _, err := h.FindDataStorage(testType); err != nil {
		t.Fatalf("FindDataStorage(%q) error = %v", testType, err)
	}
	if _, err := h.FindTransportAgent(testType); err != nil {
		t.Fatalf("FindTransportAgent(%q) error = %v", testType, err)
	}
	if _, err := h.FindDataProcessor(testType); err != nil {
		t.Fatalf("FindDataProcessor(%q) error = %v", testType, err)
	}

	for _, rt := range []string{"test", "test:resource:sub", "", "other"} {
		if _, err := h.FindDataStorage(rt); !errors.Is(err, domain.ErrHandlerNotFound) {
			t.Errorf("FindDataStorage(%q) error = %v, want ErrHandlerNotFound", rt, err)
		}
		if _, err := h.FindTransportAgent(rt); !errors.Is(err, domain.ErrHandlerNotFound) {
			t.Errorf("FindTransportAgent(%q) error = %v, want ErrHandlerNotFound", rt, err)
		}
		if _, err := h.FindDataProcessor(rt); !errors.Is(err, domain.ErrHandlerNotFound) {
			t.Errorf("FindDataProcessor(%q) error = %v, want ErrHandlerNotFound", rt, err)
		}
	}

	// A miss leaves registered lookups intact.
	if _, err := h.FindDataStorage(testType); err != nil {
		t.Errorf("FindDataStorage(%q) after miss error = %v", testType, err)
	}
}

func TestComponentHolder_LastRegistrationWins(t *testing.T) {
	h := NewComponentHolder()
	first := newMapStorage(testType)
	second := newMapStorage(testType)
	h.RegisterDataStorage(testType, first)
	h.RegisterDataStorage(testType, second)

	got, err := h.FindDataStorage(testType)
	if err != nil {
		t.Fatalf("FindDataStorage() error = %v", err)
	}
	if got != DataStorage(second) {
		t.Error("FindDataStorage() returned the first registration")
	}
}

func TestComponentHolder_DataStorageTypes(t *testing.T) {
	h := NewComponentHolder()
	h.RegisterDataStorage("b", newMapStorage("b"))
	h.RegisterDataStorage("a", newMapStorage("a"))
	h.RegisterDataStorage("b", newMapStorage("b"))

	if got, want := h.DataStorageTypes(), []string{"a", "b"}; !slices.Equal(got, want) {
		t.Errorf("DataStorageTypes() = %v, want %v", got, want)
	}
}

func TestKey_Identity(t *testing.T) {
	a := NewKey("c1", testType)
	b := a.WithTarget("10.0.0.2:7848")

	if !a.Equal(b) {
		t.Error("target changed key equality")
	}
	if a.ID() != b.ID() {
		t.Errorf("ID() differs: %q vs %q", a.ID(), b.ID())
	}
	if a.String() == b.String() {
		t.Error("String() ignores the target")
	}
	if a.Equal(NewKey("c1", "other")) {
		t.Error("keys of different types are equal")
	}
}

func TestBatchVerifyData_RoundTrip(t *testing.T) {
	records := []Data{
		NewData(NewKey("c1", testType), OpVerify, []byte("1")),
		NewData(NewKey("c2", testType), OpVerify, []byte("2")),
	}
	batch, err := NewBatchVerifyData(testType, records)
	if err != nil {
		t.Fatalf("NewBatchVerifyData() error = %v", err)
	}
	if batch.Type != OpVerify || batch.Key.ResourceType != testType {
		t.Errorf("batch = %+v", batch.Key)
	}

	got, err := DecodeBatchVerifyData(batch)
	if err != nil {
		t.Fatalf("DecodeBatchVerifyData() error = %v", err)
	}
	if len(got) != 2 || got[1].Key.ResourceKey != "c2" || string(got[1].Content) != "2" {
		t.Errorf("decoded = %+v", got)
	}

	if _, err := DecodeBatchVerifyData(NewData(Key{}, OpVerify, []byte("{"))); !errors.Is(err, domain.ErrDecodeFailed) {
		t.Errorf("decode garbage error = %v, want ErrDecodeFailed", err)
	}
}
