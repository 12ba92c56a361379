package clusterserver

import (
	"context"
	"errors"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/distro"
	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

type fakeDistro struct {
	mu        sync.Mutex
	received  []distro.Data
	sources   []string
	accept    bool
	panicking bool
	records   map[string]distro.Data
}

func (f *fakeDistro) OnReceive(data distro.Data) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicking {
		panic("boom")
	}
	f.received = append(f.received, data)
	return f.accept
}

func (f *fakeDistro) OnVerify(data distro.Data, source string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	return f.accept
}

func (f *fakeDistro) OnQuery(key distro.Key) (distro.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.records[key.ID()]
	if !ok {
		return distro.Data{}, domain.ErrDataNotFound.WithDetails(key.String())
	}
	return d, nil
}

func (f *fakeDistro) OnSnapshot(resourceType string) (distro.Data, error) {
	if resourceType != "naming" {
		return distro.Data{}, domain.ErrHandlerNotFound.WithDetails(resourceType)
	}
	return distro.NewData(distro.NewKey("snapshot", "naming"), distro.OpSnapshot, []byte(`{"clients":[]}`)), nil
}

func startServer(t *testing.T, h DistroHandler) (target string, client *RPCClient) {
	t.Helper()
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0", Handler: h, Logger: logger.Nop()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	target = ts.Listener.Addr().String()
	client = NewRPCClient(ClientConfig{Self: "10.0.0.1:7001", Timeout: time.Second, Logger: logger.Nop()})
	return target, client
}

func TestRPC_Sync(t *testing.T) {
	fake := &fakeDistro{accept: true}
	target, c := startServer(t, fake)
	ctx := context.Background()

	data := distro.NewData(distro.NewKey("10.0.0.5:80#true", "naming"), distro.OpChange, []byte(`{"x":1}`))
	if err := c.SyncData(ctx, target, data); err != nil {
		t.Fatalf("SyncData() error = %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.received) != 1 || string(fake.received[0].Content) != `{"x":1}` || fake.received[0].Type != distro.OpChange {
		t.Errorf("received = %+v", fake.received)
	}
	if !fake.received[0].Key.Equal(data.Key) {
		t.Errorf("key = %v, want %v", fake.received[0].Key, data.Key)
	}
}

func TestRPC_Verify(t *testing.T) {
	fake := &fakeDistro{accept: true}
	target, c := startServer(t, fake)
	ctx := context.Background()
	data := distro.NewData(distro.NewKey("10.0.0.5:80#true", "naming"), distro.OpVerify, nil)

	if err := c.VerifyData(ctx, target, data); err != nil {
		t.Fatalf("VerifyData() error = %v", err)
	}
	fake.mu.Lock()
	sources := slices.Clone(fake.sources)
	fake.mu.Unlock()
	if len(sources) != 1 || sources[0] != "10.0.0.1:7001" {
		t.Errorf("verify source = %v", sources)
	}

	fake.mu.Lock()
	fake.accept = false
	fake.mu.Unlock()
	if err := c.SyncData(ctx, target, data); err == nil {
		t.Error("rejected sync reported success")
	}
	if err := c.VerifyData(ctx, target, data); err == nil {
		t.Error("failed verify reported success")
	}
}

func TestRPC_Query(t *testing.T) {
	key := distro.NewKey("10.0.0.5:80#true", "naming")
	fake := &fakeDistro{records: map[string]distro.Data{
		key.ID(): distro.NewData(key, distro.OpChange, []byte("payload")),
	}}
	target, c := startServer(t, fake)
	ctx := context.Background()

	got, err := c.QueryData(ctx, target, key)
	if err != nil {
		t.Fatalf("QueryData() error = %v", err)
	}
	if string(got.Content) != "payload" {
		t.Errorf("content = %q", got.Content)
	}

	_, err = c.QueryData(ctx, target, distro.NewKey("missing", "naming"))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("missing key code = %v, want not_found", connect.CodeOf(err))
	}

	snap, err := c.QuerySnapshot(ctx, target, "naming")
	if err != nil || snap.Type != distro.OpSnapshot {
		t.Errorf("QuerySnapshot() = %+v, %v", snap, err)
	}
	if _, err := c.QuerySnapshot(ctx, target, "other"); connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("unknown type code = %v", connect.CodeOf(err))
	}
}

func TestRPC_RecoversPanics(t *testing.T) {
	target, c := startServer(t, &fakeDistro{panicking: true})
	err := c.SyncData(context.Background(), target, distro.NewData(distro.NewKey("k", "naming"), distro.OpChange, nil))
	if connect.CodeOf(err) != connect.CodeInternal {
		t.Errorf("code = %v, want internal", connect.CodeOf(err))
	}
}

func TestRPC_UnreachablePeer(t *testing.T) {
	c := NewRPCClient(ClientConfig{Self: "a:1", Timeout: 200 * time.Millisecond, Logger: logger.Nop()})
	err := c.SyncData(context.Background(), "127.0.0.1:1", distro.NewData(distro.NewKey("k", "naming"), distro.OpChange, nil))
	if err == nil {
		t.Fatal("expected error")
	}
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		t.Errorf("error %v is not a connect error", err)
	}

	if !c.IsRunning("127.0.0.1:1") {
		t.Error("client not running before Close")
	}
	c.Close()
	if c.IsRunning("127.0.0.1:1") {
		t.Error("client running after Close")
	}
}

func TestRPC_VerifyRequiresSource(t *testing.T) {
	fake := &fakeDistro{accept: true}
	target, _ := startServer(t, fake)
	anon := NewRPCClient(ClientConfig{Self: "", Logger: logger.Nop()})
	err := anon.VerifyData(context.Background(), target, distro.NewData(distro.NewKey("k", "naming"), distro.OpVerify, nil))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want invalid_argument", connect.CodeOf(err))
	}
}

func TestServer_ListenServeShutdown(t *testing.T) {
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0", Handler: &fakeDistro{accept: true}, Logger: logger.Nop()})
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	c := NewRPCClient(ClientConfig{Self: "a:1", Logger: logger.Nop()})
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := c.SyncData(context.Background(), srv.Addr(), distro.NewData(distro.NewKey("k", "naming"), distro.OpChange, nil))
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !srv.IsRunning() {
		t.Error("IsRunning() = false while serving")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() = %v", err)
	}
}

func TestCallerFault(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{connect.NewError(connect.CodeNotFound, errors.New("x")), true},
		{connect.NewError(connect.CodeFailedPrecondition, errors.New("x")), true},
		{connect.NewError(connect.CodeInvalidArgument, errors.New("x")), true},
		{connect.NewError(connect.CodeInternal, errors.New("x")), false},
		{connect.NewError(connect.CodeUnavailable, errors.New("x")), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := callerFault(tt.err); got != tt.want {
			t.Errorf("callerFault(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
