package index

import (
	"slices"
	"testing"
	"time"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/infra/notify"
	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

var (
	orders   = domain.NewService("", "", "orders")
	payments = domain.NewService("dev", "", "payments")
)

func registered(svc domain.Service, id string) client.ServiceEvent {
	return client.ServiceEvent{Type: client.EventServiceRegistered, Service: svc, ClientID: id}
}

func TestIndex_PublishersAndSubscribers(t *testing.T) {
	x := New(logger.Nop())
	x.OnEvent(registered(orders, "b"))
	x.OnEvent(registered(orders, "a"))
	x.OnEvent(registered(payments, "a"))
	x.OnEvent(client.ServiceEvent{Type: client.EventServiceSubscribed, Service: orders, ClientID: "c"})

	if got := x.Publishers(orders); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Publishers(orders) = %v", got)
	}
	if got := x.Subscribers(orders); !slices.Equal(got, []string{"c"}) {
		t.Errorf("Subscribers(orders) = %v", got)
	}
	if got := x.Services(""); len(got) != 2 {
		t.Errorf("Services() = %v, want 2", got)
	}
	if got := x.Services("dev"); !slices.Equal(got, []domain.Service{payments}) {
		t.Errorf("Services(dev) = %v", got)
	}

	x.OnEvent(client.ServiceEvent{Type: client.EventServiceDeregistered, Service: payments, ClientID: "a"})
	if got := x.Services("dev"); len(got) != 0 {
		t.Errorf("empty service kept: %v", got)
	}
	x.OnEvent(client.ServiceEvent{Type: client.EventServiceUnsubscribed, Service: orders, ClientID: "c"})
	if got := x.Subscribers(orders); len(got) != 0 {
		t.Errorf("Subscribers after unsubscribe = %v", got)
	}
}

func TestIndex_DisconnectRemovesClient(t *testing.T) {
	x := New(logger.Nop())
	c := client.NewConnectionBasedClient("conn-1", true, 0, time.Minute, client.Options{Logger: logger.Nop()})
	x.OnEvent(registered(orders, "conn-1"))
	x.OnEvent(registered(orders, "conn-2"))
	x.OnEvent(client.ServiceEvent{Type: client.EventServiceSubscribed, Service: payments, ClientID: "conn-1"})

	x.OnEvent(client.DisconnectedEvent{Client: c, Native: true})
	if got := x.Publishers(orders); !slices.Equal(got, []string{"conn-2"}) {
		t.Errorf("Publishers(orders) = %v", got)
	}
	if got := x.Subscribers(payments); len(got) != 0 {
		t.Errorf("Subscribers(payments) = %v", got)
	}
}

func TestIndex_ThroughNotifyCenter(t *testing.T) {
	center := notify.NewCenter(notify.WithLogger(logger.Nop()))
	defer center.Shutdown()
	x := New(logger.Nop())
	center.RegisterSubscriber(x)

	center.Publish(registered(orders, "a"))
	deadline := time.Now().Add(time.Second)
	for len(x.Publishers(orders)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("index never saw the event")
		}
		time.Sleep(time.Millisecond)
	}
}
