package notify

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the pending event capacity of a Center.
const DefaultQueueSize = 16384

// Event is something published on the bus.
type Event interface {
	// EventType names the event; subscribers select on it.
	EventType() string
}

// Subscriber receives events of the types it subscribes to.
type Subscriber interface {
	OnEvent(Event)
	SubscribeTypes() []string
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc struct {
	Types []string
	Fn    func(Event)
}

// OnEvent implements Subscriber.
func (f *SubscriberFunc) OnEvent(e Event) { f.Fn(e) }

// SubscribeTypes implements Subscriber.
func (f *SubscriberFunc) SubscribeTypes() []string { return f.Types }

// Center routes events to subscribers.
type Center struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string][]Subscriber

	queue    chan Event
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
}

// Option configures a Center.
type Option func(*Center)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Center) { c.logger = l }
}

// WithQueueSize sets the pending event capacity.
func WithQueueSize(n int) Option {
	return func(c *Center) {
		if n > 0 {
			c.queue = make(chan Event, n)
		}
	}
}

// NewCenter creates a Center and starts its dispatcher.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		logger: slog.Default(),
		subs:   make(map[string][]Subscriber),
		queue:  make(chan Event, DefaultQueueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.dispatch()
	return c
}

// RegisterSubscriber adds s for every type it subscribes to.
func (c *Center) RegisterSubscriber(s Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range s.SubscribeTypes() {
		if slices.Contains(c.subs[t], s) {
			continue
		}
		c.subs[t] = append(c.subs[t], s)
	}
}

// DeregisterSubscriber removes s from every type.
func (c *Center) DeregisterSubscriber(s Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range s.SubscribeTypes() {
		list := c.subs[t]
		if i := slices.Index(list, s); i >= 0 {
			c.subs[t] = slices.Delete(slices.Clone(list), i, i+1)
		}
	}
}

// Publish queues e for delivery. When the queue is full the event is
// delivered on the caller's goroutine so nothing is dropped. It returns
// false after Shutdown.
func (c *Center) Publish(e Event) bool {
	if c.stopped.Load() {
		return false
	}
	select {
	case c.queue <- e:
		return true
	default:
		c.logger.Warn("event queue full, delivering synchronously", "event_type", e.EventType())
		c.deliver(e)
		return true
	}
}

// Shutdown stops accepting events, drains what is queued and returns.
func (c *Center) Shutdown() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		close(c.stopCh)
	})
	<-c.done
}

func (c *Center) dispatch() {
	defer close(c.done)
	for {
		select {
		case e := <-c.queue:
			c.deliver(e)
		case <-c.stopCh:
			for {
				select {
				case e := <-c.queue:
					c.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (c *Center) deliver(e Event) {
	c.mu.RLock()
	subs := c.subs[e.EventType()]
	c.mu.RUnlock()

	for _, s := range subs {
		c.safeCall(s, e)
	}
}

func (c *Center) safeCall(s Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("event subscriber panicked",
				"event_type", e.EventType(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.OnEvent(e)
}
