package notify

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// Handler consumes notifications delivered by a Bus.
type Handler func(ctx context.Context, n Notification)

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe removes the subscription. Safe to call more than once.
	Unsubscribe()
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 64
	BufferSize int

	// NonBlocking makes Notify drop notifications for full subscribers
	// instead of waiting.
	// Default: false (blocking)
	NonBlocking bool

	// OnDrop is called when a notification is dropped (non-blocking mode).
	OnDrop func(n Notification, subscriberID string)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 64,
}

// Bus is an in-process fan-out Notifier. Each subscriber gets its own
// buffered queue and goroutine, so a slow subscriber never delays another
// one in non-blocking mode.
type Bus struct {
	config BusConfig

	mu   sync.RWMutex
	subs map[string]*subscription
	wg   sync.WaitGroup

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
}

var _ Notifier = (*Bus)(nil)

// NewBus creates a new notification bus.
func NewBus(config BusConfig) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	return &Bus{
		config:  config,
		subs:    make(map[string]*subscription),
		closeCh: make(chan struct{}),
	}
}

type subscription struct {
	id       string
	handler  Handler
	queue    chan Notification
	done     chan struct{}
	stopOnce sync.Once
	bus      *Bus
}

// Notify delivers n to every subscriber.
func (b *Bus) Notify(ctx context.Context, n Notification) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if b.config.NonBlocking {
			select {
			case sub.queue <- n:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(n, sub.id)
				}
			}
			continue
		}

		select {
		case sub.queue <- n:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closeCh:
			return ErrBusClosed
		}
	}
	return nil
}

// Subscribe registers handler for every notification. Returns nil if the
// bus is closed.
func (b *Bus) Subscribe(handler Handler) Subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return nil
	}

	sub := &subscription{
		id:      strconv.FormatInt(b.nextID.Add(1), 10),
		handler: handler,
		queue:   make(chan Notification, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}
	b.subs[sub.id] = sub

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sub.process()
	}()
	return sub
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts down the bus and all subscriptions. It returns once every
// notification queued before Close has been handled.
func (b *Bus) Close() error {
	b.mu.Lock()
	if !b.closed.CompareAndSwap(false, true) {
		b.mu.Unlock()
		return nil
	}
	close(b.closeCh)
	for id, sub := range b.subs {
		sub.stop()
		delete(b.subs, id)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// process drains the queue until the subscription stops. Queued
// notifications are delivered before exit.
func (s *subscription) process() {
	for {
		select {
		case n := <-s.queue:
			s.handler(context.Background(), n)
		case <-s.done:
			for {
				select {
				case n := <-s.queue:
					s.handler(context.Background(), n)
				default:
					return
				}
			}
		}
	}
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.stop()
}
