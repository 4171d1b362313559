// Package events is a typed, in-process event bus for run lifecycle events.
//
// It is not durable. Consumers that need a record of past runs subscribe and
// write to internal/history.
package events

import (
	"context"
	"reflect"
	"sync"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
)

// Bus delivers published events to typed subscribers. Publish blocks until
// every matching subscriber has accepted the event, has unsubscribed, or ctx
// is canceled.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	nextID uint64
	subs   map[reflect.Type]map[uint64]sink
}

// sink is the type-erased side of a subscription.
type sink interface {
	deliver(ctx context.Context, evt any) error
	stop()
}

// subscription owns the channel handed to the subscriber. Deliveries hold mu
// shared while they wait on ch; stop closes done to release them and then
// takes mu exclusively, so ch is never closed under a pending send.
type subscription[T any] struct {
	ch   chan T
	done chan struct{}

	mu      sync.RWMutex
	stopped bool
	once    sync.Once
}

func (s *subscription[T]) deliver(ctx context.Context, evt any) error {
	v, ok := evt.(T)
	if !ok {
		return ferrors.InternalError("event type mismatch").
			WithContext("expected", reflect.TypeFor[T]().String()).
			WithContext("actual", reflect.TypeOf(evt).String()).
			Build()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return nil
	}
	select {
	case s.ch <- v:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").
			WithContext("event_type", reflect.TypeFor[T]().String()).
			Build()
	}
}

func (s *subscription[T]) stop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.stopped = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// NewBus creates an open bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]sink)}
}

// Subscribe registers a subscription for events of type T. The returned
// function unsubscribes and closes the channel; it is safe to call while a
// Publish is blocked on the channel, and more than once.
//
// If T is an interface, published events whose concrete type implements T are
// delivered. For concrete T the type must match exactly.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	sub := &subscription[T]{ch: make(chan T, buffer), done: make(chan struct{})}
	eventType := reflect.TypeFor[T]()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.stop()
		return sub.ch, func() {}
	}
	b.nextID++
	id := b.nextID
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]sink)
	}
	b.subs[eventType][id] = sub
	b.mu.Unlock()

	return sub.ch, func() {
		b.mu.Lock()
		if typeSubs, ok := b.subs[eventType]; ok {
			delete(typeSubs, id)
			if len(typeSubs) == 0 {
				delete(b.subs, eventType)
			}
		}
		b.mu.Unlock()
		sub.stop()
	}
}

// SubscriberCount returns the number of active subscribers for events of type T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeFor[T]()])
}

// Publish delivers an event to all matching subscribers. A nil bus drops the
// event, so publishers need no guard when no bus is configured.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if b == nil {
		return nil
	}
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	targets, err := b.targets(reflect.TypeOf(evt))
	if err != nil {
		return err
	}
	for _, s := range targets {
		if err := s.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) targets(evtType reflect.Type) ([]sink, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ferrors.RuntimeError("event bus is closed").Build()
	}
	var out []sink
	for subType, typeSubs := range b.subs {
		if subType != evtType && (subType.Kind() != reflect.Interface || !evtType.Implements(subType)) {
			continue
		}
		for _, s := range typeSubs {
			out = append(out, s)
		}
	}
	return out, nil
}

// Close closes the bus and every subscription channel. Publishers blocked on
// a subscriber return without error.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[reflect.Type]map[uint64]sink)
	b.mu.Unlock()

	for _, typeSubs := range subs {
		for _, s := range typeSubs {
			s.stop()
		}
	}
}
