package event

import (
	"reflect"
	"sync"
)

type handler struct {
	id uint64
	fn any
}

// Bus is a double-buffered event bus. Events emitted in frame N are
// delivered in frame N+1. SwapBuffers is called at the start of PreUpdate.
type Bus struct {
	mu       sync.Mutex // only protects handler registration
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]handler
	nextID   uint64
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]handler),
	}
}

// Subscription removes its handler when cancelled.
type Subscription struct {
	bus *Bus
	typ reflect.Type
	id  uint64
}

// Cancel unsubscribes the handler. Cancelling twice is a no-op.
func (s Subscription) Cancel() {
	if s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	hs := s.bus.handlers[s.typ]
	for i, h := range hs {
		if h.id == s.id {
			s.bus.handlers[s.typ] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event into the back buffer (delivered next frame).
func Emit[T any](b *Bus, event T) {
	t := typeOf[T]()
	b.back[t] = append(b.back[t], event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeOf[T]()
	b.nextID++
	b.handlers[t] = append(b.handlers[t], handler{id: b.nextID, fn: fn})
	return Subscription{bus: b, typ: t, id: b.nextID}
}

// Handlers returns the number of handlers subscribed to T.
func Handlers[T any](b *Bus) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[typeOf[T]()])
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
func (b *Bus) DispatchAll() {
	for t, events := range b.front {
		if len(events) == 0 {
			continue
		}
		b.mu.Lock()
		hs := append([]handler(nil), b.handlers[t]...)
		b.mu.Unlock()
		for _, ev := range events {
			for _, h := range hs {
				callHandler(h.fn, ev)
			}
		}
	}
}

func callHandler(fn any, event any) {
	reflect.ValueOf(fn).Call([]reflect.Value{reflect.ValueOf(event)})
}
