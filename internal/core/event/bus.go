package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted while a refresh is
// running land in the back buffer; SwapBuffers at the end of the refresh
// makes them readable by DispatchAll.
type Bus struct {
	mu       sync.Mutex // only protects handler registration
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event into the back buffer.
func Emit[T any](b *Bus, event T) {
	if b == nil {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.back[t] = append(b.back[t], event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// Pending returns the number of events waiting in the back buffer.
func (b *Bus) Pending() int {
	n := 0
	for _, events := range b.back {
		n += len(events)
	}
	return n
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
// Events of one type are delivered in emit order; order across types is
// unspecified.
func (b *Bus) DispatchAll() {
	for t, events := range b.front {
		handlers := b.handlers[t]
		for _, ev := range events {
			for _, h := range handlers {
				// Subscribe and Emit use the same type key.
				callHandler(h, ev)
			}
		}
	}
}

func callHandler(handler any, event any) {
	reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(event)})
}
