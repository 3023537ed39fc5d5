// Package events distributes collection lifecycle events to observers such
// as the log and connected websocket clients.
package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// Event is a domain event delivered to observers.
type Event struct {
	// Type is the event type, e.g. "collection:ranked".
	Type string

	// Payload is one of the typed payload structs in messages.go.
	Payload any

	// Time is when the event was created.
	Time time.Time

	Context context.Context
}

// Observer receives dispatched events.
type Observer interface {
	// OnEvent handles an event. Errors are logged by the dispatcher and do
	// not stop delivery to other observers.
	OnEvent(event Event) error

	// Name identifies the observer in logs.
	Name() string

	// ShouldHandle filters which event types the observer receives.
	ShouldHandle(eventType string) bool
}

// EventDispatcher fans events out to registered observers.
// Safe for concurrent use.
type EventDispatcher struct {
	observers []Observer
	mu        sync.RWMutex
}

// NewEventDispatcher creates an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{}
}

// Register adds an observer.
func (d *EventDispatcher) Register(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers = append(d.observers, observer)
	log.Printf("[EventDispatcher] Registered observer: %s", observer.Name())
}

// Unregister removes an observer. Unknown observers are ignored.
func (d *EventDispatcher) Unregister(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, obs := range d.observers {
		if obs == observer {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			log.Printf("[EventDispatcher] Unregistered observer: %s", observer.Name())
			return
		}
	}
}

func (d *EventDispatcher) snapshot() []Observer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	return observers
}

// Dispatch notifies observers sequentially in registration order.
// A nil dispatcher drops the event.
func (d *EventDispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	for _, observer := range d.snapshot() {
		if observer.ShouldHandle(event.Type) {
			notify(observer, event)
		}
	}
}

// DispatchAsync notifies each observer in its own goroutine.
func (d *EventDispatcher) DispatchAsync(event Event) {
	if d == nil {
		return
	}
	for _, observer := range d.snapshot() {
		if observer.ShouldHandle(event.Type) {
			go notify(observer, event)
		}
	}
}

func notify(observer Observer, event Event) {
	if err := observer.OnEvent(event); err != nil {
		log.Printf("[EventDispatcher] Observer %s failed to handle event %s: %v",
			observer.Name(), event.Type, err)
	}
}

// ObserverCount returns the number of registered observers.
func (d *EventDispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// NewTypedEvent creates an event carrying a typed payload.
func NewTypedEvent[T any](ctx context.Context, eventType string, payload T) Event {
	return Event{
		Type:    eventType,
		Payload: payload,
		Time:    time.Now().UTC(),
		Context: ctx,
	}
}

// GetTypedData extracts the payload of an event as T.
func GetTypedData[T any](event Event) (T, bool) {
	typed, ok := event.Payload.(T)
	return typed, ok
}
