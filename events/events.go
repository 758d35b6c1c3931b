package events

import "sync"

// EventHandler defines a function type where its input type is the generic type.
type EventHandler[T any] func(T)

// EventEmitter describes a provider which can subscribe EventHandler methods for callback when the event type
// (generic) is published. The zero value is ready to use, and it is safe for concurrent use.
type EventEmitter[T any] struct {
	lock          sync.Mutex
	subscriptions []EventHandler[T]
}

// Publish emits the provided event by calling every EventHandler subscribed, in subscription order.
func (e *EventEmitter[T]) Publish(event T) {
	e.lock.Lock()
	subscriptions := e.subscriptions
	e.lock.Unlock()

	for _, subscription := range subscriptions {
		subscription(event)
	}
}

// Subscribe adds an EventHandler to the list of subscribed EventHandler objects for this emitter. When an event is
// published, the callback will be triggered with the event data.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) {
	e.lock.Lock()
	defer e.lock.Unlock()
	// Copy on write, so a Publish in progress keeps the slice it started with.
	subscriptions := make([]EventHandler[T], len(e.subscriptions), len(e.subscriptions)+1)
	copy(subscriptions, e.subscriptions)
	e.subscriptions = append(subscriptions, callback)
}
