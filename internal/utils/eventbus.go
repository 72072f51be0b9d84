package utils

import (
	"context"
	"sync"
)

type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type Handler func(event Event)

// EventBus fans published events out to subscribers from a single dispatch goroutine.
// Publish never blocks: when the buffer is full the event is dropped and false is returned.
type EventBus struct {
	subscribers map[string][]Handler
	events      chan Event
	mu          sync.RWMutex
}

func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 100
	}
	return &EventBus{
		subscribers: make(map[string][]Handler),
		events:      make(chan Event, buffer),
	}
}

func (eb *EventBus) Publish(event string, data interface{}) bool {
	e := Event{Event: event, Data: data}
	select {
	case eb.events <- e:
		return true
	default:
		return false
	}
}

func (eb *EventBus) Subscribe(event string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[event] = append(eb.subscribers[event], handler)
}

func (eb *EventBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-eb.events:
			eb.dispatch(e)
		}
	}
}

func (eb *EventBus) dispatch(e Event) {
	eb.mu.RLock()
	handlers := append([]Handler(nil), eb.subscribers[e.Event]...)
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
