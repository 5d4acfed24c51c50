// Package events broadcasts client notifications to in-process subscribers.
package events

import (
	"context"
	"sync"
	"time"
)

// Topic names a notification.
type Topic string

const (
	TopicStateUpdated    Topic = "state.updated"
	TopicTreasuryUpdated Topic = "treasury.updated"
)

const defaultSubscriberBuffer = 16

// Event is one notification. Payload is a snapshot and must not be mutated.
type Event struct {
	Topic   Topic     `json:"topic"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher accepts notifications.
type Publisher interface {
	Publish(event Event)
}

// Bus fans events out to subscribers. A subscriber that falls behind loses
// events rather than stalling publishers.
type Bus struct {
	mutex       sync.RWMutex
	subscribers map[uint64]chan Event
	nextID      uint64
	buffer      int
	now         func() time.Time
}

// NewBus creates a bus whose subscribers buffer up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Bus{subscribers: map[uint64]chan Event{}, buffer: buffer, now: time.Now}
}

// Publish delivers event to every subscriber without blocking.
func (bus *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = bus.now()
	}
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	for _, subscriber := range bus.subscribers {
		select {
		case subscriber <- event:
		default:
		}
	}
}

// Subscribe returns a channel of events that is closed once ctx ends.
func (bus *Bus) Subscribe(ctx context.Context) <-chan Event {
	channel := make(chan Event, bus.buffer)
	bus.mutex.Lock()
	id := bus.nextID
	bus.nextID++
	bus.subscribers[id] = channel
	bus.mutex.Unlock()

	go func() {
		<-ctx.Done()
		bus.mutex.Lock()
		delete(bus.subscribers, id)
		bus.mutex.Unlock()
		close(channel)
	}()
	return channel
}

// Subscribers reports how many subscriptions are open.
func (bus *Bus) Subscribers() int {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	return len(bus.subscribers)
}
