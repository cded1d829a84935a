package internal

import (
	"sync"

	"github.com/asaskevich/EventBus"

	"github.com/fazecat/hpsscanner/Internal/utils/scanner"
)

// EventFeed keeps the most recent tracker transitions for /api/events.
type EventFeed struct {
	mu     sync.RWMutex
	events []scanner.Event
	limit  int
}

func NewEventFeed(limit int) *EventFeed {
	if limit <= 0 {
		limit = 200
	}
	return &EventFeed{limit: limit}
}

// Attach subscribes the feed to every transition topic on the bus.
func (f *EventFeed) Attach(bus EventBus.Bus) error {
	for _, topic := range []string{scanner.TopicSignalFired, scanner.TopicSignalExited, scanner.TopicGoldenCaptured} {
		if err := bus.Subscribe(topic, f.record); err != nil {
			return err
		}
	}
	return nil
}

func (f *EventFeed) record(ev scanner.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if over := len(f.events) - f.limit; over > 0 {
		f.events = append([]scanner.Event(nil), f.events[over:]...)
	}
}

// Recent returns the kept events, oldest first.
func (f *EventFeed) Recent() []scanner.Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]scanner.Event{}, f.events...)
}

func (f *EventFeed) Clear() {
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}
