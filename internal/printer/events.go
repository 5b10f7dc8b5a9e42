package printer

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType names a printer or job event
type EventType string

const (
	EventPrinterAdded        EventType = "printer.added"
	EventPrinterRemoved      EventType = "printer.removed"
	EventPrinterRenamed      EventType = "printer.renamed"
	EventPrinterConnected    EventType = "printer.connected"
	EventPrinterDisconnected EventType = "printer.disconnected"
	EventPrinterStatus       EventType = "printer.status"

	EventJobQueued    EventType = "job.queued"
	EventJobPrinting  EventType = "job.printing"
	EventJobRetrying  EventType = "job.retrying"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
)

// Event is published on the EventBus
type Event struct {
	Type      EventType   `json:"type"`
	PrinterID string      `json:"printer_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	eventBufferSize      = 1000
	subscriberBufferSize = 100
)

type subscription struct {
	ch    chan Event
	types map[EventType]bool
}

func (s *subscription) wants(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// EventBus fans events out to subscribers without ever blocking publishers
type EventBus struct {
	subscribers []*subscription
	events      chan Event
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus and starts its distribution loop
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}

	eb := &EventBus{
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("component", "events")),
	}
	go eb.run()
	return eb
}

func (eb *EventBus) run() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Publish queues an event. A full bus drops the event.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-eb.done:
		return
	default:
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given.
func (eb *EventBus) Subscribe(types ...EventType) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	sub := &subscription{ch: make(chan Event, subscriberBufferSize)}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	eb.subscribers = append(eb.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for i, sub := range eb.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Close stops distribution and closes all subscriber channels
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() {
		close(eb.done)

		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		for _, sub := range eb.subscribers {
			close(sub.ch)
		}
		eb.subscribers = nil
	})
}

func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			eb.logger.Warn("Subscriber is slow, dropping event",
				zap.String("event_type", string(event.Type)),
			)
		}
	}
}
