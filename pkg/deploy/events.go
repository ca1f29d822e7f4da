package deploy

import (
	"sync"
	"time"
)

// EventType identifies a lifecycle event.
type EventType int

const (
	EventPlanBuilt EventType = iota
	EventUnitStarted
	EventRetryAttempt
	EventUnitSucceeded
	EventUnitFailed
	EventUnitSkipped
	EventDeviceCompleted
	EventAllCompleted
	EventSessionProgress
	EventWarning
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventPlanBuilt:
		return "plan_built"
	case EventUnitStarted:
		return "unit_started"
	case EventRetryAttempt:
		return "retry_attempt"
	case EventUnitSucceeded:
		return "unit_succeeded"
	case EventUnitFailed:
		return "unit_failed"
	case EventUnitSkipped:
		return "unit_skipped"
	case EventDeviceCompleted:
		return "device_completed"
	case EventAllCompleted:
		return "all_completed"
	case EventSessionProgress:
		return "session_progress"
	case EventWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Event is one entry on the ordered lifecycle stream.
type Event struct {
	Type        EventType
	Serial      string
	PackageName string
	File        string
	Message     string
	Attempt     int
	Bytes       int64
	TotalBytes  int64
	Err         error
	Summary     *InstallationSummary
	Time        time.Time
}

// EventBus carries lifecycle events to the external subscriber over a single
// ordered channel. It is owned by one orchestrator run.
type EventBus struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewEventBus creates a bus with the given buffer size.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventBus{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the stream.
func (b *EventBus) Events() <-chan Event {
	return b.ch
}

// Publish pushes an event. Events published after Close are dropped.
func (b *EventBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.ch <- e
}

// Close ends the stream. Safe to call more than once.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
