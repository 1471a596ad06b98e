package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog EventType = "log"

	// Upload tracker events
	EventUploadQueued    EventType = "upload_queued"    // Task allocated, transfer starting
	EventUploadProgress  EventType = "upload_progress"  // Progress percentage changed
	EventUploadCompleted EventType = "upload_completed" // Transfer acknowledged by storage
	EventUploadFailed    EventType = "upload_failed"    // Transfer failed, task stays until dismissed
	EventUploadRemoved   EventType = "upload_removed"   // Task left the active set

	// File catalog events
	EventCatalogRefreshed EventType = "catalog_refreshed" // New snapshot installed
	EventCatalogFailed    EventType = "catalog_failed"    // Listing failed, previous snapshot kept
	EventFileDeleted      EventType = "file_deleted"      // Object removed from storage and snapshot

	// Dashboard events
	EventToast          EventType = "toast"           // Toast shown
	EventToastExpired   EventType = "toast_expired"   // Toast TTL elapsed
	EventSessionChanged EventType = "session_changed" // Session gate resolved or reset
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level     LogLevel
	Message   string
	Component string
	Error     error
}

// UploadEvent represents upload tracker transitions
type UploadEvent struct {
	BaseEvent
	TaskID   string
	Name     string // Display name (also the object key)
	Size     int64
	Progress int // 0 to 100
	Error    string
}

// CatalogEvent represents file catalog changes
type CatalogEvent struct {
	BaseEvent
	Count     int
	TotalSize int64
	Key       string // set for EventFileDeleted
	Error     error  // set for EventCatalogFailed
}

// ToastEvent represents a transient notification
type ToastEvent struct {
	BaseEvent
	ID      string
	Message string
	Level   string // "success", "error", "info"
}

// SessionEvent represents session gate transitions
type SessionEvent struct {
	BaseEvent
	State       string // "pending", "authenticated", "unauthenticated"
	DisplayName string
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to the given event types
func (eb *EventBus) Subscribe(eventTypes ...EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return closedChannel()
	}

	ch := make(chan Event, eb.bufferSize)
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], ch)
	}
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return closedChannel()
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

func closedChannel() <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// A nil bus is a valid no-op sink.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		eb.send(ch, event)
	}
	for _, ch := range eb.all {
		eb.send(ch, event)
	}
}

func (eb *EventBus) send(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		// Channel full - event dropped
		eb.droppedEvents.Add(1)
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	// A channel subscribed to several types appears several times
	seen := make(map[chan Event]bool)
	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			if !seen[ch] {
				seen[ch] = true
				close(ch)
			}
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, component string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: base(EventLog),
		Level:     level,
		Message:   message,
		Component: component,
		Error:     err,
	})
}

// PublishUpload is a convenience method for publishing upload tracker events
func (eb *EventBus) PublishUpload(eventType EventType, taskID, name string, size int64, progress int, errMsg string) {
	eb.Publish(&UploadEvent{
		BaseEvent: base(eventType),
		TaskID:    taskID,
		Name:      name,
		Size:      size,
		Progress:  progress,
		Error:     errMsg,
	})
}

// PublishCatalog is a convenience method for publishing catalog events
func (eb *EventBus) PublishCatalog(eventType EventType, count int, totalSize int64, key string, err error) {
	eb.Publish(&CatalogEvent{
		BaseEvent: base(eventType),
		Count:     count,
		TotalSize: totalSize,
		Key:       key,
		Error:     err,
	})
}

// PublishToast is a convenience method for publishing toast events
func (eb *EventBus) PublishToast(eventType EventType, id, message, level string) {
	eb.Publish(&ToastEvent{
		BaseEvent: base(eventType),
		ID:        id,
		Message:   message,
		Level:     level,
	})
}

// PublishSession is a convenience method for publishing session gate events
func (eb *EventBus) PublishSession(state, displayName string) {
	eb.Publish(&SessionEvent{
		BaseEvent:   base(EventSessionChanged),
		State:       state,
		DisplayName: displayName,
	})
}

// Unsubscribe removes a subscription channel from every event type and the
// all-events list. This prevents leaks from abandoned subscriptions.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		eb.subscribers[eventType] = removeChannel(subscribers, ch)
	}
	eb.all = removeChannel(eb.all, ch)
}

func removeChannel(list []chan Event, ch <-chan Event) []chan Event {
	for i, subCh := range list {
		if subCh == ch {
			list[i] = list[len(list)-1]
			return list[:len(list)-1]
		}
	}
	return list
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
