package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackdropbox/blackdropbox/internal/constants"
	"github.com/blackdropbox/blackdropbox/internal/events"
	"github.com/blackdropbox/blackdropbox/internal/services"
)

// Toast is a short-lived notification.
type Toast struct {
	ID        string              `json:"id" yaml:"id"`
	Message   string              `json:"message" yaml:"message"`
	Level     services.ToastLevel `json:"level" yaml:"level"`
	CreatedAt time.Time           `json:"createdAt" yaml:"createdAt"`
}

// ToastCenter holds the visible toasts. Each toast expires after its TTL.
// It implements services.Notifier.
type ToastCenter struct {
	bus *events.EventBus
	ttl time.Duration

	mu     sync.Mutex
	toasts []Toast
	timers map[string]*time.Timer
	closed bool
}

// NewToastCenter creates a toast center. ttl <= 0 selects constants.ToastTTL.
func NewToastCenter(bus *events.EventBus, ttl time.Duration) *ToastCenter {
	if ttl <= 0 {
		ttl = constants.ToastTTL
	}
	return &ToastCenter{
		bus:    bus,
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

// Notify shows a toast.
func (c *ToastCenter) Notify(level services.ToastLevel, message string) {
	c.Show(level, message)
}

// Show adds a toast and schedules its expiry.
func (c *ToastCenter) Show(level services.ToastLevel, message string) Toast {
	t := Toast{
		ID:        uuid.NewString(),
		Message:   message,
		Level:     level,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return t
	}
	c.toasts = append(c.toasts, t)
	c.timers[t.ID] = time.AfterFunc(c.ttl, func() { c.expire(t) })
	c.mu.Unlock()

	c.bus.PublishToast(events.EventToast, t.ID, t.Message, string(t.Level))
	return t
}

func (c *ToastCenter) expire(t Toast) {
	if c.remove(t.ID) {
		c.bus.PublishToast(events.EventToastExpired, t.ID, t.Message, string(t.Level))
	}
}

// Dismiss removes a toast before it expires.
func (c *ToastCenter) Dismiss(id string) bool {
	return c.remove(id)
}

func (c *ToastCenter) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the visible toasts, oldest first.
func (c *ToastCenter) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, len(c.toasts))
	copy(out, c.toasts)
	return out
}

// Close stops all expiry timers and drops visible toasts.
func (c *ToastCenter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.toasts = nil
}
