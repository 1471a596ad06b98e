package transfer

import (
	"context"
)

// Slots bounds the number of uploads running at once.
// A zero limit means unlimited.
type Slots struct {
	sem chan struct{}
}

// NewSlots creates a limiter for max concurrent uploads.
func NewSlots(max int) *Slots {
	if max <= 0 {
		return &Slots{}
	}
	return &Slots{sem: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Slots) Acquire(ctx context.Context) error {
	if s.sem == nil {
		return ctx.Err()
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s *Slots) Release() {
	if s.sem == nil {
		return
	}
	<-s.sem
}

// Limit returns the configured maximum, 0 for unlimited.
func (s *Slots) Limit() int {
	return cap(s.sem)
}
