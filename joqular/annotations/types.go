// Package annotations provides a low-overhead event system for tracking query
// execution and store writes.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following a hierarchical naming pattern
const (
	// Query lifecycle
	QueryInvoked   = "query/invoked"
	QueryCompleted = "query/completed"

	// Candidate accumulation
	AliasScan   = "alias/scan"
	AliasPruned = "alias/pruned"

	// Joins
	JoinResolved     = "join/resolved"
	JoinCrossProduct = "join/cross-product"

	// Writes
	WriteInsert = "write/insert"
	WriteUpdate = "write/update"
	WriteDelete = "write/delete"

	// Errors
	ErrorQueryBinding = "error/query.binding"
	ErrorBackend      = "error/backend"
)

// Event represents a single annotation event.
type Event struct {
	Name    string                 // Event name using the constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Multi fans events out to several handlers. Nil handlers are skipped.
func Multi(handlers ...Handler) Handler {
	var active []Handler
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(event Event) {
		for _, h := range active {
			h(event)
		}
	}
}

// Collector accumulates events during one query or command.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event
	mu      sync.Mutex
}

// NewCollector creates a collector. A nil handler disables collection.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 32),
	}
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	return c.handler
}

// Add records a new event. Safe for concurrent use.
func (c *Collector) Add(event Event) {
	if c == nil || !c.enabled {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	c.handler(event)
}

// AddTiming records an event ending now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if c == nil || !c.enabled {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Reset clears the collected events. The handler is kept.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
