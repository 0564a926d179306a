// Package events broadcasts module lifecycle notifications. The bus fans
// each published event out to every subscriber channel without blocking;
// a subscriber that cannot keep up loses events rather than stalling the
// lifecycle path that published them.
package events

import (
	"sync"
	"time"

	"github.com/castellan/castellan/core"
)

// Type classifies a lifecycle event.
type Type string

const (
	// TypeLoaded fires when an instance is created.
	TypeLoaded Type = "module.loaded"
	// TypeStateChanged fires after any successful state transition.
	TypeStateChanged Type = "module.state_changed"
	// TypeFailed fires when a transition is rejected or a hook errors.
	TypeFailed Type = "module.failed"
	// TypeRemoved fires when an instance is removed.
	TypeRemoved Type = "module.removed"
)

// Event is one lifecycle notification. From and To are set for state
// changes; Op names the failed operation on TypeFailed.
type Event struct {
	Type   Type
	Module string
	From   core.State
	To     core.State
	Op     string
	Time   time.Time
}

// Bus fans events out to subscriber channels. All methods are safe for
// concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers ch for all future events. Give the channel a
// buffer; sends are non-blocking and drop when it is full. The bus never
// closes subscriber channels.
func (b *Bus) Subscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, ch)
}

// Publish delivers evt to every subscriber, stamping Time when unset.
func (b *Bus) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}

	b.mu.RLock()
	subs := append([]chan Event(nil), b.subs...)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
