package registry

import "github.com/wippyai/framehost/errors"

// ErrExhausted is returned by TryInsert once every handle has been issued.
var ErrExhausted = errors.New(errors.PhaseRegistry, errors.KindInvalidHandle).
	Detail("handle space exhausted").
	Build()

// Handle is an opaque reference to a record in a Table.
// The first insert yields 0; handles are never reused.
type Handle uint32

// EventType identifies a registry lifecycle notification.
type EventType uint8

const (
	EventInserted EventType = iota
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventInserted:
		return "inserted"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a registry lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives notifications about registry lifecycle events.
// Observers run synchronously on the goroutine that mutated the table.
type Observer interface {
	OnRegistryEvent(Event)
}
