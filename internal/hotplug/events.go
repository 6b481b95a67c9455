package hotplug

import (
	"context"

	"github.com/samajesteduroyaume/devman/internal/device"
)

// EventKind tags a hot-plug event variant.
type EventKind string

// Event kinds.
const (
	EventAdded   EventKind = "added"
	EventRemoved EventKind = "removed"
	EventChanged EventKind = "changed"
)

// Event is a hot-plug notification delivered to listeners. It carries
// no payload beyond the device ID: consumers re-query the registry for
// current state, which avoids stale snapshots racing with fast
// insert/remove cycles.
type Event struct {
	Kind EventKind `json:"kind"`
	ID   device.ID `json:"id"`
}

// Listener consumes hot-plug events.
//
// Listeners are called sequentially, in registration order, from the
// hot-plug worker. A listener must not block indefinitely; a failing
// listener is logged and does not stop delivery to later listeners.
type Listener interface {
	HandleHotplug(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, ev Event) error

// HandleHotplug implements Listener.
func (f ListenerFunc) HandleHotplug(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
