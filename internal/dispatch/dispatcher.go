// Package dispatch fans unsolicited push messages out to registered
// listeners, preserving per-event registration order.
package dispatch

import (
	"encoding/json"
	"sync"

	"github.com/luciancaetano/ddpnet"
)

type registration struct {
	id ddpnet.ListenerID
	l  ddpnet.Listener
}

// Dispatcher maps event names to ordered listener lists. Listeners may
// be added and removed concurrently with Fire; an in-progress pass runs
// against the listener set snapshotted when it started, so a listener
// added or removed from inside a callback takes effect on the next pass.
type Dispatcher struct {
	mu        sync.Mutex
	nextID    ddpnet.ListenerID
	listeners map[string][]registration
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{listeners: make(map[string][]registration)}
}

// Add registers l under event, after every listener already registered
// there. The returned id is the handle for Remove.
func (d *Dispatcher) Add(event string, l ddpnet.Listener) ddpnet.ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners[event] = append(d.listeners[event], registration{id: id, l: l})
	return id
}

// Remove unregisters the listener id from event. Returns false if it is
// not registered; removal of an absent listener is a no-op, never a
// failure, and does not alter other listeners.
func (d *Dispatcher) Remove(event string, id ddpnet.ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.listeners[event]
	for i, reg := range regs {
		if reg.id == id {
			// Copy-on-remove keeps any snapshot taken by an in-progress
			// Fire pass intact.
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			if len(next) == 0 {
				delete(d.listeners, event)
			} else {
				d.listeners[event] = next
			}
			return true
		}
	}
	return false
}

// Fire invokes every listener registered under event, in registration
// order, each handed the same payload. Invocation is sequential: listener
// N+1 is not submitted until listener N's Invoke returns. A listener
// whose work should overlap the rest of the system hands off to its own
// goroutine (ddpnet.AsyncListenerFunc); the guarantee here is submission
// order, not completion order.
func (d *Dispatcher) Fire(event string, payload json.RawMessage) {
	d.mu.Lock()
	snapshot := d.listeners[event]
	d.mu.Unlock()

	for _, reg := range snapshot {
		reg.l.Invoke(payload)
	}
}

// Len returns the number of listeners registered under event.
func (d *Dispatcher) Len(event string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[event])
}
