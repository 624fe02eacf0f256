package plugin

import "encoding/json"

// Notification is one host-originated event as handed to a callback.
type Notification struct {
	Event string
	Data  json.RawMessage
}

// Callback is a subscription handle. Handles compare by pointer, so the
// same handle must be passed to Off that was passed to On.
type Callback struct {
	fn func(Notification)
}

// NewCallback wraps fn in a subscription handle.
func NewCallback(fn func(Notification)) *Callback {
	return &Callback{fn: fn}
}

// Invoke calls the wrapped function. Nil handles are ignored.
func (cb *Callback) Invoke(n Notification) {
	if !cb.valid() {
		return
	}
	cb.fn(n)
}

func (cb *Callback) valid() bool {
	return cb != nil && cb.fn != nil
}

// registry maps event names to callbacks in insertion order. Entries are
// created on first add and never deleted.
type registry struct {
	entries map[string][]*Callback
}

func newRegistry() registry {
	return registry{entries: make(map[string][]*Callback)}
}

func (r registry) add(event string, cb *Callback) int {
	r.entries[event] = append(r.entries[event], cb)
	return len(r.entries[event])
}

// remove drops the first occurrence of cb.
func (r registry) remove(event string, cb *Callback) bool {
	list, ok := r.entries[event]
	if !ok {
		return false
	}
	for i, item := range list {
		if item == cb {
			r.entries[event] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (r registry) snapshot(event string) []*Callback {
	list, ok := r.entries[event]
	if !ok {
		return nil
	}
	out := make([]*Callback, len(list))
	copy(out, list)
	return out
}

func (r registry) has(event string) bool {
	_, ok := r.entries[event]
	return ok
}
