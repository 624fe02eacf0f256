package bridge

import "sync"

// Message is one inbound envelope as observed by a window.
type Message struct {
	// Source identifies the sending context; compare with Parent.SourceID.
	Source   string
	Origin   string
	Envelope Envelope
}

// StorageChange is one local-storage mutation notification.
type StorageChange struct {
	Key      string
	OldValue string
	NewValue string
}

type Listener func(Message)

type StorageListener func(StorageChange)

// Window is the plugin's own execution context.
type Window interface {
	Origin() string
	// Parent returns the embedding context, or false when top-level.
	Parent() (Parent, bool)
	// AddMessageListener registers fn and returns its remover. Removers are
	// idempotent.
	AddMessageListener(fn Listener) (remove func())
	AddStorageListener(fn StorageListener) (remove func())
}

// Parent is the reference a window holds to its embedding context.
type Parent interface {
	SourceID() string
	// IsHost reads the host capability flag through the parent reference.
	IsHost() (bool, error)
	// PostMessage delivers env only if the parent's origin matches
	// targetOrigin; mismatches are dropped silently.
	PostMessage(env Envelope, targetOrigin string) error
}

// ListenerSet is a concurrency-safe registry of callbacks.
type ListenerSet[T any] struct {
	mu     sync.Mutex
	nextID uint64
	items  map[uint64]func(T)
	order  []uint64
}

// Add registers fn and returns an idempotent remover.
func (s *ListenerSet[T]) Add(fn func(T)) func() {
	s.mu.Lock()
	if s.items == nil {
		s.items = make(map[uint64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.items[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.items, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit calls every listener registered at call time, in registration order.
// Listeners may remove themselves while being called.
func (s *ListenerSet[T]) Emit(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.items[id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (s *ListenerSet[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
