package breakpoint

import "sync"

// HitEvent reports that execution reached a managed breakpoint.
type HitEvent struct {
	Breakpoint *Record
}

// UpdateKind tells the frontend what changed about a breakpoint.
type UpdateKind int

const (
	UpdateAdded UpdateKind = iota
	UpdateChanged
	UpdateRemoved
	UpdateHit
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateAdded:
		return "new"
	case UpdateChanged:
		return "changed"
	case UpdateRemoved:
		return "removed"
	case UpdateHit:
		return "hit"
	default:
		return "unknown"
	}
}

// UpdateEvent reports a breakpoint state change for display sync.
type UpdateEvent struct {
	Kind       UpdateKind
	Breakpoint *Record
}

// Subscription identifies a registered handler.
type Subscription uint64

type observer[T any] struct {
	id Subscription
	fn func(T)
}

// Observers is an ordered handler registry. Handlers run synchronously on the
// publishing goroutine, in subscription order, outside the registry lock, so a
// handler may subscribe or unsubscribe without deadlocking.
type Observers[T any] struct {
	mu       sync.Mutex
	next     Subscription
	handlers []observer[T]
}

// Subscribe registers fn and returns its handle.
func (o *Observers[T]) Subscribe(fn func(T)) Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.next++
	o.handlers = append(o.handlers, observer[T]{id: o.next, fn: fn})
	return o.next
}

// Unsubscribe removes the handler. It reports whether the handle was registered.
func (o *Observers[T]) Unsubscribe(id Subscription) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, h := range o.handlers {
		if h.id == id {
			o.handlers = append(o.handlers[:i:i], o.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered handlers.
func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.handlers)
}

// Publish delivers ev to every handler and reports whether any was registered.
func (o *Observers[T]) Publish(ev T) bool {
	o.mu.Lock()
	handlers := make([]observer[T], len(o.handlers))
	copy(handlers, o.handlers)
	o.mu.Unlock()

	for _, h := range handlers {
		h.fn(ev)
	}
	return len(handlers) > 0
}
