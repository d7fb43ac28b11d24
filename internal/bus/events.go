package bus

import (
	"sort"
	"sync"

	"github.com/sowonlabs/crewx/internal/schema"
)

// EventKind enumerates the lifecycle events published while a root request
// is being processed.
type EventKind string

const (
	EventCallStackUpdated EventKind = "callStackUpdated"
	EventAgentStarted     EventKind = "agentStarted"
	EventAgentCompleted   EventKind = "agentCompleted"
)

// Event is implemented by every typed payload below.
type Event interface {
	Kind() EventKind
	// Root returns the id of the root request that produced the event.
	Root() string
}

// StackEntry is one frame of a published call-stack snapshot.
type StackEntry struct {
	Depth   int         `json:"depth"`
	AgentID string      `json:"agentId"`
	Mode    schema.Mode `json:"mode"`
}

// CallStackUpdated carries the full stack after a push or pop.
type CallStackUpdated struct {
	RootID string
	Stack  []StackEntry
}

// AgentStarted is published once an agent invocation holds its frame.
type AgentStarted struct {
	RootID  string
	AgentID string
	Mode    schema.Mode
}

// AgentCompleted is published when an invocation returns, on every path.
type AgentCompleted struct {
	RootID  string
	AgentID string
	Success bool
	Error   string
}

func (CallStackUpdated) Kind() EventKind { return EventCallStackUpdated }
func (AgentStarted) Kind() EventKind     { return EventAgentStarted }
func (AgentCompleted) Kind() EventKind   { return EventAgentCompleted }

func (e CallStackUpdated) Root() string { return e.RootID }
func (e AgentStarted) Root() string     { return e.RootID }
func (e AgentCompleted) Root() string   { return e.RootID }

// Publisher is the producer side of the event bus.
type Publisher interface {
	Publish(e Event)
}

// Handler receives events. It runs on the publishing goroutine, so it must
// not block for long and must not publish back into the same bus.
type Handler func(e Event)

type subscriber struct {
	id    uint64
	kinds map[EventKind]bool // nil = every kind
	fn    Handler
}

// EventBus fans every published event out to all current subscribers,
// synchronously and in subscription order.
type EventBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscriber
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[uint64]subscriber)}
}

// Subscription is returned by Subscribe; call Unsubscribe to stop delivery.
type Subscription struct {
	id  uint64
	bus *EventBus
}

// Unsubscribe removes the handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

// Subscribe registers fn for the given kinds, or for every kind when none
// are given.
func (b *EventBus) Subscribe(fn Handler, kinds ...EventKind) *Subscription {
	var filter map[EventKind]bool
	if len(kinds) > 0 {
		filter = make(map[EventKind]bool, len(kinds))
		for _, k := range kinds {
			filter[k] = true
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = subscriber{id: id, kinds: filter, fn: fn}
	b.mu.Unlock()

	return &Subscription{id: id, bus: b}
}

// Publish delivers e to every matching subscriber before returning.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kinds == nil || s.kinds[e.Kind()] {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	for _, s := range targets {
		s.fn(e)
	}
}

// subscriberCount reports how many handlers are registered.
func (b *EventBus) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
