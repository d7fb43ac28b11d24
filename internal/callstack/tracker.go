// Package callstack records the nested agent invocations of one root request
// and enforces the recursion limit.
package callstack

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/schema"
)

// DefaultMaxDepth is used when a tracker is created with maxDepth <= 0.
const DefaultMaxDepth = 10

// ErrRecursionLimitExceeded is returned by Push when the stack is full.
var ErrRecursionLimitExceeded = errors.New("recursion limit exceeded")

// Frame is one active agent invocation.
type Frame struct {
	AgentID   string
	Mode      schema.Mode
	Depth     int
	StartedAt time.Time

	seq uint64
}

// Tracker owns the call stack of a single root request. Concurrent sibling
// branches of that root may push and pop; every mutation is serialised so
// the depth check and the append happen atomically.
type Tracker struct {
	rootID   string
	maxDepth int
	pub      bus.Publisher

	mu      sync.Mutex
	frames  []Frame
	seq     uint64
	version uint64 // bumped on every mutation

	pubMu     sync.Mutex
	published uint64
}

// New creates a tracker for the root request rootID. pub may be nil.
func New(rootID string, maxDepth int, pub bus.Publisher) *Tracker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Tracker{rootID: rootID, maxDepth: maxDepth, pub: pub}
}

func (t *Tracker) RootID() string { return t.rootID }
func (t *Tracker) MaxDepth() int  { return t.maxDepth }

// Push appends a frame for agentID at depth = current stack length.
// On failure nothing is appended and no Pop is owed.
func (t *Tracker) Push(agentID string, mode schema.Mode) (Frame, error) {
	t.mu.Lock()
	depth := len(t.frames)
	if depth >= t.maxDepth {
		t.mu.Unlock()
		return Frame{}, fmt.Errorf("%w: @%s at depth %d (max %d)", ErrRecursionLimitExceeded, agentID, depth, t.maxDepth)
	}
	t.seq++
	f := Frame{
		AgentID:   agentID,
		Mode:      mode,
		Depth:     depth,
		StartedAt: time.Now(),
		seq:       t.seq,
	}
	t.frames = append(t.frames, f)
	v, entries := t.mutatedLocked()
	t.mu.Unlock()

	t.publish(v, entries)
	return f, nil
}

// Pop removes the tail frame. It is a no-op on an empty stack.
func (t *Tracker) Pop() {
	t.mu.Lock()
	if len(t.frames) == 0 {
		t.mu.Unlock()
		return
	}
	t.frames = t.frames[:len(t.frames)-1]
	v, entries := t.mutatedLocked()
	t.mu.Unlock()

	t.publish(v, entries)
}

// Release removes exactly the frame returned by Push, wherever it sits.
// Siblings running concurrently finish in any order, so each one releases
// its own frame instead of whatever happens to be at the tail.
// Frames above the removed one keep the depth they were pushed at.
func (t *Tracker) Release(f Frame) {
	t.mu.Lock()
	idx := -1
	for i := len(t.frames) - 1; i >= 0; i-- {
		if t.frames[i].seq == f.seq {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return
	}
	t.frames = append(t.frames[:idx], t.frames[idx+1:]...)
	v, entries := t.mutatedLocked()
	t.mu.Unlock()

	t.publish(v, entries)
}

// CurrentDepth returns the number of frames on the stack.
func (t *Tracker) CurrentDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

// Snapshot returns a copy of the stack, bottom first.
func (t *Tracker) Snapshot() []Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Frame, len(t.frames))
	copy(out, t.frames)
	return out
}

// DetectCycle reports whether agentID already has a frame on the stack.
// It is informational; only the depth limit rejects a push.
func (t *Tracker) DetectCycle(agentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.frames {
		if f.AgentID == agentID {
			return true
		}
	}
	return false
}

func (t *Tracker) mutatedLocked() (uint64, []bus.StackEntry) {
	t.version++
	entries := make([]bus.StackEntry, len(t.frames))
	for i, f := range t.frames {
		entries[i] = bus.StackEntry{Depth: f.Depth, AgentID: f.AgentID, Mode: f.Mode}
	}
	return t.version, entries
}

// publish runs outside mu so handlers may read the tracker. Snapshots go out
// in mutation order: one overtaken by a newer snapshot from a concurrent
// branch is dropped, so the last event always matches the stack.
// Handlers must not push or pop on the same tracker.
func (t *Tracker) publish(version uint64, entries []bus.StackEntry) {
	if t.pub == nil {
		return
	}
	t.pubMu.Lock()
	defer t.pubMu.Unlock()
	if version <= t.published {
		return
	}
	t.published = version
	t.pub.Publish(bus.CallStackUpdated{RootID: t.rootID, Stack: entries})
}
