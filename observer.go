package goSession

import "sync"

// stateBroadcaster fans session state transitions out to subscribers with
// last-value replay: a new subscriber immediately receives the current state
// and then every subsequent transition. Slow subscribers drop intermediate
// transitions rather than block the orchestrator (same backpressure policy as
// the audit dispatcher).
type stateBroadcaster struct {
	mu     sync.Mutex
	buffer int
	last   SessionState
	subs   map[uint64]chan SessionState
	nextID uint64
	closed bool
}

func newStateBroadcaster(buffer int, initial SessionState) *stateBroadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &stateBroadcaster{
		buffer: buffer,
		last:   initial,
		subs:   make(map[uint64]chan SessionState),
	}
}

// Subscribe registers a new observer. The returned channel carries the
// current state immediately, then every transition. The cancel func must be
// called when the observer loses interest; it closes the channel.
func (b *stateBroadcaster) Subscribe() (<-chan SessionState, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan SessionState, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	ch <- b.last

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish records s as the latest state and pushes it to every subscriber
// without blocking.
func (b *stateBroadcaster) Publish(s SessionState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.last = s
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			// Subscriber is not draining; it will still observe the latest
			// state on its next receive because Current() reads b.last.
		}
	}
}

// Last returns the most recently published state.
func (b *stateBroadcaster) Last() SessionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Close closes every subscriber channel. Further Publish calls are no-ops.
func (b *stateBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
