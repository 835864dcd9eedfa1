package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type countingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *countingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *countingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// blockingSink parks inside Emit until released.
type blockingSink struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (s *blockingSink) Emit(_ context.Context, _ Event) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected a nil dispatcher when auditing is disabled")
	}

	// The nil dispatcher must be safe to use.
	d.Emit(context.Background(), Event{EventType: "login_success"})
	if d.Dropped() != 0 {
		t.Fatalf("Dropped = %d, want 0", d.Dropped())
	}
	d.Close()
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	for _, eventType := range []string{"login_failure", "login_failure", "login_success"} {
		d.Emit(context.Background(), Event{EventType: eventType, Identifier: "alice@example.com"})
	}

	for _, want := range []string{"login_failure", "login_failure", "login_success"} {
		select {
		case got := <-sink.Events():
			if got.EventType != want {
				t.Fatalf("event type = %q, want %q", got.EventType, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for an audit event")
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event enters the sink and parks there.
	d.Emit(context.Background(), Event{EventType: "logout"})
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the sink to pick up the first event")
	}

	// Second event occupies the buffer, third has nowhere to go.
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Emit(context.Background(), Event{EventType: "logout"})

	if got := d.Dropped(); got != 1 {
		t.Fatalf("Dropped = %d, want 1", got)
	}

	close(sink.release)
	d.Close()
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 10 {
		t.Fatalf("delivered %d events, want 10", got)
	}

	// Close is idempotent and Emit after Close is a no-op.
	d.Close()
	d.Emit(context.Background(), Event{EventType: "login_success"})
	if got := len(sink.snapshot()); got != 10 {
		t.Fatalf("delivered %d events after Close, want 10", got)
	}
}

func TestEmitHonorsContextWhenBlocking(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{EventType: "logout"})
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the sink to pick up the first event")
	}
	d.Emit(context.Background(), Event{EventType: "logout"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{EventType: "logout"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit must return once the context is canceled")
	}

	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "logout", UserID: "u1", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line failed: %v", err)
	}
	if first.EventType != "login_success" || first.UserID != "u1" || !first.Success {
		t.Fatalf("unexpected first event: %+v", first)
	}
}
