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

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{Type: "login_success", AccountID: "acct-1", Success: true})
	}
	d.Close()

	for i := 0; i < 3; i++ {
		select {
		case ev := <-sink.Events():
			if ev.Type != "login_success" || ev.AccountID != "acct-1" {
				t.Fatalf("unexpected event %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}

	d.Emit(context.Background(), Event{Type: "after_close"})
	select {
	case ev := <-sink.Events():
		t.Fatalf("event emitted after close: %+v", ev)
	default:
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, NoOpSink{})
	if d != nil {
		t.Fatalf("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{Type: "ignored"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("nil dispatcher must report zero drops")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{Type: "refresh_reuse", SessionID: "sid-1", Reason: "reuse_detected"})
	sink.Emit(context.Background(), Event{Type: "logout", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if ev.Reason != "reuse_detected" || ev.SessionID != "sid-1" {
		t.Fatalf("unexpected decoded event %+v", ev)
	}
}

type ctxKey struct{}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	values []any
	bounds []bool
}

func (s *recordingSink) Emit(ctx context.Context, event Event) {
	_, hasDeadline := ctx.Deadline()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.values = append(s.values, ctx.Value(ctxKey{}))
	s.bounds = append(s.bounds, hasDeadline && ctx.Err() == nil)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDetachesRequestContext(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, SinkTimeout: time.Minute}, sink)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	d.Emit(ctx, Event{Type: "logout"})
	cancel()
	d.Close()

	if sink.count() != 1 {
		t.Fatalf("expected 1 delivered event, got %d", sink.count())
	}
	if sink.values[0] != "req-1" {
		t.Fatalf("request values must reach the sink, got %v", sink.values[0])
	}
	if !sink.bounds[0] {
		t.Fatalf("sink context must carry a live deadline")
	}
}

func TestDispatcherCountsEmitsAfterClose(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, NoOpSink{})
	d.Close()
	d.Emit(context.Background(), Event{Type: "late"})
	d.Emit(context.Background(), Event{Type: "late"})
	if got := d.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestDispatcherAccountsForEveryEventRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		sink := &recordingSink{}
		d := NewDispatcher(Config{Enabled: true, BufferSize: 64, DropIfFull: true}, sink)

		const senders, perSender = 8, 16
		var wg sync.WaitGroup
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perSender; j++ {
					d.Emit(context.Background(), Event{Type: "login_success"})
				}
			}()
		}
		d.Close()
		wg.Wait()

		if got := uint64(sink.count()) + d.Dropped(); got != senders*perSender {
			t.Fatalf("round %d: delivered+dropped = %d, want %d", round, got, senders*perSender)
		}
	}
}
