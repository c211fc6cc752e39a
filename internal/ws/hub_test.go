package ws

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
	closed   bool
}

func (f *fakeSubscriber) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.payloads = append(f.payloads, append([]byte(nil), b...))
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSubscriber) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

func (f *fakeSubscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestHubBroadcastsToTopicAndDropsFailingClients(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	good := &fakeSubscriber{}
	bad := &fakeSubscriber{fail: true}
	other := &fakeSubscriber{}
	hub.Register("gemstones", good)
	hub.Register("gemstones", bad)
	hub.Register("elsewhere", other)

	hub.Broadcast("gemstones", []byte(`{"n":1}`))
	waitFor(t, time.Second, func() bool { return len(good.received()) == 1 })
	waitFor(t, time.Second, bad.isClosed)
	waitFor(t, time.Second, func() bool { return hub.Subscribers("gemstones") == 1 })

	hub.Broadcast("gemstones", []byte(`{"n":2}`))
	waitFor(t, time.Second, func() bool { return len(good.received()) == 2 })
	if string(good.received()[1]) != `{"n":2}` {
		t.Fatalf("unexpected second payload %q", good.received()[1])
	}
	if len(other.received()) != 0 {
		t.Fatalf("expected other topic untouched")
	}

	hub.Unregister("gemstones", good)
	waitFor(t, time.Second, func() bool { return hub.Subscribers("gemstones") == 0 })
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub()
	sub := &fakeSubscriber{}
	hub.Register("gemstones", sub)
	hub.Stop()
	waitFor(t, time.Second, sub.isClosed)

	// Calls after Stop must not block.
	hub.Broadcast("gemstones", []byte("x"))
	hub.Register("gemstones", &fakeSubscriber{})
}

func TestFeedPublishesEncodedEvents(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()
	sub := &fakeSubscriber{}
	hub.Register(TopicGemstones, sub)

	feed := NewFeed(hub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	at := time.Date(2024, time.February, 2, 3, 4, 5, 0, time.UTC)
	feed.Publish(domain.GemstoneEvent{
		Type:       domain.GemstoneUpdated,
		Gemstone:   domain.Gemstone{ID: "g1", Title: "Garnet", Text: "8", Owner: "u1", CreatedAt: at, UpdatedAt: at},
		ActorID:    "u1",
		OccurredAt: at,
	})
	waitFor(t, time.Second, func() bool { return len(sub.received()) == 1 })

	var payload map[string]any
	if err := json.Unmarshal(sub.received()[0], &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["type"] != "updated" || payload["occurredAt"] != "2024-02-02T03:04:05Z" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	gem, _ := payload["gemstone"].(map[string]any)
	if gem["title"] != "Garnet" || gem["owner"] != "u1" {
		t.Fatalf("unexpected gemstone payload: %v", gem)
	}
}

func TestSSEClientFramesAndClose(t *testing.T) {
	rec := httptest.NewRecorder()
	client := NewSSEClient(rec, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := client.Send([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.Heartbeat(); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "data: {\"a\":1}\n\n") || !strings.Contains(body, ": ping\n\n") {
		t.Fatalf("unexpected frames: %q", body)
	}

	client.Close()
	select {
	case <-client.Done():
	default:
		t.Fatalf("expected done channel closed")
	}
	if err := client.Send([]byte("x")); err != io.EOF {
		t.Fatalf("expected io.EOF after close, got %v", err)
	}
	client.Close()
}

// stalledSubscriber blocks in Send until release is closed.
type stalledSubscriber struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func newStalledSubscriber() *stalledSubscriber {
	return &stalledSubscriber{release: make(chan struct{}), entered: make(chan struct{})}
}

func (s *stalledSubscriber) Send([]byte) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil
}

func (s *stalledSubscriber) Close() { s.closed.Store(true) }

func TestHubBroadcastDoesNotWaitForStalledSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()
	stalled := newStalledSubscriber()
	defer close(stalled.release)
	fast := &fakeSubscriber{}
	hub.Register(TopicGemstones, stalled)
	hub.Register(TopicGemstones, fast)

	hub.Broadcast(TopicGemstones, []byte("first"))
	select {
	case <-stalled.entered:
	case <-time.After(time.Second):
		t.Fatal("stalled subscriber never received a payload")
	}

	feed := NewFeed(hub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	start := time.Now()
	for i := 0; i < 3; i++ {
		feed.Publish(domain.GemstoneEvent{Type: domain.GemstoneCreated, Gemstone: domain.Gemstone{ID: "g"}})
		_ = hub.Subscribers(TopicGemstones)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("publishing waited on a stalled subscriber: %s", elapsed)
	}
	waitFor(t, time.Second, func() bool { return len(fast.received()) == 4 })
	if stalled.closed.Load() {
		t.Fatalf("subscriber within its buffer must not be evicted")
	}
}

func TestHubEvictsSubscriberThatFallsBehind(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()
	stalled := newStalledSubscriber()
	fast := &fakeSubscriber{}
	hub.Register(TopicGemstones, stalled)
	hub.Register(TopicGemstones, fast)

	total := outboxSize + 2
	for i := 0; i < total; i++ {
		hub.Broadcast(TopicGemstones, []byte("x"))
	}
	waitFor(t, time.Second, func() bool { return hub.Subscribers(TopicGemstones) == 1 })
	close(stalled.release)
	waitFor(t, time.Second, stalled.closed.Load)
	waitFor(t, time.Second, func() bool { return len(fast.received()) == total })
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }
func (failingWriter) Flush()                    {}

func TestSSEClientWriteFailureClosesStream(t *testing.T) {
	w := &failingWriter{}
	client := NewSSEClient(w, w, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := client.Send([]byte("x")); err == nil {
		t.Fatalf("expected write error")
	}
	select {
	case <-client.Done():
	default:
		t.Fatalf("expected stream closed after write failure")
	}
}
