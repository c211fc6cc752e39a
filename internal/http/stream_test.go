package httpx

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/melsimpson1023/project-2-gemstone/internal/ws"
)

type streamEvent struct {
	Type     string           `json:"type"`
	Actor    string           `json:"actor"`
	Gemstone gemstoneResponse `json:"gemstone"`
}

func TestGemstoneEventsStreamsMutations(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.signUp(t, "lapis@example.com")
	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/events/gemstones?token=" + token)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if strings.TrimSpace(first) != ": ping" {
		t.Fatalf("unexpected first frame %q", first)
	}

	gem := env.create(t, token, "Lapis", "blue")

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimSpace(strings.TrimPrefix(line, "data: "))
				return
			}
		}
	}()

	select {
	case raw, ok := <-lines:
		if !ok {
			t.Fatal("stream closed before event")
		}
		var event streamEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			t.Fatalf("decode event %q: %v", raw, err)
		}
		if event.Type != "created" || event.Gemstone.ID != gem.ID || event.Actor != userID {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestGemstoneEventsRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/events/gemstones", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/events/gemstones?token=bogus", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rr.Code)
	}
}

func TestGemstoneEventsRequiresFlusher(t *testing.T) {
	env := newTestEnv(t)
	w := newNoFlushRecorder()
	env.router.handleGemstoneEvents(w, httptest.NewRequest(http.MethodGet, "/events/gemstones", nil))

	if w.status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.status)
	}
	if msg := parseError(t, w.buf.String()); msg != "streaming unsupported" {
		t.Fatalf("unexpected error %q", msg)
	}
	if n := env.hub.Subscribers(ws.TopicGemstones); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestGemstonesWebsocketReceivesEvents(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signUp(t, "agate@example.com")
	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/gemstones"
	header := http.Header{}
	header.Set("Authorization", bearer(token))
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	waitFor(t, 2*time.Second, func() bool {
		return env.hub.Subscribers(ws.TopicGemstones) == 1
	})

	gem := env.create(t, token, "Agate", "banded")
	if rr := env.do(t, http.MethodDelete, "/gemstones/"+gem.ID, bearer(token), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}

	var types []string
	for len(types) < 2 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read message: %v", err)
		}
		var event streamEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.Gemstone.ID != gem.ID {
			t.Fatalf("unexpected gemstone in event %+v", event)
		}
		types = append(types, event.Type)
	}
	if types[0] != "created" || types[1] != "deleted" {
		t.Fatalf("unexpected event order %v", types)
	}

	conn.Close()
	waitFor(t, 2*time.Second, func() bool {
		return env.hub.Subscribers(ws.TopicGemstones) == 0
	})
}

func TestGemstonesWebsocketRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/gemstones"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %+v", resp)
	}
}
