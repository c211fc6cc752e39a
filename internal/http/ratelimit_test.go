package httpx

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWindowCounterAlignsWindows(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 40, 0, time.UTC)
	c := newWindowCounter(func() time.Time { return now })

	for i := 1; i <= 3; i++ {
		d := c.Allow("k", 3, time.Minute)
		if !d.allowed || d.count != i {
			t.Fatalf("request %d: unexpected decision %+v", i, d)
		}
		if want := time.Date(2025, time.March, 1, 12, 1, 0, 0, time.UTC); !d.windowEnd.Equal(want) {
			t.Fatalf("window end %v, want %v", d.windowEnd, want)
		}
	}
	if d := c.Allow("k", 3, time.Minute); d.allowed || d.count != 3 {
		t.Fatalf("expected fourth request to be limited, got %+v", d)
	}
	if d := c.Allow("other", 3, time.Minute); !d.allowed {
		t.Fatalf("keys must be limited independently")
	}

	now = now.Add(20 * time.Second)
	if d := c.Allow("k", 3, time.Minute); !d.allowed || d.count != 1 {
		t.Fatalf("expected the next aligned window, got %+v", d)
	}
}

func TestWindowCounterPrunesWhileServing(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newWindowCounter(func() time.Time { return now })
	for _, key := range []string{"a", "b", "c"} {
		c.Allow(key, 5, time.Minute)
	}

	now = now.Add(pruneEvery - time.Second)
	c.Allow("d", 5, time.Minute)
	if got := len(c.windows); got != 4 {
		t.Fatalf("pruned too early, %d windows left", got)
	}

	now = now.Add(time.Second)
	c.Allow("d", 5, time.Minute)
	if got := len(c.windows); got != 1 {
		t.Fatalf("expected finished windows dropped, %d left", got)
	}
}

func TestWindowCounterDisabledLimit(t *testing.T) {
	c := newWindowCounter(time.Now)
	for i := 0; i < 10; i++ {
		if d := c.Allow("k", 0, time.Minute); !d.allowed {
			t.Fatalf("limit 0 must not restrict")
		}
	}
	if len(c.windows) != 0 {
		t.Fatalf("disabled limits must not allocate windows")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	if got := clientIP(req); got != "198.51.100.4" {
		t.Fatalf("unexpected remote ip %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("unexpected forwarded ip %q", got)
	}
}

func TestRedisRateLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rl, err := NewRedisRateLimiter(addr, os.Getenv("TEST_REDIS_PASSWORD"), 0, logger)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer rl.Close()

	key := "test:" + uuid.NewString()
	for i := 1; i <= 2; i++ {
		d := rl.Allow(key, 2, time.Minute)
		if !d.allowed || d.count != i {
			t.Fatalf("request %d: unexpected decision %+v", i, d)
		}
		if d.windowEnd.Before(time.Now()) {
			t.Fatalf("window end in the past: %v", d.windowEnd)
		}
	}
	if d := rl.Allow(key, 2, time.Minute); d.allowed {
		t.Fatalf("expected third request to be limited")
	}
}
