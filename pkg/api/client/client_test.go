package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpx "github.com/melsimpson1023/project-2-gemstone/internal/http"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository/memory"
	"github.com/melsimpson1023/project-2-gemstone/internal/service/auth"
	"github.com/melsimpson1023/project-2-gemstone/internal/service/gemstone"
)

func newServer(t *testing.T) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	router := httpx.NewRouter(logger, auth.New(store, logger), gemstone.New(store, nil, logger), nil, nil, store.Ping, time.Second)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		router.Close()
	})
	cli, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return cli
}

func TestNewNormalisesBaseURL(t *testing.T) {
	cli, err := New("  localhost:9000/ ")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.baseURL != "http://localhost:9000" {
		t.Fatalf("unexpected base url %q", cli.baseURL)
	}
	cli, _ = New("")
	if cli.baseURL != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", cli.baseURL)
	}
}

func TestClientGemstoneLifecycle(t *testing.T) {
	cli := newServer(t)
	ctx := context.Background()

	if _, err := cli.SignUp(ctx, "cli@example.com", "secret", "secret"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	user, err := cli.SignIn(ctx, "cli@example.com", "secret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.Token == "" {
		t.Fatal("expected token")
	}

	gem, err := cli.CreateGemstone(ctx, user.Token, GemstoneInput{Title: "Ruby", Text: "red"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if gem.Owner != user.ID || gem.CreatedAt.IsZero() {
		t.Fatalf("unexpected gemstone %+v", gem)
	}
	if err := cli.UpdateGemstone(ctx, user.Token, gem.ID, GemstoneInput{Text: "crimson"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := cli.GetGemstone(ctx, user.Token, gem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Ruby" || got.Text != "crimson" {
		t.Fatalf("unexpected gemstone after update %+v", got)
	}
	list, err := cli.ListGemstones(ctx, user.Token)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v (%d items)", err, len(list))
	}
	if err := cli.DeleteGemstone(ctx, user.Token, gem.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var apiErr APIError
	err = cli.DeleteGemstone(ctx, user.Token, gem.ID)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 api error, got %v", err)
	}

	if err := cli.ChangePassword(ctx, user.Token, "secret", "fresher"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if err := cli.SignOut(ctx, user.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	_, err = cli.ListGemstones(ctx, user.Token)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after sign out, got %v", err)
	}
}

func TestClientValidationError(t *testing.T) {
	cli := newServer(t)
	ctx := context.Background()
	_, err := cli.SignUp(ctx, "v@example.com", "a", "b")
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Field != "password_confirmation" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}
