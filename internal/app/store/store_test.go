package store

import (
	"context"
	"testing"

	"github.com/melsimpson1023/project-2-gemstone/internal/repository/memory"
	"github.com/melsimpson1023/project-2-gemstone/pkg/config"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), config.APIConfig{StoreDriver: config.StoreDriverMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*memory.Repository); !ok {
		t.Fatalf("expected memory repository, got %T", s)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.APIConfig{StoreDriver: "mongo"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
