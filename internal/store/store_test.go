package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"trades-rl/internal/config"
)

type ledgerFixture struct {
	Cash      float64   `json:"cash"`
	Positions []float64 `json:"positions"`
}

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 4, MaxIdleConns: 2})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadFields_RoundTrip(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	err := s.SaveFields(ctx, "INDUSINDBK", map[string]any{
		"epsilon": 0.25,
		"ledger":  ledgerFixture{Cash: 91, Positions: []float64{9}},
	})
	if err != nil {
		t.Fatalf("SaveFields returned error: %v", err)
	}

	var epsilon float64
	var ledger ledgerFixture
	missing := "untouched"
	err = s.LoadFields(ctx, "INDUSINDBK", map[string]any{
		"epsilon": &epsilon,
		"ledger":  &ledger,
		"network": &missing,
	})
	if err != nil {
		t.Fatalf("LoadFields returned error: %v", err)
	}
	if epsilon != 0.25 {
		t.Errorf("expected epsilon 0.25, got %f", epsilon)
	}
	if ledger.Cash != 91 || len(ledger.Positions) != 1 || ledger.Positions[0] != 9 {
		t.Errorf("unexpected ledger %+v", ledger)
	}
	if missing != "untouched" {
		t.Errorf("missing field should keep its value, got %q", missing)
	}
}

func TestSaveFields_OverwritesExisting(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if err := s.SaveFields(ctx, "A", map[string]any{"epsilon": 0.5}); err != nil {
		t.Fatalf("SaveFields returned error: %v", err)
	}
	if err := s.SaveFields(ctx, "A", map[string]any{"epsilon": 0.1}); err != nil {
		t.Fatalf("SaveFields returned error: %v", err)
	}
	if err := s.SaveFields(ctx, "B", map[string]any{"epsilon": 0.9}); err != nil {
		t.Fatalf("SaveFields returned error: %v", err)
	}

	var epsilon float64
	if err := s.LoadFields(ctx, "A", map[string]any{"epsilon": &epsilon}); err != nil {
		t.Fatalf("LoadFields returned error: %v", err)
	}
	if epsilon != 0.1 {
		t.Errorf("expected overwritten epsilon 0.1, got %f", epsilon)
	}

	owners, err := s.Owners(ctx)
	if err != nil {
		t.Fatalf("Owners returned error: %v", err)
	}
	if len(owners) != 2 || owners[0] != "A" || owners[1] != "B" {
		t.Errorf("unexpected owners %v", owners)
	}
}

func TestLoadFields_NotFound(t *testing.T) {
	s := newMemoryStore(t)
	var epsilon float64
	err := s.LoadFields(context.Background(), "missing", map[string]any{"epsilon": &epsilon})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveFields_RejectsUnmarshalableValue(t *testing.T) {
	s := newMemoryStore(t)
	err := s.SaveFields(context.Background(), "A", map[string]any{"bad": make(chan int)})
	if err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestNewSQLite_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trades.db")
	s, err := NewSQLite(config.DatabaseConfig{Path: path, MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	defer s.Close()

	if err := s.SaveFields(context.Background(), "A", map[string]any{"x": 1}); err != nil {
		t.Fatalf("SaveFields returned error: %v", err)
	}
}
