package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/chpollin/depcha-dashboard/internal/config"
)

func TestRecordAccessors(t *testing.T) {
	rec := Record{"name": "Abel", "weight": int64(3), "score": 2.0, "count": 4}
	if rec.String("name") != "Abel" || rec.String("weight") != "" {
		t.Fatalf("unexpected string accessors")
	}
	if rec.Int("weight") != 3 || rec.Int("score") != 2 || rec.Int("count") != 4 || rec.Int("missing") != 0 {
		t.Fatalf("unexpected int accessors")
	}
}

func TestMemoryClient_WriteAll(t *testing.T) {
	mem := NewMemoryClient()
	err := mem.WriteAll(context.Background(), []Statement{
		{Cypher: "A", Params: map[string]any{"x": 1}},
		{Cypher: "B"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mem.Batches() != 1 || len(mem.WriteCalls()) != 2 {
		t.Fatalf("expected one batch of two statements")
	}

	boom := errors.New("down")
	if err := mem.WithError(boom).WriteAll(context.Background(), []Statement{{Cypher: "C"}}); !errors.Is(err, boom) {
		t.Fatalf("expected configured error, got %v", err)
	}
	if len(mem.WriteCalls()) != 2 {
		t.Fatalf("failed batch must not be recorded")
	}
}

func TestNewNeo4jClient_MissingURI(t *testing.T) {
	_, err := NewNeo4jClient(context.Background(), OptionsFromConfig(config.GraphConfig{}))
	if !errors.Is(err, ErrMissingURI) {
		t.Fatalf("expected ErrMissingURI, got %v", err)
	}
}
