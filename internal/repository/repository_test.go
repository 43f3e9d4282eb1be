package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/graph"
)

func testNetwork() domain.Network {
	t1 := &domain.Transaction{ID: "T1"}
	t2 := &domain.Transaction{ID: "T2"}
	return domain.Network{
		Nodes: []domain.NetworkNode{
			{ID: "A", Name: "Abel", Group: domain.RoleSource, Roles: domain.RoleSource},
			{ID: "B", Name: "Baker", Group: domain.RoleSource, Roles: domain.RoleSource | domain.RoleDestination},
			{ID: "C", Name: "Cole", Group: domain.RoleDestination, Roles: domain.RoleDestination},
		},
		Links: []domain.NetworkLink{
			{Source: "A", Target: "B", Value: 1, Transactions: []*domain.Transaction{t1}},
			{Source: "A", Target: "C", Value: 1, Transactions: []*domain.Transaction{t1}},
			{Source: "B", Target: "C", Value: 2, Transactions: []*domain.Transaction{t1, t2}},
		},
	}
}

func TestNetworkRepository_SaveNetwork(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := NewNetworkRepository(mem, 2)

	if err := repo.SaveNetwork(context.Background(), "context:depcha.wheaton", testNetwork()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mem.Batches() != 1 {
		t.Fatalf("expected a single transaction, got %d", mem.Batches())
	}

	calls := mem.WriteCalls()
	// clear + 2 agent batches (2+1) + 2 link batches (2+1)
	if len(calls) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Query, "DELETE t") {
		t.Fatalf("expected first statement to clear the context, got %q", calls[0].Query)
	}
	if calls[0].Params["contextId"] != "context:depcha.wheaton" {
		t.Fatalf("unexpected clear params %+v", calls[0].Params)
	}

	agents, ok := calls[1].Params["agents"].([]map[string]any)
	if !ok || len(agents) != 2 {
		t.Fatalf("expected first agent batch of 2, got %#v", calls[1].Params["agents"])
	}
	roles := agents[1]["roles"].([]string)
	if len(roles) != 2 || roles[0] != "source" || roles[1] != "destination" {
		t.Fatalf("expected both roles for B, got %v", roles)
	}

	links, ok := calls[4].Params["links"].([]map[string]any)
	if !ok || len(links) != 1 {
		t.Fatalf("expected final link batch of 1, got %#v", calls[4].Params["links"])
	}
	if links[0]["weight"] != 2 {
		t.Fatalf("expected weight 2, got %v", links[0]["weight"])
	}
	ids := links[0]["transactions"].([]string)
	if len(ids) != 2 || ids[0] != "T1" || ids[1] != "T2" {
		t.Fatalf("unexpected transaction ids %v", ids)
	}
	if calls[4].Params["contextId"] != "context:depcha.wheaton" {
		t.Fatalf("expected link batch to carry the context id")
	}
}

func TestNetworkRepository_SaveEmptyNetworkClearsContext(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := NewNetworkRepository(mem, 0)

	if err := repo.SaveNetwork(context.Background(), "ctx", domain.Network{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls := mem.WriteCalls(); len(calls) != 1 {
		t.Fatalf("expected only the clear statement, got %d", len(calls))
	}
}

func TestNetworkRepository_SaveNetworkErrors(t *testing.T) {
	repo := NewNetworkRepository(graph.NewMemoryClient(), 10)
	if err := repo.SaveNetwork(context.Background(), "", testNetwork()); err == nil {
		t.Fatal("expected error for empty context id")
	}

	boom := errors.New("bolt unavailable")
	repo = NewNetworkRepository(graph.NewMemoryClient().WithError(boom), 10)
	err := repo.SaveNetwork(context.Background(), "ctx", testNetwork())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped graph error, got %v", err)
	}
}

func TestNetworkRepository_TradingPartners(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"agentId": "C", "name": "Cole", "contextId": "ctx", "weight": int64(2)},
		{"agentId": "B", "name": "Baker", "contextId": "ctx", "weight": int64(1)},
	}})
	repo := NewNetworkRepository(mem, 10)

	partners, err := repo.TradingPartners(context.Background(), "A", "ctx")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(partners) != 2 {
		t.Fatalf("expected 2 partners, got %d", len(partners))
	}
	if partners[0] != (TradingPartner{AgentID: "C", Name: "Cole", ContextID: "ctx", Weight: 2}) {
		t.Fatalf("unexpected first partner %+v", partners[0])
	}

	calls := mem.ReadCalls()
	if len(calls) != 1 || calls[0].Params["agentId"] != "A" || calls[0].Params["contextId"] != "ctx" {
		t.Fatalf("unexpected read calls %+v", calls)
	}

	if _, err := repo.TradingPartners(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty agent id")
	}
}

func TestNetworkRepository_EnsureSchema(t *testing.T) {
	mem := graph.NewMemoryClient()
	if err := NewNetworkRepository(mem, 1).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	calls := mem.WriteCalls()
	if len(calls) != 1 || !strings.Contains(calls[0].Query, "CREATE CONSTRAINT") {
		t.Fatalf("unexpected schema calls %+v", calls)
	}
}

func TestChunk(t *testing.T) {
	rows := make([]map[string]any, 5)
	for i := range rows {
		rows[i] = map[string]any{"i": i}
	}
	batches := chunk(rows, 2)
	if got := fmt.Sprint(len(batches), len(batches[0]), len(batches[2])); got != "3 2 1" {
		t.Fatalf("unexpected batching %s", got)
	}
	if chunk(nil, 2) != nil {
		t.Fatal("expected no batches for no rows")
	}
}
