package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/graph"
)

const defaultBatchSize = 500

// TradingPartner is one outgoing relationship of an agent in a context.
type TradingPartner struct {
	AgentID   string `json:"agentId"`
	Name      string `json:"name"`
	ContextID string `json:"contextId"`
	Weight    int    `json:"weight"`
}

// NetworkRepository stores trade networks as (:Agent)-[:TRADED_WITH]->(:Agent).
// Agents are shared across contexts; relationships carry the context they
// were derived from.
type NetworkRepository struct {
	client    graph.Client
	batchSize int
}

// NewNetworkRepository instantiates a repository backed by the supplied graph
// client. Nodes and links are written in UNWIND batches of batchSize rows.
func NewNetworkRepository(client graph.Client, batchSize int) *NetworkRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &NetworkRepository{client: client, batchSize: batchSize}
}

// EnsureSchema creates the agent uniqueness constraint.
func (r *NetworkRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.client.ExecuteWrite(ctx, agentConstraintCypher, nil); err != nil {
		return fmt.Errorf("ensure agent constraint: %w", err)
	}
	return nil
}

// SaveNetwork replaces the relationships of contextID with the network's
// links and merges its agents, all in one transaction.
func (r *NetworkRepository) SaveNetwork(ctx context.Context, contextID string, network domain.Network) error {
	if contextID == "" {
		return errors.New("context id is required")
	}

	statements := []graph.Statement{{
		Cypher: clearContextCypher,
		Params: map[string]any{"contextId": contextID},
	}}
	for _, batch := range chunk(nodeParams(network.Nodes), r.batchSize) {
		statements = append(statements, graph.Statement{
			Cypher: mergeAgentsCypher,
			Params: map[string]any{"agents": batch},
		})
	}
	for _, batch := range chunk(linkParams(network.Links), r.batchSize) {
		statements = append(statements, graph.Statement{
			Cypher: mergeLinksCypher,
			Params: map[string]any{"contextId": contextID, "links": batch},
		})
	}

	if err := r.client.WriteAll(ctx, statements); err != nil {
		return fmt.Errorf("save network %s: %w", contextID, err)
	}
	return nil
}

// TradingPartners lists the agents agentID sent resources to, heaviest first.
// An empty contextID spans every context.
func (r *NetworkRepository) TradingPartners(ctx context.Context, agentID, contextID string) ([]TradingPartner, error) {
	if agentID == "" {
		return nil, errors.New("agent id is required")
	}
	res, err := r.client.ExecuteRead(ctx, tradingPartnersCypher, map[string]any{
		"agentId":   agentID,
		"contextId": contextID,
	})
	if err != nil {
		return nil, fmt.Errorf("trading partners of %s: %w", agentID, err)
	}

	partners := make([]TradingPartner, 0, len(res.Records))
	for _, rec := range res.Records {
		partners = append(partners, TradingPartner{
			AgentID:   rec.String("agentId"),
			Name:      rec.String("name"),
			ContextID: rec.String("contextId"),
			Weight:    rec.Int("weight"),
		})
	}
	return partners, nil
}

func nodeParams(nodes []domain.NetworkNode) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, map[string]any{
			"id":    n.ID,
			"name":  n.Name,
			"uri":   n.URI,
			"type":  n.Type,
			"roles": roleNames(n.Roles),
		})
	}
	return out
}

// roleNames expands the node role bitmask so roles accumulate across contexts.
func roleNames(roles int) []string {
	names := []string{}
	if roles&domain.RoleSource != 0 {
		names = append(names, "source")
	}
	if roles&domain.RoleDestination != 0 {
		names = append(names, "destination")
	}
	return names
}

func linkParams(links []domain.NetworkLink) []map[string]any {
	out := make([]map[string]any, 0, len(links))
	for _, l := range links {
		ids := make([]string, 0, len(l.Transactions))
		for _, tx := range l.Transactions {
			ids = append(ids, tx.ID)
		}
		out = append(out, map[string]any{
			"source":       l.Source,
			"target":       l.Target,
			"weight":       l.Value,
			"transactions": ids,
		})
	}
	return out
}

func chunk(rows []map[string]any, size int) [][]map[string]any {
	var batches [][]map[string]any
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		batches = append(batches, rows[start:end])
	}
	return batches
}

const agentConstraintCypher = `
CREATE CONSTRAINT agent_id IF NOT EXISTS
FOR (a:Agent) REQUIRE a.agentId IS UNIQUE
`

const clearContextCypher = `
MATCH (:Agent)-[t:TRADED_WITH {contextId: $contextId}]->(:Agent)
DELETE t
`

const mergeAgentsCypher = `
UNWIND $agents AS agent
MERGE (a:Agent {agentId: agent.id})
SET a.name = agent.name,
	a.uri = agent.uri,
	a.agentType = agent.type,
	a.roles = coalesce(a.roles, []) + [role IN agent.roles WHERE NOT role IN coalesce(a.roles, [])]
`

const mergeLinksCypher = `
UNWIND $links AS link
MATCH (s:Agent {agentId: link.source})
MATCH (t:Agent {agentId: link.target})
MERGE (s)-[r:TRADED_WITH {contextId: $contextId}]->(t)
SET r.weight = link.weight,
	r.transactionIds = link.transactions
`

const tradingPartnersCypher = `
MATCH (a:Agent {agentId: $agentId})-[r:TRADED_WITH]->(p:Agent)
WHERE $contextId = '' OR r.contextId = $contextId
RETURN p.agentId AS agentId, p.name AS name, r.contextId AS contextId, r.weight AS weight
ORDER BY r.weight DESC, p.agentId
`
