package pipeline

import "github.com/chpollin/depcha-dashboard/internal/domain"

type linkKey struct {
	source string
	target string
}

// BuildNetwork derives the agent graph of a transaction set.
//
// Nodes: every agent with an ID, registered from each transaction's senders
// (group 1) and then its receivers (group 2). A later registration overwrites
// the group of an earlier one; Roles keeps every role seen.
//
// Links: one per ordered (source, target) pair over the cross product of each
// transaction's senders and receivers, counting the pairs and collecting the
// owning transactions.
func BuildNetwork(transactions []*domain.Transaction) domain.Network {
	nodeIndex := make(map[string]int)
	nodes := []domain.NetworkNode{}
	register := func(agent domain.AgentRef, group int) {
		if agent.ID == "" {
			return
		}
		node := domain.NetworkNode{
			ID:    agent.ID,
			Name:  agent.Name,
			Type:  agent.Type,
			URI:   agent.URI,
			Group: group,
			Roles: group,
		}
		if pos, ok := nodeIndex[agent.ID]; ok {
			node.Roles |= nodes[pos].Roles
			nodes[pos] = node
			return
		}
		nodeIndex[agent.ID] = len(nodes)
		nodes = append(nodes, node)
	}
	for _, tx := range transactions {
		for _, agent := range tx.Agents.From {
			register(agent, domain.RoleSource)
		}
		for _, agent := range tx.Agents.To {
			register(agent, domain.RoleDestination)
		}
	}

	linkIndex := make(map[linkKey]int)
	links := []domain.NetworkLink{}
	for _, tx := range transactions {
		for _, from := range tx.Agents.From {
			for _, to := range tx.Agents.To {
				if from.ID == "" || to.ID == "" {
					continue
				}
				key := linkKey{source: from.ID, target: to.ID}
				if pos, ok := linkIndex[key]; ok {
					links[pos].Value++
					links[pos].Transactions = append(links[pos].Transactions, tx)
					continue
				}
				linkIndex[key] = len(links)
				links = append(links, domain.NetworkLink{
					Source:       from.ID,
					Target:       to.ID,
					Value:        1,
					Transactions: []*domain.Transaction{tx},
				})
			}
		}
	}

	return domain.Network{Nodes: nodes, Links: links}
}
