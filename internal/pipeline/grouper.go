package pipeline

import (
	"sort"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// GroupTransactions consolidates transfers by TransactionID.
//
// Groups are formed in the order their first transfer appears. The first
// transfer of a group fixes the transaction's BookID and Date. Agents are
// deduplicated per role by ID, keeping the first AgentRef seen. The result is
// stable-sorted by Date ascending.
func GroupTransactions(transfers []domain.Transfer) []*domain.Transaction {
	index := make(map[string]int)
	var groups [][]domain.Transfer
	for _, t := range transfers {
		pos, ok := index[t.TransactionID]
		if !ok {
			pos = len(groups)
			index[t.TransactionID] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], t)
	}

	transactions := make([]*domain.Transaction, 0, len(groups))
	for _, group := range groups {
		transactions = append(transactions, consolidate(group))
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Date.Before(transactions[j].Date)
	})
	return transactions
}

func consolidate(group []domain.Transfer) *domain.Transaction {
	primary := group[0]
	tx := &domain.Transaction{
		ID:          primary.TransactionID,
		BookID:      primary.BookID,
		Date:        primary.Date,
		Transfers:   group,
		Types:       []domain.ResourceType{},
		Commodities: []domain.CommodityRef{},
		Agents: domain.TransactionAgents{
			From: []domain.AgentRef{},
			To:   []domain.AgentRef{},
		},
	}

	seenTypes := make(map[domain.ResourceType]struct{})
	seenFrom := make(map[string]struct{})
	seenTo := make(map[string]struct{})
	for _, t := range group {
		if _, ok := seenTypes[t.ResourceType]; !ok {
			seenTypes[t.ResourceType] = struct{}{}
			tx.Types = append(tx.Types, t.ResourceType)
		}
		if _, ok := seenFrom[t.From.ID]; !ok {
			seenFrom[t.From.ID] = struct{}{}
			tx.Agents.From = append(tx.Agents.From, t.From)
		}
		if _, ok := seenTo[t.To.ID]; !ok {
			seenTo[t.To.ID] = struct{}{}
			tx.Agents.To = append(tx.Agents.To, t.To)
		}
		if t.Commodity != nil {
			tx.Commodities = append(tx.Commodities, *t.Commodity)
		}
		tx.TotalValue += ValueOf(t)
	}
	return tx
}

// Flatten returns the transfers of the given transactions in transaction order.
func Flatten(transactions []*domain.Transaction) []domain.Transfer {
	var out []domain.Transfer
	for _, tx := range transactions {
		out = append(out, tx.Transfers...)
	}
	return out
}
