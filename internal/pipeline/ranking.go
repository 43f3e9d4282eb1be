package pipeline

import (
	"sort"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// DefaultLimit is the size of ranked and recent lists when no limit is given.
const DefaultLimit = 10

// TopTraders ranks agents by the number of transactions they take part in.
// Each role counts separately, so an agent that both sends and receives in a
// transaction is counted twice for it. Ties keep accumulation order.
func TopTraders(transactions []*domain.Transaction, limit int) []domain.TraderRank {
	if limit <= 0 {
		limit = DefaultLimit
	}

	index := make(map[string]int)
	var ranks []domain.TraderRank
	var books []map[string]struct{}
	accumulate := func(agent domain.AgentRef, tx *domain.Transaction) {
		if agent.ID == "" {
			return
		}
		pos, ok := index[agent.ID]
		if !ok {
			pos = len(ranks)
			index[agent.ID] = pos
			ranks = append(ranks, domain.TraderRank{ID: agent.ID, Name: agent.Name, Books: []string{}})
			books = append(books, make(map[string]struct{}))
		}
		r := &ranks[pos]
		r.Count++
		r.Transfers += len(tx.Transfers)
		r.Value += tx.TotalValue
		if _, seen := books[pos][tx.BookID]; !seen {
			books[pos][tx.BookID] = struct{}{}
			r.Books = append(r.Books, tx.BookID)
		}
	}

	for _, tx := range transactions {
		for _, a := range tx.Agents.From {
			accumulate(a, tx)
		}
		for _, a := range tx.Agents.To {
			accumulate(a, tx)
		}
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].Count > ranks[j].Count
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	if ranks == nil {
		ranks = []domain.TraderRank{}
	}
	return ranks
}

// RecentTransactions returns the limit latest transactions, newest first.
// Transactions sharing a date keep their input order.
func RecentTransactions(transactions []*domain.Transaction, limit int) []*domain.Transaction {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sorted := make([]*domain.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
