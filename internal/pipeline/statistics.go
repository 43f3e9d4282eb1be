package pipeline

import (
	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// ComputeStatistics summarises a transaction set in a single pass.
// Traders are counted once by agent ID whatever their role; agents and
// commodities without an identifier or name are not counted.
func ComputeStatistics(transactions []*domain.Transaction) domain.Statistics {
	stats := domain.Statistics{
		TotalTransactions: len(transactions),
		TransactionTypes:  []domain.ResourceType{},
		CommodityTypes:    []string{},
	}

	traders := make(map[string]struct{})
	types := make(map[domain.ResourceType]struct{})
	commodities := make(map[string]struct{})
	for _, tx := range transactions {
		stats.TotalTransfers += len(tx.Transfers)
		stats.TotalValue += tx.TotalValue

		date := tx.Date
		if stats.DateRange.Start == nil || date.Before(*stats.DateRange.Start) {
			stats.DateRange.Start = &date
		}
		if stats.DateRange.End == nil || date.After(*stats.DateRange.End) {
			stats.DateRange.End = &date
		}

		for _, rt := range tx.Types {
			if _, ok := types[rt]; !ok {
				types[rt] = struct{}{}
				stats.TransactionTypes = append(stats.TransactionTypes, rt)
			}
		}
		for _, c := range tx.Commodities {
			if c.Name == "" {
				continue
			}
			if _, ok := commodities[c.Name]; !ok {
				commodities[c.Name] = struct{}{}
				stats.CommodityTypes = append(stats.CommodityTypes, c.Name)
			}
		}
		for _, agents := range [][]domain.AgentRef{tx.Agents.From, tx.Agents.To} {
			for _, a := range agents {
				if a.ID != "" {
					traders[a.ID] = struct{}{}
				}
			}
		}
	}

	stats.UniqueTraders = len(traders)
	stats.UniqueCommodities = len(commodities)
	return stats
}

// ComputeBookStatistics partitions transactions by BookID, in order of first
// appearance, and summarises each partition.
func ComputeBookStatistics(transactions []*domain.Transaction) []domain.BookStatistics {
	index := make(map[string]int)
	var books []string
	var parts [][]*domain.Transaction
	for _, tx := range transactions {
		pos, ok := index[tx.BookID]
		if !ok {
			pos = len(books)
			index[tx.BookID] = pos
			books = append(books, tx.BookID)
			parts = append(parts, nil)
		}
		parts[pos] = append(parts[pos], tx)
	}

	out := make([]domain.BookStatistics, 0, len(books))
	for i, bookID := range books {
		out = append(out, domain.BookStatistics{
			BookID:     bookID,
			Statistics: ComputeStatistics(parts[i]),
		})
	}
	return out
}
