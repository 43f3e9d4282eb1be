package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// Granularity selects the calendar period of a time series.
type Granularity string

const (
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
	Yearly    Granularity = "yearly"
)

// ParseGranularity accepts the dashboard view names; empty means monthly.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case "", Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", fmt.Errorf("unknown time view %q", s)
}

type periodKey struct {
	year   int
	period int
}

func (k periodKey) label(g Granularity) string {
	switch g {
	case Quarterly:
		return fmt.Sprintf("%04d-Q%d", k.year, k.period)
	case Yearly:
		return fmt.Sprintf("%04d", k.year)
	default:
		return fmt.Sprintf("%04d-%02d", k.year, k.period)
	}
}

func keyFor(tx *domain.Transaction, g Granularity) periodKey {
	year, month := tx.Date.Year(), int(tx.Date.Month())
	switch g {
	case Quarterly:
		return periodKey{year: year, period: (month-1)/3 + 1}
	case Yearly:
		return periodKey{year: year}
	default:
		return periodKey{year: year, period: month}
	}
}

// TimeSeries buckets transactions by calendar month ("YYYY-MM").
func TimeSeries(transactions []*domain.Transaction) []domain.TimeBucket {
	return Bucket(transactions, Monthly)
}

// Bucket groups transactions by the period of their date and sorts the buckets
// by numeric year, then numeric period.
func Bucket(transactions []*domain.Transaction, g Granularity) []domain.TimeBucket {
	index := make(map[periodKey]int)
	var keys []periodKey
	var members [][]*domain.Transaction
	for _, tx := range transactions {
		k := keyFor(tx, g)
		pos, ok := index[k]
		if !ok {
			pos = len(keys)
			index[k] = pos
			keys = append(keys, k)
			members = append(members, nil)
		}
		members[pos] = append(members[pos], tx)
	}

	buckets := make([]domain.TimeBucket, len(keys))
	order := make([]int, len(keys))
	for i := range keys {
		order[i] = i
		buckets[i] = summariseBucket(keys[i].label(g), members[i])
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := keys[order[a]], keys[order[b]]
		if ka.year != kb.year {
			return ka.year < kb.year
		}
		return ka.period < kb.period
	})

	sorted := make([]domain.TimeBucket, len(order))
	for i, pos := range order {
		sorted[i] = buckets[pos]
	}
	return sorted
}

func summariseBucket(label string, txs []*domain.Transaction) domain.TimeBucket {
	bucket := domain.TimeBucket{
		Date:        label,
		Count:       len(txs),
		ByType:      make(map[domain.ResourceType][]*domain.Transaction),
		ByBook:      make(map[string][]*domain.Transaction),
		Commodities: []string{},
	}
	seen := make(map[string]struct{})
	for _, tx := range txs {
		primary := tx.PrimaryType()
		bucket.ByType[primary] = append(bucket.ByType[primary], tx)
		bucket.ByBook[tx.BookID] = append(bucket.ByBook[tx.BookID], tx)
		bucket.Transfers += len(tx.Transfers)
		bucket.TotalValue += tx.TotalValue
		for _, c := range tx.Commodities {
			if _, ok := seen[c.Name]; ok {
				continue
			}
			seen[c.Name] = struct{}{}
			bucket.Commodities = append(bucket.Commodities, c.Name)
		}
	}
	return bucket
}
