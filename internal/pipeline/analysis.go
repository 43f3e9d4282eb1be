package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// Dataset is the grouped form of one load: every built transfer and the
// date-sorted transactions they form.
type Dataset struct {
	RawCount     int                   `json:"rawCount"`
	Transfers    []domain.Transfer     `json:"transfers"`
	Transactions []*domain.Transaction `json:"transactions"`
}

// Dropped is the number of raw records rejected by the transfer builder.
func (d Dataset) Dropped() int {
	return d.RawCount - len(d.Transfers)
}

// Process runs the builder and grouper over raw records.
func Process(raws []domain.RawTransfer) Dataset {
	transfers := BuildTransfers(raws)
	return Dataset{
		RawCount:     len(raws),
		Transfers:    transfers,
		Transactions: GroupTransactions(transfers),
	}
}

// Options tunes the derived views of an analysis.
type Options struct {
	View        Granularity
	TraderLimit int
	RecentLimit int
}

// Analysis bundles every derived view of a filtered transaction set.
type Analysis struct {
	Filter         Filter                  `json:"filter"`
	View           Granularity             `json:"view"`
	Transactions   []*domain.Transaction   `json:"transactions"`
	TimeSeries     []domain.TimeBucket     `json:"timeSeries"`
	Network        domain.Network          `json:"network"`
	TopTraders     []domain.TraderRank     `json:"topTraders"`
	Recent         []*domain.Transaction   `json:"recentTransactions"`
	Statistics     domain.Statistics       `json:"statistics"`
	BookStatistics []domain.BookStatistics `json:"bookStats"`
	Distribution   []domain.TypeShare      `json:"distribution"`
	Seasonal       []domain.SeasonalRow    `json:"seasonal"`
}

// Analyze filters the transactions and computes every view from scratch.
func Analyze(transactions []*domain.Transaction, filter Filter, opts Options) (Analysis, error) {
	if err := filter.Validate(); err != nil {
		return Analysis{}, err
	}
	if opts.View == "" {
		opts.View = Monthly
	}

	filtered := filter.Apply(transactions)
	return Analysis{
		Filter:         filter,
		View:           opts.View,
		Transactions:   filtered,
		TimeSeries:     Bucket(filtered, opts.View),
		Network:        BuildNetwork(filtered),
		TopTraders:     TopTraders(filtered, opts.TraderLimit),
		Recent:         RecentTransactions(filtered, opts.RecentLimit),
		Statistics:     ComputeStatistics(filtered),
		BookStatistics: ComputeBookStatistics(filtered),
		Distribution:   Distribution(filtered),
		Seasonal:       Seasonal(filtered),
	}, nil
}

// Distribution reports, per resource type, how many transactions carry it and
// their share of the set in percent (one decimal).
func Distribution(transactions []*domain.Transaction) []domain.TypeShare {
	shares := make([]domain.TypeShare, 0, len(domain.ResourceTypes))
	for _, rt := range domain.ResourceTypes {
		count := 0
		for _, tx := range transactions {
			if tx.HasType(rt) {
				count++
			}
		}
		share := domain.TypeShare{Type: rt, Count: count}
		if len(transactions) > 0 {
			share.Percentage = math.Round(float64(count)/float64(len(transactions))*1000) / 10
		}
		shares = append(shares, share)
	}
	return shares
}

// Seasonal counts transactions by month of the year regardless of the year,
// broken down by primary resource type.
func Seasonal(transactions []*domain.Transaction) []domain.SeasonalRow {
	rows := make([]domain.SeasonalRow, 12)
	for i := range rows {
		rows[i] = domain.SeasonalRow{
			Month:  time.Month(i + 1).String()[:3],
			ByType: make(map[domain.ResourceType]int, len(domain.ResourceTypes)),
		}
		for _, rt := range domain.ResourceTypes {
			rows[i].ByType[rt] = 0
		}
	}
	for _, tx := range transactions {
		row := &rows[int(tx.Date.Month())-1]
		row.ByType[tx.PrimaryType()]++
		row.Total++
	}
	return rows
}

// FilterOptionsOf lists the distinct years, types and commodity names of a transaction set.
func FilterOptionsOf(transactions []*domain.Transaction) domain.FilterOptions {
	years := make(map[int]struct{})
	types := make(map[domain.ResourceType]struct{})
	commodities := make(map[string]struct{})
	for _, tx := range transactions {
		years[tx.Date.Year()] = struct{}{}
		for _, rt := range tx.Types {
			types[rt] = struct{}{}
		}
		for _, c := range tx.Commodities {
			if c.Name != "" {
				commodities[c.Name] = struct{}{}
			}
		}
	}

	opts := domain.FilterOptions{
		Years:       make([]int, 0, len(years)),
		Types:       make([]domain.ResourceType, 0, len(types)),
		Commodities: make([]string, 0, len(commodities)),
	}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	for rt := range types {
		opts.Types = append(opts.Types, rt)
	}
	for c := range commodities {
		opts.Commodities = append(opts.Commodities, c)
	}
	sort.Ints(opts.Years)
	sort.Slice(opts.Types, func(i, j int) bool { return opts.Types[i] < opts.Types[j] })
	sort.Strings(opts.Commodities)
	return opts
}
