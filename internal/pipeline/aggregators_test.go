package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

func group(t *testing.T, raws ...domain.RawTransfer) []*domain.Transaction {
	t.Helper()
	return GroupTransactions(BuildTransfers(raws))
}

func TestBucket_SortsNumericallyAcrossYears(t *testing.T) {
	txs := group(t,
		raw("T1", "T1T1", "1830-01-05", "Service", "A", "B", "1"),
		raw("T2", "T2T1", "1829-12-30", "Service", "A", "B", "1"),
		raw("T3", "T3T1", "1829-02-01", "Service", "A", "B", "1"),
		raw("T4", "T4T1", "1829-11-11", "Service", "A", "B", "1"),
	)

	series := TimeSeries(txs)
	labels := make([]string, 0, len(series))
	for _, b := range series {
		labels = append(labels, b.Date)
	}
	assert.Equal(t, []string{"1829-02", "1829-11", "1829-12", "1830-01"}, labels)
}

func TestBucket_Granularities(t *testing.T) {
	txs := group(t,
		raw("T1", "T1T1", "1829-01-05", "Service", "A", "B", "1"),
		raw("T2", "T2T1", "1829-03-30", "Commodity", "A", "B", "2", withCommodity("corn")),
		raw("T3", "T3T1", "1829-04-01", "Monetary Value", "A", "B", "3"),
		raw("T4", "T4T1", "1831-10-11", "Service", "A", "B", "4"),
	)

	quarters := Bucket(txs, Quarterly)
	require.Len(t, quarters, 3)
	assert.Equal(t, "1829-Q1", quarters[0].Date)
	assert.Equal(t, 2, quarters[0].Count)
	assert.InDelta(t, 3.0, quarters[0].TotalValue, 1e-9)
	assert.Equal(t, "1829-Q2", quarters[1].Date)
	assert.Equal(t, "1831-Q4", quarters[2].Date)

	years := Bucket(txs, Yearly)
	require.Len(t, years, 2)
	assert.Equal(t, "1829", years[0].Date)
	assert.Equal(t, 3, years[0].Count)
	assert.Equal(t, "1831", years[1].Date)
}

func TestBucket_PartitionsByPrimaryTypeAndBook(t *testing.T) {
	other := "https://gams.uni-graz.at/o:depcha.wheaton.2"
	txs := group(t,
		raw("T1", "T1T1", "1829-01-05", "Service", "A", "B", "1"),
		raw("T1", "T1T2", "1829-01-05", "Monetary Value", "B", "A", "1"),
		raw("T2", "T2T1", "1829-01-06", "Monetary Value", "A", "B", "1", withBook(other, "T2")),
	)

	series := TimeSeries(txs)
	require.Len(t, series, 1)
	b := series[0]
	assert.Len(t, b.ByType[domain.ResourceServiceRight], 1)
	assert.Len(t, b.ByType[domain.ResourceMoney], 1)
	assert.Len(t, b.ByBook["o:depcha.wheaton.1"], 1)
	assert.Len(t, b.ByBook["o:depcha.wheaton.2"], 1)
	assert.Equal(t, 3, b.Transfers)
	assert.Empty(t, b.Commodities)
}

func TestBucket_CountsSumToTransactionCount(t *testing.T) {
	data := Process(scenario())
	for _, g := range []Granularity{Monthly, Quarterly, Yearly} {
		total := 0
		for _, b := range Bucket(data.Transactions, g) {
			total += b.Count
		}
		assert.Equal(t, len(data.Transactions), total, string(g))
	}
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in   string
		want Granularity
		err  bool
	}{
		{in: "", want: Monthly},
		{in: "monthly", want: Monthly},
		{in: "Quarterly", want: Quarterly},
		{in: " yearly ", want: Yearly},
		{in: "weekly", err: true},
	}
	for _, tt := range tests {
		got, err := ParseGranularity(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestBuildNetwork_CrossProductAndLastGroup(t *testing.T) {
	txs := group(t,
		raw("T1", "T1T1", "1829-01-01", "Service", "A", "B", "1"),
		raw("T1", "T1T2", "1829-01-01", "Service", "C", "D", "1"),
		raw("T2", "T2T1", "1829-02-01", "Service", "B", "A", "1"),
		raw("T3", "T3T1", "1829-03-01", "Service", "A", "B", "1"),
	)

	network := BuildNetwork(txs)
	edges := map[string]int{}
	for _, l := range network.Links {
		edges[l.Source+"->"+l.Target] = l.Value
	}
	assert.Equal(t, map[string]int{
		"A->B": 2, "A->D": 1, "C->B": 1, "C->D": 1, "B->A": 1,
	}, edges)

	nodes := map[string]domain.NetworkNode{}
	for _, n := range network.Nodes {
		nodes[n.ID] = n
	}
	require.Len(t, nodes, 4)
	// A was last registered as a sender (T3); B last as a receiver (T3).
	assert.Equal(t, domain.RoleSource, nodes["A"].Group)
	assert.Equal(t, domain.RoleDestination, nodes["B"].Group)
	assert.Equal(t, domain.RoleSource|domain.RoleDestination, nodes["A"].Roles)
	assert.Equal(t, domain.RoleSource|domain.RoleDestination, nodes["B"].Roles)
	assert.Equal(t, domain.RoleSource, nodes["C"].Roles)
	assert.Equal(t, domain.RoleDestination, nodes["D"].Group)
}

func TestBuildNetwork_LinkValueMatchesTransactions(t *testing.T) {
	network := BuildNetwork(Process(scenario()).Transactions)
	for _, l := range network.Links {
		assert.Equal(t, l.Value, len(l.Transactions))
	}
}

func TestBuildNetwork_SkipsAgentsWithoutID(t *testing.T) {
	r := raw("T1", "T1T1", "1829", "Service", "A", "B", "1")
	r.ToURI = "https://gams.uni-graz.at/o:depcha.wheaton.1"
	network := BuildNetwork(group(t, r))
	require.Len(t, network.Nodes, 1)
	assert.Equal(t, "A", network.Nodes[0].ID)
	assert.Empty(t, network.Links)
	assert.NotNil(t, network.Links)
}

func TestComputeStatistics(t *testing.T) {
	stats := ComputeStatistics(Process(scenario()).Transactions)
	assert.Equal(t, 2, stats.TotalTransactions)
	assert.Equal(t, 3, stats.TotalTransfers)
	assert.Equal(t, 3, stats.UniqueTraders)
	assert.Equal(t, 1, stats.UniqueCommodities)
	assert.Equal(t, []string{"corn"}, stats.CommodityTypes)
	assert.ElementsMatch(t, domain.ResourceTypes, stats.TransactionTypes)
	assert.InDelta(t, 7.5, stats.TotalValue, 1e-9)
	require.NotNil(t, stats.DateRange.Start)
	require.NotNil(t, stats.DateRange.End)
	assert.Equal(t, "1829-04-21", stats.DateRange.Start.Format("2006-01-02"))
	assert.Equal(t, "1829-05-01", stats.DateRange.End.Format("2006-01-02"))
}

func TestComputeStatistics_Empty(t *testing.T) {
	stats := ComputeStatistics(nil)
	assert.Zero(t, stats.TotalTransactions)
	assert.Zero(t, stats.UniqueTraders)
	assert.Nil(t, stats.DateRange.Start)
	assert.Nil(t, stats.DateRange.End)
	assert.NotNil(t, stats.TransactionTypes)
	assert.NotNil(t, stats.CommodityTypes)
}

func TestComputeBookStatistics(t *testing.T) {
	other := "https://gams.uni-graz.at/o:depcha.wheaton.2"
	raws := append(scenario(), raw("T9", "T9T1", "1829-04-22", "Service", "X", "Y", "10", withBook(other, "T9")))
	txs := Process(raws).Transactions

	books := ComputeBookStatistics(txs)
	require.Len(t, books, 2)
	assert.Equal(t, "o:depcha.wheaton.1", books[0].BookID)
	assert.Equal(t, 2, books[0].TotalTransactions)
	assert.Equal(t, "o:depcha.wheaton.2", books[1].BookID)
	assert.Equal(t, 1, books[1].TotalTransactions)
	assert.Equal(t, 2, books[1].UniqueTraders)

	assert.Empty(t, ComputeBookStatistics(nil))
}

func TestTopTraders_CountsEachRole(t *testing.T) {
	// A both sends and receives in T1.
	txs := group(t,
		raw("T1", "T1T1", "1829-01-01", "Service", "A", "B", "1"),
		raw("T1", "T1T2", "1829-01-01", "Service", "B", "A", "2"),
	)
	traders := TopTraders(txs, 5)
	require.Len(t, traders, 2)
	assert.Equal(t, "A", traders[0].ID)
	assert.Equal(t, 2, traders[0].Count)
	assert.Equal(t, 4, traders[0].Transfers)
	assert.InDelta(t, 6.0, traders[0].Value, 1e-9)
	assert.Equal(t, []string{"o:depcha.wheaton.1"}, traders[0].Books)
}

func TestTopTraders_LimitAndDefault(t *testing.T) {
	var raws []domain.RawTransfer
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		raws = append(raws, raw("T"+id, "T"+id+"1", "1829", "Service", "S"+id, "R"+id, "1"))
	}
	txs := group(t, raws...)

	assert.Len(t, TopTraders(txs, 0), DefaultLimit)
	assert.Len(t, TopTraders(txs, 3), 3)
	assert.Len(t, TopTraders(txs, 100), 30)
	assert.NotNil(t, TopTraders(nil, 5))
	assert.Empty(t, TopTraders(nil, 5))
}

func TestTopTraders_TiesKeepFirstSeenOrder(t *testing.T) {
	txs := group(t,
		raw("T1", "T1T1", "1829-01-01", "Service", "Z", "M", "1"),
		raw("T2", "T2T1", "1829-01-02", "Service", "A", "Q", "1"),
	)
	traders := TopTraders(txs, 10)
	ids := make([]string, 0, len(traders))
	for _, r := range traders {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"Z", "M", "A", "Q"}, ids)
}

func TestRecentTransactions(t *testing.T) {
	txs := group(t,
		raw("T1", "T1T1", "1829-01-01", "Service", "A", "B", "1"),
		raw("T2", "T2T1", "1829-06-01", "Service", "A", "B", "1"),
		raw("T3", "T3T1", "1829-06-01", "Service", "A", "B", "1"),
		raw("T4", "T4T1", "1830-01-01", "Service", "A", "B", "1"),
	)

	recent := RecentTransactions(txs, 3)
	require.Len(t, recent, 3)
	assert.Equal(t, "T4", recent[0].ID)
	assert.Equal(t, "T2", recent[1].ID)
	assert.Equal(t, "T3", recent[2].ID)
	// input untouched
	assert.Equal(t, "T1", txs[0].ID)

	assert.Len(t, RecentTransactions(txs, 0), 4)
}

func TestFilter_Apply(t *testing.T) {
	other := "https://gams.uni-graz.at/o:depcha.wheaton.2"
	raws := append(scenario(), raw("T9", "T9T1", "1830-04-22", "Service", "X", "Y", "10", withBook(other, "T9")))
	txs := Process(raws).Transactions

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "all", filter: AllFilter(), want: []string{"T1", "T2", "T9"}},
		{name: "zero value", filter: Filter{}, want: []string{"T1", "T2", "T9"}},
		{name: "year", filter: Filter{DateRange: "1829"}, want: []string{"T1", "T2"}},
		{name: "year without data", filter: Filter{DateRange: "1700"}, want: []string{}},
		{name: "type tag", filter: Filter{TransactionType: "bk:Money"}, want: []string{"T2"}},
		{name: "type label", filter: Filter{TransactionType: "Service"}, want: []string{"T1", "T9"}},
		{name: "commodity", filter: Filter{Commodity: "corn"}, want: []string{"T1"}},
		{name: "unknown commodity", filter: Filter{Commodity: "tea"}, want: []string{}},
		{name: "combined", filter: Filter{DateRange: "1830", TransactionType: "bk:ServiceRight", Commodity: FilterAll}, want: []string{"T9"}},
		{name: "unknown type", filter: Filter{TransactionType: "bk:Barter"}, want: []string{}},
		{name: "bad year", filter: Filter{DateRange: "18x9"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(txs)
			ids := make([]string, 0, len(got))
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilter_AllReturnsInput(t *testing.T) {
	txs := Process(scenario()).Transactions
	got := AllFilter().Apply(txs)
	require.Len(t, got, len(txs))
	assert.Same(t, txs[0], got[0])
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, AllFilter().Validate())
	assert.NoError(t, Filter{DateRange: "1829", TransactionType: "Monetary Value"}.Validate())
	assert.ErrorIs(t, Filter{DateRange: "29"}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, Filter{TransactionType: "barter"}.Validate(), ErrInvalidFilter)
}

func TestAnalyze(t *testing.T) {
	txs := Process(scenario()).Transactions

	a, err := Analyze(txs, Filter{DateRange: "1829"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, Monthly, a.View)
	assert.Len(t, a.Transactions, 2)
	assert.Len(t, a.TimeSeries, 2)
	assert.Len(t, a.Network.Links, 3)
	assert.Len(t, a.TopTraders, 3)
	assert.Len(t, a.Recent, 2)
	assert.Equal(t, "T2", a.Recent[0].ID)
	assert.Equal(t, 2, a.Statistics.TotalTransactions)
	assert.Len(t, a.BookStatistics, 1)
	assert.Len(t, a.Seasonal, 12)
	assert.Len(t, a.Distribution, len(domain.ResourceTypes))

	_, err = Analyze(txs, Filter{TransactionType: "barter"}, Options{})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestAnalyze_DoesNotMutateInput(t *testing.T) {
	txs := Process(scenario()).Transactions
	before := make([]string, len(txs))
	for i, tx := range txs {
		before[i] = tx.ID
	}
	_, err := Analyze(txs, Filter{Commodity: "corn"}, Options{View: Yearly, TraderLimit: 1, RecentLimit: 1})
	require.NoError(t, err)
	for i, tx := range txs {
		assert.Equal(t, before[i], tx.ID)
	}
}

func TestDistribution(t *testing.T) {
	shares := Distribution(Process(scenario()).Transactions)
	byType := map[domain.ResourceType]domain.TypeShare{}
	for _, s := range shares {
		byType[s.Type] = s
	}
	assert.Equal(t, 1, byType[domain.ResourceEconomicGood].Count)
	assert.Equal(t, 50.0, byType[domain.ResourceEconomicGood].Percentage)
	assert.Equal(t, 1, byType[domain.ResourceMoney].Count)

	for _, s := range Distribution(nil) {
		assert.Zero(t, s.Count)
		assert.Zero(t, s.Percentage)
	}
}

func TestSeasonal(t *testing.T) {
	txs := group(t,
		raw("T1", "T1T1", "1829-04-01", "Service", "A", "B", "1"),
		raw("T2", "T2T1", "1835-04-15", "Monetary Value", "A", "B", "1"),
		raw("T3", "T3T1", "1830-12-01", "Service", "A", "B", "1"),
	)
	rows := Seasonal(txs)
	require.Len(t, rows, 12)
	assert.Equal(t, "Jan", rows[0].Month)
	assert.Equal(t, "Apr", rows[3].Month)
	assert.Equal(t, 2, rows[3].Total)
	assert.Equal(t, 1, rows[3].ByType[domain.ResourceMoney])
	assert.Equal(t, 1, rows[11].Total)
	assert.Equal(t, 0, rows[5].ByType[domain.ResourceEconomicGood])
}

func TestFilterOptionsOf(t *testing.T) {
	raws := append(scenario(),
		raw("T9", "T9T1", "1827-02", "Commodity", "X", "Y", "1", withCommodity("barley")))
	opts := FilterOptionsOf(Process(raws).Transactions)
	assert.Equal(t, []int{1827, 1829}, opts.Years)
	assert.Equal(t, []string{"barley", "corn"}, opts.Commodities)
	assert.Len(t, opts.Types, 3)
}
