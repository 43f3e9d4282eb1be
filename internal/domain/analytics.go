package domain

import "time"

// TimeBucket aggregates the transactions falling into one calendar period.
type TimeBucket struct {
	Date        string                          `json:"date"`
	Count       int                             `json:"count"`
	ByType      map[ResourceType][]*Transaction `json:"byType"`
	ByBook      map[string][]*Transaction       `json:"byBook"`
	Transfers   int                             `json:"transfers"`
	Commodities []string                        `json:"commodities"`
	TotalValue  float64                         `json:"totalValue"`
}

// Node role bits used by NetworkNode.Roles.
const (
	RoleSource      = 1
	RoleDestination = 2
)

// NetworkNode is an agent in the trade network.
// Group is the role of the last registration (1 source, 2 destination);
// Roles accumulates every role the agent was seen in.
type NetworkNode struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	URI   string `json:"uri"`
	Group int    `json:"group"`
	Roles int    `json:"roles"`
}

// NetworkLink is a directed trade relationship between two agents.
type NetworkLink struct {
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	Value        int            `json:"value"`
	Transactions []*Transaction `json:"transactions"`
}

// Network is the node/link graph derived from transaction agent pairs.
type Network struct {
	Nodes []NetworkNode `json:"nodes"`
	Links []NetworkLink `json:"links"`
}

// DateRange bounds a set of transactions. Both ends are nil for an empty set.
type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// Statistics summarises a transaction set.
type Statistics struct {
	TotalTransactions int            `json:"totalTransactions"`
	TotalTransfers    int            `json:"totalTransfers"`
	UniqueTraders     int            `json:"uniqueTraders"`
	UniqueCommodities int            `json:"uniqueCommodities"`
	TransactionTypes  []ResourceType `json:"transactionTypes"`
	DateRange         DateRange      `json:"dateRange"`
	CommodityTypes    []string       `json:"commodityTypes"`
	TotalValue        float64        `json:"totalValue"`
}

// BookStatistics is Statistics restricted to one book.
type BookStatistics struct {
	BookID string `json:"bookId"`
	Statistics
}

// TraderRank accumulates an agent's involvement across transactions.
type TraderRank struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Count     int      `json:"count"`
	Transfers int      `json:"transfers"`
	Value     float64  `json:"value"`
	Books     []string `json:"books"`
}

// TypeShare is the share of transactions carrying one resource type.
type TypeShare struct {
	Type       ResourceType `json:"type"`
	Count      int          `json:"count"`
	Percentage float64      `json:"percentage"`
}

// SeasonalRow counts transactions per resource type for one month of the year.
type SeasonalRow struct {
	Month  string               `json:"month"`
	ByType map[ResourceType]int `json:"byType"`
	Total  int                  `json:"total"`
}

// FilterOptions lists the values a filter can take for a dataset.
type FilterOptions struct {
	Years       []int          `json:"years"`
	Types       []ResourceType `json:"types"`
	Commodities []string       `json:"commodities"`
}
