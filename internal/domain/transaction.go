package domain

import "time"

// ResourceType classifies what moved in a transfer.
type ResourceType string

const (
	ResourceMoney        ResourceType = "bk:Money"
	ResourceServiceRight ResourceType = "bk:ServiceRight"
	ResourceEconomicGood ResourceType = "bk:EconomicGood"
)

// ResourceTypes lists every resource type in display order.
var ResourceTypes = []ResourceType{ResourceEconomicGood, ResourceServiceRight, ResourceMoney}

// AgentTypeEconomicAgent is the only agent type emitted by the archive.
const AgentTypeEconomicAgent = "bk:EconomicAgent"

// AgentRef identifies a party of a transfer. An empty ID means the URI carried no fragment.
type AgentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// CommodityRef describes the goods moved by a transfer.
type CommodityRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Measure string `json:"measure"`
}

// Transfer is one atomic movement between two agents.
type Transfer struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transactionId"`
	BookID        string        `json:"bookId"`
	Date          time.Time     `json:"date"`
	ResourceType  ResourceType  `json:"resourceType"`
	From          AgentRef      `json:"from"`
	To            AgentRef      `json:"to"`
	Details       string        `json:"details"`
	Commodity     *CommodityRef `json:"commodity"`
	Value         *float64      `json:"value"`
	Raw           RawTransfer   `json:"raw"`
}

// TransactionAgents holds the distinct senders and receivers of a transaction.
type TransactionAgents struct {
	From []AgentRef `json:"from"`
	To   []AgentRef `json:"to"`
}

// Transaction consolidates the transfers sharing one parent transaction identifier.
type Transaction struct {
	ID          string            `json:"id"`
	BookID      string            `json:"bookId"`
	Date        time.Time         `json:"date"`
	Transfers   []Transfer        `json:"transfers"`
	Types       []ResourceType    `json:"type"`
	Agents      TransactionAgents `json:"agents"`
	Commodities []CommodityRef    `json:"commodities"`
	TotalValue  float64           `json:"totalValue"`
}

// PrimaryType returns the first resource type seen in the transaction.
func (t *Transaction) PrimaryType() ResourceType {
	if len(t.Types) == 0 {
		return ResourceEconomicGood
	}
	return t.Types[0]
}

// HasType reports whether any transfer of the transaction has the given type.
func (t *Transaction) HasType(rt ResourceType) bool {
	for _, candidate := range t.Types {
		if candidate == rt {
			return true
		}
	}
	return false
}

// HasCommodity reports whether any commodity of the transaction carries the given name.
func (t *Transaction) HasCommodity(name string) bool {
	for _, c := range t.Commodities {
		if c.Name == name {
			return true
		}
	}
	return false
}
