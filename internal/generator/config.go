package generator

// Config drives the synthetic ledger generator.
type Config struct {
	ContextID           string
	NumBooks            int
	TransactionsPerBook int
	NumAgents           int
	MaxTransfers        int
	StartYear           int
	Years               int
	Seed                int64

	// AgentShareChance is the probability that a transfer party is drawn from
	// the agents of earlier books; UndatedChance that a record's date is unparseable.
	AgentShareChance float64
	UndatedChance    float64
}

// DefaultConfig returns settings for a small multi-book context.
func DefaultConfig() Config {
	return Config{
		ContextID:           "context:depcha.synthetic",
		NumBooks:            3,
		TransactionsPerBook: 500,
		NumAgents:           60,
		MaxTransfers:        3,
		StartYear:           1828,
		Years:               4,
		AgentShareChance:    0.4,
		UndatedChance:       0.02,
		Seed:                42,
	}
}
