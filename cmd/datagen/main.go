package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chpollin/depcha-dashboard/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		contextID     = flag.String("context", cfg.ContextID, "context ID of the generated catalogue entry")
		books         = flag.Int("books", cfg.NumBooks, "number of account books to generate")
		transactions  = flag.Int("transactions", cfg.TransactionsPerBook, "transactions per book")
		agents        = flag.Int("agents", cfg.NumAgents, "number of distinct agents across all books")
		maxTransfers  = flag.Int("max-transfers", cfg.MaxTransfers, "maximum transfers per transaction")
		startYear     = flag.Int("start-year", cfg.StartYear, "first year covered by the books")
		years         = flag.Int("years", cfg.Years, "number of years covered")
		shareChance   = flag.Float64("agent-share-chance", cfg.AgentShareChance, "probability of reusing an agent from an earlier book")
		undatedChance = flag.Float64("undated-chance", cfg.UndatedChance, "probability of an unparseable date")
		seed          = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir     = flag.String("output-dir", "data", "directory to write catalog.json and the book files")
		writeStdout   = flag.Bool("stdout", false, "write the dataset to stdout instead of files")
	)
	flag.Parse()

	genCfg := generator.Config{
		ContextID:           *contextID,
		NumBooks:            *books,
		TransactionsPerBook: *transactions,
		NumAgents:           *agents,
		MaxTransfers:        *maxTransfers,
		StartYear:           *startYear,
		Years:               *years,
		AgentShareChance:    clampProbability(*shareChance),
		UndatedChance:       clampProbability(*undatedChance),
		Seed:                *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataset, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d books with %d records into %s\n", len(dataset.Books), len(dataset.Records()), *outputDir)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
