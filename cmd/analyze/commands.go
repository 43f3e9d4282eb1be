package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chpollin/depcha-dashboard/internal/archive"
	"github.com/chpollin/depcha-dashboard/internal/config"
	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/export"
	"github.com/chpollin/depcha-dashboard/internal/graph"
	"github.com/chpollin/depcha-dashboard/internal/logging"
	"github.com/chpollin/depcha-dashboard/internal/metrics"
	"github.com/chpollin/depcha-dashboard/internal/pipeline"
	"github.com/chpollin/depcha-dashboard/internal/repository"
	"github.com/chpollin/depcha-dashboard/internal/service"
)

type rootOptions struct {
	envFile string
	dataDir string
	remote  bool
}

type filterFlags struct {
	year      string
	txType    string
	commodity string
	view      string
	limit     int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.year, "year", pipeline.FilterAll, "four digit year, or all")
	cmd.Flags().StringVar(&f.txType, "type", pipeline.FilterAll, "resource type tag or archive label, or all")
	cmd.Flags().StringVar(&f.commodity, "commodity", pipeline.FilterAll, "commodity name, or all")
	cmd.Flags().StringVar(&f.view, "view", string(pipeline.Monthly), "time series view: monthly, quarterly or yearly")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "number of ranked traders (0 uses the configured default)")
}

func (f *filterFlags) filter() pipeline.Filter {
	return pipeline.Filter{DateRange: f.year, TransactionType: f.txType, Commodity: f.commodity}
}

func (f *filterFlags) options() (pipeline.Options, error) {
	view, err := pipeline.ParseGranularity(f.view)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{View: view, TraderLimit: f.limit}, nil
}

// env is the wiring shared by every subcommand.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	source  service.Source
	service *service.ContextService
	graph   graph.Client
}

func (e *env) close() {
	if e.graph != nil {
		if err := e.graph.Close(context.Background()); err != nil {
			e.logger.Warn("closing graph client failed", "error", err)
		}
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "depcha-analyze",
		Short:         "Analyse account book contexts from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file applied before the environment")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "read books from this directory instead of ARCHIVE_DATA_DIR")
	root.PersistentFlags().BoolVar(&opts.remote, "remote", false, "always read books from the remote archive")

	root.AddCommand(
		newContextsCmd(opts),
		newSummaryCmd(opts),
		newExportCmd(opts),
		newPushGraphCmd(opts),
		newMirrorCmd(opts),
	)
	return root
}

func setup(cmd *cobra.Command, opts *rootOptions, withGraph bool) (*env, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.Archive.DataDir = opts.dataDir
	}
	if opts.remote {
		cfg.Archive.DataDir = ""
	}

	logger := logging.NewWithWriter(cfg.Logging, cmd.ErrOrStderr()).With("component", "analyze")
	e := &env{cfg: cfg, logger: logger}
	if cfg.Archive.DataDir != "" {
		e.source = archive.NewDirectory(cfg.Archive.DataDir)
	} else {
		e.source = archive.NewClient(cfg.Archive, logger)
	}

	svcOpts := service.Options{
		TTL:          cfg.Pipeline.CacheTTL,
		TraderLimit:  cfg.Pipeline.TraderLimit,
		RecentLimit:  cfg.Pipeline.RecentLimit,
		Workers:      cfg.Archive.MaxConcurrent,
		FetchTimeout: cfg.Archive.Timeout,
		Metrics:      metrics.New(),
		Logger:       logger,
	}
	if withGraph {
		if !cfg.GraphEnabled() {
			return nil, graph.ErrMissingURI
		}
		client, err := graph.NewNeo4jClient(cmd.Context(), graph.OptionsFromConfig(cfg.Graph))
		if err != nil {
			return nil, fmt.Errorf("create graph client: %w", err)
		}
		e.graph = client
		repo := repository.NewNetworkRepository(client, cfg.Graph.BatchSize)
		if err := repo.EnsureSchema(cmd.Context()); err != nil {
			_ = client.Close(cmd.Context())
			return nil, fmt.Errorf("graph schema: %w", err)
		}
		svcOpts.Graph = repo
	}
	e.service = service.NewContextService(e.source, svcOpts)
	return e, nil
}

func newContextsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "contexts",
		Short: "List the contexts of the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			contexts, err := e.service.Contexts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range contexts {
				fmt.Fprintf(out, "%s\t%s\t%d books\n", c.ID, c.Title, len(c.Books))
			}
			return nil
		},
	}
}

type summary struct {
	Context      string                  `json:"context"`
	Status       domain.LoadStatus       `json:"status"`
	Filter       pipeline.Filter         `json:"filter"`
	Statistics   domain.Statistics       `json:"statistics"`
	Books        []domain.BookStatistics `json:"books"`
	TopTraders   []domain.TraderRank     `json:"topTraders"`
	Distribution []domain.TypeShare      `json:"distribution"`
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	flags := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "summary <contextID>",
		Short: "Load a context and print its statistics as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			analysis, snap, err := analyze(cmd, e, args[0], flags)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary{
				Context:      args[0],
				Status:       snap.Status,
				Filter:       analysis.Filter,
				Statistics:   analysis.Statistics,
				Books:        analysis.BookStatistics,
				TopTraders:   analysis.TopTraders,
				Distribution: analysis.Distribution,
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	flags := &filterFlags{}
	var (
		format string
		table  string
		output string
		bom    bool
	)
	cmd := &cobra.Command{
		Use:   "export <contextID>",
		Short: "Export a filtered context as CSV or XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			analysis, _, err := analyze(cmd, e, args[0], flags)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			switch strings.ToLower(format) {
			case "xlsx":
				return export.WriteWorkbook(w, analysis)
			case "csv":
				csvOpts := export.CSVOptions{BOMPrefix: bom}
				switch table {
				case "transactions":
					return export.WriteTransactionsCSV(w, analysis.Transactions, csvOpts)
				case "traders":
					return export.WriteTradersCSV(w, analysis.TopTraders, csvOpts)
				case "timeseries":
					return export.WriteTimeSeriesCSV(w, analysis.TimeSeries, csvOpts)
				case "books":
					return export.WriteCSV(w, export.BookHeaders, export.BookRecords(analysis.BookStatistics), csvOpts)
				}
				return fmt.Errorf("unknown table %q", table)
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&table, "table", "transactions", "csv table: transactions, traders, timeseries or books")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().BoolVar(&bom, "bom", false, "prefix CSV output with a UTF-8 byte order mark")
	return cmd
}

func newPushGraphCmd(opts *rootOptions) *cobra.Command {
	var (
		all     bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "push-graph [contextID...]",
		Short: "Store context trade networks in the graph database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass context IDs or --all")
			}
			e, err := setup(cmd, opts, true)
			if err != nil {
				return err
			}
			defer e.close()

			ids := args
			if all {
				contexts, err := e.service.Contexts(cmd.Context())
				if err != nil {
					return err
				}
				for _, c := range contexts {
					ids = append(ids, c.ID)
				}
			}
			if err := service.NewBatch(e.service, workers).ExportAll(cmd.Context(), ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d contexts\n", len(ids))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "export every context of the catalogue")
	cmd.Flags().IntVar(&workers, "workers", 2, "contexts exported concurrently")
	return cmd
}

func newMirrorCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "mirror <contextID>",
		Short: "Copy a context's books from the archive into a local directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			c, err := e.service.Context(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			books, err := e.service.Books(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.Books = books

			target := archive.NewDirectory(output)
			for _, book := range books {
				records, err := e.source.FetchTransfers(cmd.Context(), book.ID)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", book.ID, err)
				}
				if err := target.WriteBook(book.ID, records); err != nil {
					return err
				}
				e.logger.Info("book mirrored", "book", book.ID, "records", len(records))
			}
			return target.WriteCatalog([]domain.Context{c})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "data", "target directory")
	return cmd
}

func analyze(cmd *cobra.Command, e *env, contextID string, flags *filterFlags) (pipeline.Analysis, *service.Snapshot, error) {
	opts, err := flags.options()
	if err != nil {
		return pipeline.Analysis{}, nil, err
	}
	snap, err := e.service.Load(cmd.Context(), contextID)
	if err != nil {
		return pipeline.Analysis{}, nil, err
	}
	analysis, err := e.service.Analyze(cmd.Context(), contextID, flags.filter(), opts)
	if err != nil {
		return pipeline.Analysis{}, nil, err
	}
	return analysis, snap, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
