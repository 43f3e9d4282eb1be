package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/metrics"
	"github.com/chpollin/depcha-dashboard/internal/pipeline"
)

var (
	// ErrContextNotFound is returned for context IDs missing from the catalogue.
	ErrContextNotFound = errors.New("context not found")
	// ErrNotLoaded is returned when a context has no snapshot yet.
	ErrNotLoaded = errors.New("context not loaded")
	// ErrGraphUnavailable is returned by ExportGraph when no graph sink is configured.
	ErrGraphUnavailable = errors.New("graph export not configured")
)

const defaultTTL = 30 * time.Minute

// Source supplies the catalogue and the raw transfers of each book.
type Source interface {
	ListContexts(ctx context.Context) ([]domain.Context, error)
	ListBooks(ctx context.Context, contextID string) ([]domain.Book, error)
	FetchTransfers(ctx context.Context, bookID string) ([]domain.RawTransfer, error)
}

// GraphSink stores a trade network.
type GraphSink interface {
	SaveNetwork(ctx context.Context, contextID string, network domain.Network) error
}

// Snapshot is the processed state of one context load. It is never mutated
// after construction; filters derive new Analysis values from it.
type Snapshot struct {
	ID        string               `json:"id"`
	ContextID string               `json:"contextId"`
	Books     []domain.Book        `json:"books"`
	LoadedAt  time.Time            `json:"loadedAt"`
	Status    domain.LoadStatus    `json:"status"`
	Data      pipeline.Dataset     `json:"-"`
	Options   domain.FilterOptions `json:"filterOptions"`
}

// Options configures a ContextService.
type Options struct {
	TTL          time.Duration
	TraderLimit  int
	RecentLimit  int
	Workers      int
	FetchTimeout time.Duration
	Graph        GraphSink
	Metrics      *metrics.Recorder
	Logger       *slog.Logger
}

// ContextService loads contexts from a Source and caches their snapshots.
type ContextService struct {
	source  Source
	loader  *Loader
	graph   GraphSink
	metrics *metrics.Recorder
	logger  *slog.Logger
	ttl     time.Duration
	limits  pipeline.Options
	nowFn   func() time.Time

	mu        sync.RWMutex
	catalogue []domain.Context
	catalogAt time.Time
	snapshots map[string]*Snapshot
	flight    singleflight.Group
}

// NewContextService wires a service around source.
func NewContextService(source Source, opts Options) *ContextService {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ContextService{
		source: source,
		loader: NewLoader(source, LoaderOptions{
			Workers:      opts.Workers,
			FetchTimeout: opts.FetchTimeout,
			Metrics:      opts.Metrics,
			Logger:       opts.Logger,
		}),
		graph:   opts.Graph,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "contexts"),
		ttl:     opts.TTL,
		limits: pipeline.Options{
			TraderLimit: opts.TraderLimit,
			RecentLimit: opts.RecentLimit,
		},
		nowFn:     time.Now,
		snapshots: make(map[string]*Snapshot),
	}
}

// GraphEnabled reports whether ExportGraph has a sink.
func (s *ContextService) GraphEnabled() bool {
	return s.graph != nil
}

// Contexts returns the catalogue, cached for the service TTL.
func (s *ContextService) Contexts(ctx context.Context) ([]domain.Context, error) {
	s.mu.RLock()
	if s.catalogue != nil && s.nowFn().Sub(s.catalogAt) < s.ttl {
		contexts := s.catalogue
		s.mu.RUnlock()
		return contexts, nil
	}
	s.mu.RUnlock()

	// Callers share one fetch, so it must outlive any single caller.
	ch := s.flight.DoChan("catalogue", func() (any, error) {
		contexts, err := s.source.ListContexts(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("list contexts: %w", err)
		}
		s.mu.Lock()
		s.catalogue = contexts
		s.catalogAt = s.nowFn()
		s.mu.Unlock()
		return contexts, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Context), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Context returns one catalogue entry.
func (s *ContextService) Context(ctx context.Context, contextID string) (domain.Context, error) {
	contexts, err := s.Contexts(ctx)
	if err != nil {
		return domain.Context{}, err
	}
	for _, c := range contexts {
		if c.ID == contextID {
			return c, nil
		}
	}
	return domain.Context{}, fmt.Errorf("%w: %s", ErrContextNotFound, contextID)
}

// Books lists the books of a context in catalogue order.
func (s *ContextService) Books(ctx context.Context, contextID string) ([]domain.Book, error) {
	c, err := s.Context(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if len(c.Books) > 0 {
		return c.Books, nil
	}
	books, err := s.source.ListBooks(ctx, contextID)
	if err != nil {
		return nil, fmt.Errorf("list books of %s: %w", contextID, err)
	}
	return books, nil
}

// Snapshot returns the cached snapshot of a context, loading it when absent
// or older than the TTL.
func (s *ContextService) Snapshot(ctx context.Context, contextID string) (*Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[contextID]
	s.mu.RUnlock()
	if ok && s.nowFn().Sub(snap.LoadedAt) < s.ttl {
		return snap, nil
	}
	return s.Load(ctx, contextID)
}

// Load fetches and processes every book of a context and replaces its cached
// snapshot. Concurrent loads of one context share a single run. If ctx ends
// first, Load returns its error while the run completes and is cached.
func (s *ContextService) Load(ctx context.Context, contextID string) (*Snapshot, error) {
	ch := s.flight.DoChan("load:"+contextID, func() (any, error) {
		return s.build(context.WithoutCancel(ctx), contextID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ContextService) build(ctx context.Context, contextID string) (*Snapshot, error) {
	books, err := s.Books(ctx, contextID)
	if err != nil {
		return nil, err
	}

	start := s.nowFn()
	raws, status, err := s.loader.LoadBooks(ctx, books)
	var report *LoadReport
	if err != nil && !errors.As(err, &report) {
		return nil, err
	}
	if report != nil {
		s.logger.Warn("context loaded with failed books", "context", contextID,
			"failed", status.Failed, "total", status.Total, "error", report)
	}

	data := pipeline.Process(raws)
	now := s.nowFn()
	status.LoadedAt = now
	snap := &Snapshot{
		ID:        uuid.NewString(),
		ContextID: contextID,
		Books:     books,
		LoadedAt:  now,
		Status:    status,
		Data:      data,
		Options:   pipeline.FilterOptionsOf(data.Transactions),
	}
	s.metrics.ObserveSnapshot(contextID, data, now.Sub(start))
	s.logger.Info("context loaded", "context", contextID, "snapshot", snap.ID,
		"books", status.Successful, "raw", data.RawCount, "dropped", data.Dropped(),
		"transactions", len(data.Transactions))

	s.mu.Lock()
	s.snapshots[contextID] = snap
	s.mu.Unlock()
	return snap, nil
}

// LoadStatus reports the book outcomes of the cached snapshot without loading.
func (s *ContextService) LoadStatus(contextID string) (domain.LoadStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[contextID]
	if !ok {
		return domain.LoadStatus{}, fmt.Errorf("%w: %s", ErrNotLoaded, contextID)
	}
	return snap.Status, nil
}

// Analyze filters the context's snapshot and derives every view.
// Zero limits in opts fall back to the service defaults.
func (s *ContextService) Analyze(ctx context.Context, contextID string, filter pipeline.Filter, opts pipeline.Options) (pipeline.Analysis, error) {
	if err := filter.Validate(); err != nil {
		return pipeline.Analysis{}, err
	}
	snap, err := s.Snapshot(ctx, contextID)
	if err != nil {
		return pipeline.Analysis{}, err
	}
	if opts.TraderLimit <= 0 {
		opts.TraderLimit = s.limits.TraderLimit
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = s.limits.RecentLimit
	}
	return pipeline.Analyze(snap.Data.Transactions, filter, opts)
}

// FilterOptions lists the filter values available for a context.
func (s *ContextService) FilterOptions(ctx context.Context, contextID string) (domain.FilterOptions, error) {
	snap, err := s.Snapshot(ctx, contextID)
	if err != nil {
		return domain.FilterOptions{}, err
	}
	return snap.Options, nil
}

// ExportGraph stores the filtered network of a context in the graph sink.
func (s *ContextService) ExportGraph(ctx context.Context, contextID string, filter pipeline.Filter) (domain.Network, error) {
	if s.graph == nil {
		return domain.Network{}, ErrGraphUnavailable
	}
	if err := filter.Validate(); err != nil {
		return domain.Network{}, err
	}
	snap, err := s.Snapshot(ctx, contextID)
	if err != nil {
		return domain.Network{}, err
	}
	network := pipeline.BuildNetwork(filter.Apply(snap.Data.Transactions))
	if err := s.graph.SaveNetwork(ctx, contextID, network); err != nil {
		return domain.Network{}, fmt.Errorf("export network of %s: %w", contextID, err)
	}
	s.logger.Info("network exported", "context", contextID, "nodes", len(network.Nodes), "links", len(network.Links))
	return network, nil
}
