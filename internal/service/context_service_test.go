package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/logging"
	"github.com/chpollin/depcha-dashboard/internal/metrics"
	"github.com/chpollin/depcha-dashboard/internal/pipeline"
)

const testContext = "context:depcha.wheaton"

type stubSource struct {
	mu         sync.Mutex
	contexts   []domain.Context
	books      map[string][]domain.Book
	transfers  map[string][]domain.RawTransfer
	errs       map[string]error
	delay      time.Duration
	listCalls  int
	fetchCalls int
}

func (s *stubSource) ListContexts(ctx context.Context) ([]domain.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.contexts, nil
}

func (s *stubSource) ListBooks(ctx context.Context, contextID string) ([]domain.Book, error) {
	return s.books[contextID], nil
}

func (s *stubSource) FetchTransfers(ctx context.Context, bookID string) ([]domain.RawTransfer, error) {
	s.mu.Lock()
	s.fetchCalls++
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.errs[bookID]; err != nil {
		return nil, err
	}
	return s.transfers[bookID], nil
}

func (s *stubSource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

func bookURI(book string) string {
	return "https://gams.uni-graz.at/" + book
}

func record(book, tx, when, label, from, to, entry string) domain.RawTransfer {
	return domain.RawTransfer{
		When:           when,
		TransactionURI: bookURI(book) + "#" + tx,
		TransferURI:    bookURI(book) + "#" + tx + "T1",
		FromURI:        bookURI(book) + "#" + from,
		FromName:       from,
		ToURI:          bookURI(book) + "#" + to,
		ToName:         to,
		Entry:          entry,
		ResourceLabel:  label,
	}
}

func newStubSource() *stubSource {
	return &stubSource{
		contexts: []domain.Context{{ID: testContext, Title: "Wheaton"}},
		books: map[string][]domain.Book{
			testContext: {{ID: "o:b.1"}, {ID: "o:b.2"}, {ID: "o:b.3"}},
		},
		transfers: map[string][]domain.RawTransfer{
			"o:b.1": {
				record("o:b.1", "T1", "1829-04-21", "Service", "A", "B", "2"),
				record("o:b.1", "T2", "bad date", "Service", "A", "B", "2"),
			},
			"o:b.2": {record("o:b.2", "T3", "1830-01-01", "Monetary Value", "B", "C", "5")},
			"o:b.3": {record("o:b.3", "T4", "1829-01-01", "Commodity", "C", "A", "1")},
		},
		errs: map[string]error{},
	}
}

func newTestService(src Source, opts Options) *ContextService {
	opts.Logger = logging.Discard()
	return NewContextService(src, opts)
}

func TestContextService_LoadMergesInCatalogueOrder(t *testing.T) {
	src := newStubSource()
	src.errs["o:b.2"] = errors.New("connection reset")
	rec := metrics.New()
	svc := newTestService(src, Options{Metrics: rec, Workers: 2})

	snap, err := svc.Load(context.Background(), testContext)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 3, snap.Status.Total)
	assert.Equal(t, 2, snap.Status.Successful)
	assert.Equal(t, 1, snap.Status.Failed)
	assert.True(t, snap.Status.Complete)
	require.Len(t, snap.Status.Books, 3)
	assert.Equal(t, "o:b.2", snap.Status.Books[1].BookID)
	assert.False(t, snap.Status.Books[1].Success)
	assert.Contains(t, snap.Status.Books[1].Error, "connection reset")
	assert.Equal(t, 2, snap.Status.Books[0].Records)

	assert.Equal(t, 3, snap.Data.RawCount)
	assert.Equal(t, 1, snap.Data.Dropped())
	require.Len(t, snap.Data.Transfers, 2)
	assert.Equal(t, "o:b.1", snap.Data.Transfers[0].BookID)
	assert.Equal(t, "o:b.3", snap.Data.Transfers[1].BookID)
	assert.Equal(t, []int{1829}, snap.Options.Years)
	assert.InDelta(t, 3, float64(rec.DistinctAgents(testContext)), 0.5)
}

func TestContextService_MalformedBookFailsOnlyThatBook(t *testing.T) {
	src := newStubSource()
	src.errs["o:b.3"] = fmt.Errorf("read book: %w", domain.ErrMalformedInput)
	svc := newTestService(src, Options{})

	snap, err := svc.Load(context.Background(), testContext)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Status.Failed)
	assert.Len(t, snap.Data.Transactions, 2)
}

func TestContextService_SnapshotCachesUntilTTL(t *testing.T) {
	src := newStubSource()
	svc := newTestService(src, Options{TTL: time.Minute})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.nowFn = func() time.Time { return now }

	first, err := svc.Snapshot(context.Background(), testContext)
	require.NoError(t, err)
	second, err := svc.Snapshot(context.Background(), testContext)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 3, src.fetches())

	now = now.Add(2 * time.Minute)
	third, err := svc.Snapshot(context.Background(), testContext)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, 6, src.fetches())
}

func TestContextService_UnknownContext(t *testing.T) {
	svc := newTestService(newStubSource(), Options{})

	_, err := svc.Load(context.Background(), "context:missing")
	assert.ErrorIs(t, err, ErrContextNotFound)

	_, err = svc.LoadStatus(testContext)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestContextService_BooksPreferCatalogueEntries(t *testing.T) {
	src := newStubSource()
	src.contexts[0].Books = []domain.Book{{ID: "o:b.3"}}
	svc := newTestService(src, Options{})

	books, err := svc.Books(context.Background(), testContext)
	require.NoError(t, err)
	assert.Equal(t, []domain.Book{{ID: "o:b.3"}}, books)
}

func TestContextService_ContextsCached(t *testing.T) {
	src := newStubSource()
	svc := newTestService(src, Options{})

	for i := 0; i < 3; i++ {
		contexts, err := svc.Contexts(context.Background())
		require.NoError(t, err)
		assert.Len(t, contexts, 1)
	}
	assert.Equal(t, 1, src.listCalls)
}

// gatedCatalogue holds ListContexts until release is closed and then fails if
// the fetch context was cancelled meanwhile.
type gatedCatalogue struct {
	*stubSource
	started chan struct{}
	release chan struct{}
}

func (g *gatedCatalogue) ListContexts(ctx context.Context) ([]domain.Context, error) {
	close(g.started)
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.stubSource.ListContexts(ctx)
}

func TestContextService_CancelledCallerDoesNotAbortCatalogueFetch(t *testing.T) {
	src := &gatedCatalogue{
		stubSource: newStubSource(),
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	svc := newTestService(src, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Contexts(ctx)
		firstErr <- err
	}()
	<-src.started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		contexts []domain.Context
		err      error
	}
	second := make(chan result, 1)
	go func() {
		contexts, err := svc.Contexts(context.Background())
		second <- result{contexts, err}
	}()
	close(src.release)

	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.contexts, 1)
	assert.Equal(t, 1, src.listCalls)
}

func TestContextService_CancelledCallerDoesNotAbortLoad(t *testing.T) {
	src := newStubSource()
	src.delay = 50 * time.Millisecond
	svc := newTestService(src, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := svc.Load(ctx, testContext)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		_, err := svc.LoadStatus(testContext)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	status, err := svc.LoadStatus(testContext)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Successful)
}

func TestContextService_Analyze(t *testing.T) {
	svc := newTestService(newStubSource(), Options{TraderLimit: 2, RecentLimit: 1})

	a, err := svc.Analyze(context.Background(), testContext, pipeline.Filter{DateRange: "1829"}, pipeline.Options{})
	require.NoError(t, err)
	assert.Len(t, a.Transactions, 2)
	assert.Len(t, a.TopTraders, 2)
	assert.Len(t, a.Recent, 1)

	_, err = svc.Analyze(context.Background(), testContext, pipeline.Filter{DateRange: "soon"}, pipeline.Options{})
	assert.ErrorIs(t, err, pipeline.ErrInvalidFilter)

	opts, err := svc.FilterOptions(context.Background(), testContext)
	require.NoError(t, err)
	assert.Equal(t, []int{1829, 1830}, opts.Years)
}

type stubGraph struct {
	contextID string
	network   domain.Network
	err       error
}

func (g *stubGraph) SaveNetwork(ctx context.Context, contextID string, network domain.Network) error {
	g.contextID = contextID
	g.network = network
	return g.err
}

func TestContextService_ExportGraph(t *testing.T) {
	_, err := newTestService(newStubSource(), Options{}).ExportGraph(context.Background(), testContext, pipeline.AllFilter())
	assert.ErrorIs(t, err, ErrGraphUnavailable)

	sink := &stubGraph{}
	svc := newTestService(newStubSource(), Options{Graph: sink})
	network, err := svc.ExportGraph(context.Background(), testContext, pipeline.AllFilter())
	require.NoError(t, err)
	assert.Equal(t, testContext, sink.contextID)
	assert.Len(t, network.Links, 3)
	assert.Equal(t, network, sink.network)

	sink.err = errors.New("bolt down")
	_, err = svc.ExportGraph(context.Background(), testContext, pipeline.AllFilter())
	assert.ErrorContains(t, err, "bolt down")
}

func TestLoadReport(t *testing.T) {
	var report LoadReport
	assert.NoError(t, report.asError())

	cause := errors.New("timeout")
	report.append(BookError{BookID: "o:b.1", Err: cause})
	report.append(nil)
	err := report.asError()
	require.Error(t, err)
	assert.Equal(t, "book o:b.1: timeout", err.Error())
	assert.ErrorIs(t, err, cause)

	report.append(BookError{BookID: "o:b.2", Err: errors.New("404")})
	assert.Contains(t, report.Error(), "2 books failed")
}
