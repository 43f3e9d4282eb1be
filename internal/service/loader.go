package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/metrics"
)

const (
	defaultWorkers      = 4
	defaultFetchTimeout = 30 * time.Second
)

// BookError ties a fetch failure to its book.
type BookError struct {
	BookID string
	Err    error
}

func (e BookError) Error() string {
	return fmt.Sprintf("book %s: %v", e.BookID, e.Err)
}

func (e BookError) Unwrap() error {
	return e.Err
}

// LoadReport accumulates the book failures of one load.
type LoadReport struct {
	Errors []error
}

func (e *LoadReport) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d books failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *LoadReport) Unwrap() []error {
	return e.Errors
}

func (e *LoadReport) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *LoadReport) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Loader fetches the books of a context concurrently.
type Loader struct {
	source  Source
	workers int
	timeout time.Duration
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// LoaderOptions tunes a Loader.
type LoaderOptions struct {
	Workers      int
	FetchTimeout time.Duration
	Metrics      *metrics.Recorder
	Logger       *slog.Logger
}

// NewLoader creates a Loader reading from source.
func NewLoader(source Source, opts LoaderOptions) *Loader {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader{
		source:  source,
		workers: opts.Workers,
		timeout: opts.FetchTimeout,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "loader"),
	}
}

// LoadBooks fetches every book and concatenates the records of the successful
// ones in catalogue order. A failed book contributes no records; its failure
// is recorded in the returned status and in the *LoadReport error. The status
// is complete even when an error is returned.
//
// Fetches run detached from ctx cancellation, bounded only by the per-fetch
// timeout, so an abandoned caller does not leave books half loaded.
func (l *Loader) LoadBooks(ctx context.Context, books []domain.Book) ([]domain.RawTransfer, domain.LoadStatus, error) {
	fetchBase := context.WithoutCancel(ctx)
	results := make([][]domain.RawTransfer, len(books))
	statuses := make([]domain.BookLoadStatus, len(books))

	var g errgroup.Group
	g.SetLimit(l.workers)
	for i, book := range books {
		g.Go(func() error {
			results[i], statuses[i] = l.fetch(fetchBase, book.ID)
			return nil
		})
	}
	_ = g.Wait()

	status := domain.LoadStatus{
		Total:    len(books),
		Loaded:   len(books),
		Complete: true,
		Books:    statuses,
	}
	var report LoadReport
	var merged []domain.RawTransfer
	for i, st := range statuses {
		if !st.Success {
			status.Failed++
			report.append(BookError{BookID: st.BookID, Err: errors.New(st.Error)})
			continue
		}
		status.Successful++
		merged = append(merged, results[i]...)
	}
	if merged == nil {
		merged = []domain.RawTransfer{}
	}
	return merged, status, report.asError()
}

func (l *Loader) fetch(base context.Context, bookID string) ([]domain.RawTransfer, domain.BookLoadStatus) {
	ctx, cancel := context.WithTimeout(base, l.timeout)
	defer cancel()

	start := time.Now()
	records, err := l.source.FetchTransfers(ctx, bookID)
	status := domain.BookLoadStatus{BookID: bookID}
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		l.logger.Error("book payload is not a transfer list", "book", bookID, "error", err)
		status.Error = err.Error()
	case err != nil:
		l.logger.Warn("book fetch failed", "book", bookID, "error", err)
		status.Error = err.Error()
	default:
		status.Success = true
		status.Records = len(records)
		l.logger.Debug("book fetched", "book", bookID, "records", len(records), "duration", time.Since(start))
	}
	l.metrics.ObserveBookFetch(status)
	if !status.Success {
		return nil, status
	}
	return records, status
}
