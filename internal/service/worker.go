package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chpollin/depcha-dashboard/internal/pipeline"
)

// ContextError reports the failure of one context in a batch run.
type ContextError struct {
	ContextID string
	Err       error
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("context %s: %v", e.ContextID, e.Err)
}

func (e *ContextError) Unwrap() error {
	return e.Err
}

// Batch applies context operations to many contexts using a worker pool.
type Batch struct {
	service *ContextService
	workers int
}

// NewBatch creates a Batch with the provided concurrency.
func NewBatch(service *ContextService, workers int) *Batch {
	if workers <= 0 {
		workers = 2
	}
	return &Batch{
		service: service,
		workers: workers,
	}
}

// LoadAll loads every context, replacing cached snapshots.
func (b *Batch) LoadAll(ctx context.Context, contextIDs []string) error {
	return b.run(ctx, contextIDs, func(id string) error {
		_, err := b.service.Load(ctx, id)
		return err
	})
}

// ExportAll stores the unfiltered network of every context in the graph sink.
func (b *Batch) ExportAll(ctx context.Context, contextIDs []string) error {
	if !b.service.GraphEnabled() {
		return ErrGraphUnavailable
	}
	return b.run(ctx, contextIDs, func(id string) error {
		_, err := b.service.ExportGraph(ctx, id, pipeline.AllFilter())
		return err
	})
}

// run returns the caller's context error when cancelled, otherwise every
// failed context joined.
func (b *Batch) run(ctx context.Context, ids []string, workerFn func(id string) error) error {
	if len(ids) == 0 {
		return nil
	}
	idCh := make(chan string)
	errCh := make(chan error, len(ids))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for id := range idCh {
			if err := workerFn(id); err != nil {
				errCh <- &ContextError{ContextID: id, Err: err}
			}
		}
	}

	for i := 0; i < min(b.workers, len(ids)); i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for _, id := range ids {
		select {
		case idCh <- id:
		case <-ctx.Done():
			break Loop
		}
	}
	close(idCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
