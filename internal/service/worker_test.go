package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

const otherContext = "context:depcha.other"

func twoContextSource() *stubSource {
	src := newStubSource()
	src.contexts = append(src.contexts, domain.Context{ID: otherContext, Title: "Other"})
	src.books[otherContext] = []domain.Book{{ID: "o:b.3"}}
	return src
}

type recordingGraph struct {
	mu       sync.Mutex
	contexts []string
}

func (g *recordingGraph) SaveNetwork(ctx context.Context, contextID string, network domain.Network) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contexts = append(g.contexts, contextID)
	return nil
}

func TestBatch_LoadAll(t *testing.T) {
	svc := newTestService(twoContextSource(), Options{})
	batch := NewBatch(svc, 2)

	require.NoError(t, batch.LoadAll(context.Background(), []string{testContext, otherContext}))
	for _, id := range []string{testContext, otherContext} {
		_, err := svc.LoadStatus(id)
		assert.NoError(t, err, id)
	}
}

func TestBatch_LoadAllJoinsFailures(t *testing.T) {
	svc := newTestService(twoContextSource(), Options{})
	batch := NewBatch(svc, 4)

	err := batch.LoadAll(context.Background(), []string{testContext, "context:missing", "context:gone"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContextNotFound)

	var ctxErr *ContextError
	require.ErrorAs(t, err, &ctxErr)
	assert.Contains(t, []string{"context:missing", "context:gone"}, ctxErr.ContextID)

	_, statusErr := svc.LoadStatus(testContext)
	assert.NoError(t, statusErr)
}

func TestBatch_ExportAll(t *testing.T) {
	err := NewBatch(newTestService(twoContextSource(), Options{}), 2).ExportAll(context.Background(), []string{testContext})
	assert.ErrorIs(t, err, ErrGraphUnavailable)

	sink := &recordingGraph{}
	svc := newTestService(twoContextSource(), Options{Graph: sink})
	require.NoError(t, NewBatch(svc, 2).ExportAll(context.Background(), []string{testContext, otherContext}))

	sort.Strings(sink.contexts)
	assert.Equal(t, []string{otherContext, testContext}, sink.contexts)
}

func TestBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewBatch(newTestService(twoContextSource(), Options{}), 1).LoadAll(ctx, []string{testContext, otherContext})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBatch_Empty(t *testing.T) {
	assert.NoError(t, NewBatch(nil, 0).LoadAll(context.Background(), nil))
}
