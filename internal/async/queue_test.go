package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/pipeline"
)

type fakeSyncer struct {
	mu      sync.Mutex
	users   []string
	traces  []string
	release chan struct{}
	err     error
}

func (f *fakeSyncer) SyncUser(ctx context.Context, userID string, _ time.Time) (pipeline.Report, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	f.traces = append(f.traces, common.RequestIDFromContext(ctx))
	return pipeline.Report{UserID: userID, Synced: 1}, f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSyncQueueRunsJobs(t *testing.T) {
	s := &fakeSyncer{}
	var done sync.WaitGroup
	done.Add(3)
	q := NewSyncQueue(s, discard(), WithWorkers(2), WithOnDone(func(Job, pipeline.Report, error) { done.Done() }))

	for _, u := range []string{"u1", "u2", "u3"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{UserID: u}))
	}
	done.Wait()
	q.Shutdown(context.Background())

	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, s.users)
	for _, tr := range s.traces {
		assert.NotEmpty(t, tr)
	}
}

func TestSyncQueueCoalescesPendingUser(t *testing.T) {
	s := &fakeSyncer{release: make(chan struct{})}
	var done sync.WaitGroup
	done.Add(1)
	q := NewSyncQueue(s, discard(), WithWorkers(1), WithOnDone(func(Job, pipeline.Report, error) { done.Done() }))

	require.NoError(t, q.Enqueue(context.Background(), Job{UserID: "u1"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{UserID: "u1"}))
	close(s.release)
	done.Wait()
	q.Shutdown(context.Background())

	assert.Equal(t, []string{"u1"}, s.users)
}

func TestSyncQueueReportsErrorsAndRejectsAfterShutdown(t *testing.T) {
	s := &fakeSyncer{err: errors.New("list failed")}
	var got error
	var done sync.WaitGroup
	done.Add(1)
	q := NewSyncQueue(s, discard(), WithOnDone(func(_ Job, _ pipeline.Report, err error) {
		got = err
		done.Done()
	}))

	require.NoError(t, q.Enqueue(context.Background(), Job{UserID: "u1"}))
	done.Wait()
	require.EqualError(t, got, "list failed")

	q.Shutdown(context.Background())
	require.NoError(t, q.Enqueue(context.Background(), Job{UserID: "u2"}))
	assert.Equal(t, []string{"u1"}, s.users)
}
