package reconciler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netviz/internal/domain"
	"netviz/internal/repository/sqlite"
)

// flakyCollector fails for the first n fetches, then succeeds with an
// empty snapshot
type flakyCollector struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (c *flakyCollector) FetchMetrics(ctx context.Context) (domain.MetricsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return nil, context.DeadlineExceeded
	}
	return domain.MetricsSnapshot{}, nil
}

func (c *flakyCollector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newLoopFixture(t *testing.T, source *flakyCollector) *Loop {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := New(store, source, nil, nil, demoRules(), 30*time.Minute, time.Minute)
	return NewLoop(rec, 30*time.Second, 60*time.Second)
}

func TestLoopUsesBackoffAfterFailure(t *testing.T) {
	source := &flakyCollector{failures: 2}
	loop := newLoopFixture(t, source)

	var mu sync.Mutex
	var waits []time.Duration
	ran := make(chan struct{}, 16)

	loop.SetSleep(func(ctx context.Context, d time.Duration) {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	loop.Start(context.Background())
	defer loop.Stop()

	// Wait for at least four runs: two failures, two successes
	deadline := time.After(5 * time.Second)
	for source.callCount() < 4 {
		select {
		case <-ran:
		case <-deadline:
			t.Fatal("loop did not keep running after failures")
		}
	}
	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(waits), 3)
	assert.Equal(t, 60*time.Second, waits[0], "failed run sleeps the backoff interval")
	assert.Equal(t, 60*time.Second, waits[1])
	assert.Equal(t, 30*time.Second, waits[2], "successful run sleeps the steady interval")
}

func TestLoopStops(t *testing.T) {
	source := &flakyCollector{}
	loop := newLoopFixture(t, source)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	loop.SetSleep(func(ctx context.Context, d time.Duration) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
	})

	loop.Start(context.Background())
	<-started

	done := make(chan struct{})
	go func() {
		loop.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not unblock the sleeping loop")
	}

	calls := source.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, source.callCount(), "no runs after Stop")
}
