package reconciler

import (
	"context"
	"log"
	"time"
)

// SleepFunc waits for d or until ctx is done. Tests swap it out to run
// the loop without real time passing.
type SleepFunc func(ctx context.Context, d time.Duration)

func defaultSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Loop runs the reconciler on a schedule. A failed run is logged and
// followed by the longer backoff interval; the loop itself never exits
// on error, only on Stop.
type Loop struct {
	rec      *Reconciler
	interval time.Duration
	backoff  time.Duration

	sleep  SleepFunc
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop creates a loop with the steady-state and error intervals
func NewLoop(rec *Reconciler, interval, backoff time.Duration) *Loop {
	return &Loop{
		rec:      rec,
		interval: interval,
		backoff:  backoff,
		sleep:    defaultSleep,
	}
}

// SetSleep replaces the inter-run wait, for tests
func (l *Loop) SetSleep(fn SleepFunc) {
	l.sleep = fn
}

// Start launches the background loop. The first run happens immediately.
func (l *Loop) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		for {
			if ctx.Err() != nil {
				return
			}

			wait := l.interval
			result, err := l.rec.Run(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("reconcile failed: %v (retrying in %s)", err, l.backoff)
				wait = l.backoff
			} else if result.Created+result.Updated+result.Deleted+result.Edges > 0 {
				log.Printf("reconcile: %d created, %d updated, %d deleted, %d edge changes",
					result.Created, result.Updated, result.Deleted, result.Edges)
			}

			l.sleep(ctx, wait)
		}
	}()
}

// Stop cancels the loop and waits for the current run to finish
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}
