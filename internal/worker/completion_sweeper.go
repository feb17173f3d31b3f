// Package worker runs background maintenance jobs next to the HTTP server.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Completer flips elapsed confirmed reservations to completed.
// *service.ReservationService satisfies it.
type Completer interface {
	CompleteElapsed(ctx context.Context, before time.Time) (int64, error)
}

// SweeperStats is a snapshot of the sweeper's counters.
type SweeperStats struct {
	Running        bool
	TotalCompleted int64
	LastRun        time.Time
	LastCompleted  int64
	LastError      string
}

// CompletionSweeper periodically completes reservations whose bucket day has
// passed, so they stop counting toward capacity and can no longer be
// modified.  It can be started again after Stop.
type CompletionSweeper struct {
	svc      Completer
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stats   SweeperStats
}

// NewCompletionSweeper returns a sweeper that runs every interval.
func NewCompletionSweeper(svc Completer, interval time.Duration, log *zap.Logger) *CompletionSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionSweeper{
		svc:      svc,
		interval: interval,
		now:      time.Now,
		log:      log.Named("completion_sweeper"),
	}
}

// Start launches the sweep loop.  The first sweep runs immediately.
func (w *CompletionSweeper) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return errors.New("sweeper interval must be positive")
	}
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("completion sweeper already running")
	}
	w.running = true
	w.stats.Running = true
	stop := make(chan struct{}) // fresh per run; Stop closes it
	w.stopCh = stop
	w.mu.Unlock()

	w.log.Info("starting", zap.Duration("interval", w.interval))
	w.wg.Add(1)
	go w.loop(ctx, stop)
	return nil
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (w *CompletionSweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.stats.Running = false
	stop := w.stopCh
	w.mu.Unlock()

	close(stop)
	w.wg.Wait()
	w.log.Info("stopped")
}

// Stats returns the current counters.
func (w *CompletionSweeper) Stats() SweeperStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *CompletionSweeper) loop(ctx context.Context, stop <-chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and reports how many reservations it completed.  The
// service decides the cutoff from now, so only past days are completed.
func (w *CompletionSweeper) Sweep(ctx context.Context) int64 {
	now := w.now().UTC()
	n, err := w.svc.CompleteElapsed(ctx, now)

	w.mu.Lock()
	w.stats.LastRun = now
	w.stats.LastCompleted = n
	w.stats.TotalCompleted += n
	w.stats.LastError = ""
	if err != nil {
		w.stats.LastError = err.Error()
	}
	w.mu.Unlock()

	switch {
	case err != nil:
		w.log.Error("sweep failed", zap.Error(err))
	case n > 0:
		w.log.Info("completed elapsed reservations", zap.Int64("count", n))
	}
	return n
}
