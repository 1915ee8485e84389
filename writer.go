package proseql

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simonwjackson/proseql/internal/corelog"
)

// debounceDelay is how long a collection waits after its last commit
// before flushing its state cell to the bound file. Grounded on the
// teacher's HotDataWatcher ticker/decay loop — a background goroutine
// coalescing timed work — redirected here from cache-hotness decay to
// write coalescing: many commits in quick succession produce one file
// write, not one per commit.
const debounceDelay = 200 * time.Millisecond

// debouncedWriter coalesces repeated touch() calls from commit into a
// single saveCollection call, fired debounceDelay after the last touch.
type debouncedWriter struct {
	db  *Database
	col *Collection

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	pending bool
}

func newDebouncedWriter(db *Database, col *Collection) *debouncedWriter {
	return &debouncedWriter{db: db, col: col}
}

// touch schedules (or reschedules) a flush debounceDelay from now.
func (w *debouncedWriter) touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.flush)
}

func (w *debouncedWriter) flush() {
	w.mu.Lock()
	if w.closed || !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	timer := newMetricsTimer()
	err := w.db.saveCollection(w.col)
	timer.observe(metricsWriterFlushDuration.WithLabelValues(w.col.cfg.Name))
	if err != nil {
		metricsWriterFlushFailures.WithLabelValues(w.col.cfg.Name).Inc()
		corelog.Error("debounced write failed",
			zap.String("collection", w.col.cfg.Name),
			zap.Error(err),
		)
	}
}

// Flush forces an immediate synchronous write if one is pending, bypassing
// the debounce delay. Used by Database.Close and by tests that need to
// observe the on-disk file without waiting out the delay.
func (w *debouncedWriter) Flush() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	pending := w.pending
	w.pending = false
	w.mu.Unlock()

	if !pending {
		return nil
	}
	return w.db.saveCollection(w.col)
}

// pendingCount reports the number of outstanding, not-yet-flushed entries
// this writer is holding a debounce timer for. This writer coalesces at
// collection granularity (one bound file per Collection), so the count is
// always 0 or 1.
func (w *debouncedWriter) pendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending {
		return 1
	}
	return 0
}

// Close stops any pending timer without flushing. Callers that want a
// final write should call Flush first.
func (w *debouncedWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
