// ABOUTME: Asynchronous plan library writer
// ABOUTME: Keeps SQLite latency and failures off the scheduling path

package planlib

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-bdi/internal/bdi"
)

const (
	defaultWriterBuffer = 64
	recentTTL           = 10 * time.Minute
	recentSize          = 1024
	writeTimeout        = 5 * time.Second
)

// Writer inserts plans into a Library from a background goroutine.
// Submit never blocks: when the buffer is full the plan is dropped and logged.
type Writer struct {
	lib    Library
	queue  chan bdi.Plan
	recent *Recent
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}

	written int
	failed  int
	dropped int
}

// NewWriter creates a writer for lib. Call Run to start it.
func NewWriter(lib Library, buffer int, logger *slog.Logger) *Writer {
	if buffer <= 0 {
		buffer = defaultWriterBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		lib:    lib,
		queue:  make(chan bdi.Plan, buffer),
		recent: NewRecent(recentTTL, recentSize),
		logger: logger.With("component", "planlib_writer"),
		done:   make(chan struct{}),
	}
}

// Submit queues plan for insertion. Returns false if the plan was dropped
// or was already submitted recently.
func (w *Writer) Submit(plan bdi.Plan) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	if w.recent.CheckAndMark(plan.ID + "|" + string(plan.Fingerprint())) {
		return false
	}
	select {
	case w.queue <- plan:
		return true
	default:
		w.dropped++
		w.logger.Warn("plan library writer full, dropping plan",
			"desire", plan.Desire.Name,
			"plan_id", plan.ID)
		return false
	}
}

// Run drains the queue until ctx is cancelled or Stop is called, then
// flushes what is still queued.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case plan, ok := <-w.queue:
			if !ok {
				return
			}
			w.write(plan)
		case <-ctx.Done():
			w.stop()
			for plan := range w.queue {
				w.write(plan)
			}
			return
		}
	}
}

// Stop stops accepting plans and waits for Run to flush and return.
func (w *Writer) Stop() {
	w.stop()
	<-w.done
}

func (w *Writer) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
}

func (w *Writer) write(plan bdi.Plan) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := w.lib.Insert(ctx, plan); err != nil {
		w.recent.Forget(plan.ID + "|" + string(plan.Fingerprint()))
		w.mu.Lock()
		w.failed++
		w.mu.Unlock()
		w.logger.Error("failed to store plan",
			"desire", plan.Desire.Name,
			"plan_id", plan.ID,
			"error", err)
		return
	}

	w.mu.Lock()
	w.written++
	w.mu.Unlock()
	w.logger.Debug("plan stored",
		"desire", plan.Desire.Name,
		"plan_id", plan.ID,
		"actions", len(plan.Actions))
}

// WriterStats reports writer counters.
type WriterStats struct {
	Written int `json:"written"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"`
}

// Stats returns the current counters.
func (w *Writer) Stats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriterStats{Written: w.written, Failed: w.failed, Dropped: w.dropped}
}
