// Package archive streams bid decisions into a long-term analytical store.
package archive

import (
	"context"
	"log"
	"time"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/storage"
)

// Recorder buffers bid decisions and flushes them to the archive store
// in batches. Record never blocks the caller: when the buffer is full
// the decision is dropped and Record returns false. The archive is an
// audit trail, not the source of truth, so losing entries under
// pressure is preferable to stalling bid processing.
type Recorder struct {
	store     storage.DecisionArchive
	logger    *log.Logger
	buffer    chan *domain.BidDecision
	batchSize int
	interval  time.Duration
	done      chan struct{}
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Store         storage.DecisionArchive
	Logger        *log.Logger
	BufferSize    int           // default 1024
	BatchSize     int           // default 100
	FlushInterval time.Duration // default 5s
}

// NewRecorder creates a Recorder and starts its writer goroutine.
func NewRecorder(opts RecorderOptions) *Recorder {
	bufferSize := opts.BufferSize
	if bufferSize == 0 {
		bufferSize = 1024
	}
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	interval := opts.FlushInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	r := &Recorder{
		store:     opts.Store,
		logger:    logger,
		buffer:    make(chan *domain.BidDecision, bufferSize),
		batchSize: batchSize,
		interval:  interval,
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues a decision for archival. Returns false if the buffer
// is full and the decision was dropped.
func (r *Recorder) Record(d *domain.BidDecision) bool {
	select {
	case r.buffer <- d:
		return true
	default:
		return false
	}
}

// Close flushes everything still buffered and stops the writer.
// Record calls after Close panic; stop producers first.
func (r *Recorder) Close() {
	close(r.buffer)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	pending := make([]*domain.BidDecision, 0, r.batchSize)
	for {
		select {
		case d, ok := <-r.buffer:
			if !ok {
				r.flush(pending)
				return
			}
			pending = append(pending, d)
			if len(pending) >= r.batchSize {
				r.flush(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				r.flush(pending)
				pending = pending[:0]
			}
		}
	}
}

func (r *Recorder) flush(batch []*domain.BidDecision) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.store.InsertBatch(ctx, batch); err != nil {
		r.logger.Printf("[archive] error storing batch of %d decisions: %v", len(batch), err)
		return
	}
	r.logger.Printf("[archive] stored %d decisions", len(batch))
}
