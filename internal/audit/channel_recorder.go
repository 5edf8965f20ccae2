package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/destel/rill"
)

type ChannelRecorderOptions struct {
	BufferSize   int
	BatchSize    int
	BatchTimeout time.Duration
	WorkerCount  int
}

func (o *ChannelRecorderOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
}

// typecheck
var _ Recorder = new(ChannelRecorder)

// ChannelRecorder buffers events in memory and bulk-inserts them in batches.
// Events accepted but not yet flushed are lost on a crash; the WAL recorder
// covers that case.
type ChannelRecorder struct {
	store    EventStore
	workCh   chan Event
	opts     ChannelRecorderOptions
	logger   *slog.Logger
	workerWg sync.WaitGroup
}

func NewChannelRecorder(store EventStore, opts ChannelRecorderOptions, logger *slog.Logger) *ChannelRecorder {
	opts.defaults()

	return &ChannelRecorder{
		store:  store,
		workCh: make(chan Event, opts.BufferSize),
		opts:   opts,
		logger: logger,
	}
}

func (c *ChannelRecorder) Start(ctx context.Context) {
	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}
}

// Stop drains the buffer and waits for in-flight batches to land.
func (c *ChannelRecorder) Stop() {
	close(c.workCh)
	c.workerWg.Wait()
}

func (c *ChannelRecorder) Record(ctx context.Context, event Event) error {
	select {
	case c.workCh <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrRecorderFull
	}
}

func (c *ChannelRecorder) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}
		if err := c.store.BulkInsert(ctx, batch.Value); err != nil {
			// TODO: fall back to per-event inserts so one bad row can't sink the batch
			c.logger.Error("failed to bulk insert audit events", "error", err, "count", len(batch.Value))
		}
	}
}
