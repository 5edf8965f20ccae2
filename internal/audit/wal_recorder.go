package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/destel/rill"
	"github.com/vadiminshakov/gowal"
)

type WALRecorderOptions struct {
	BufferSize       int
	BatchSize        int
	BatchTimeout     time.Duration
	Dir              string
	SegmentPrefix    string
	SegmentThreshold int
	MaxSegments      int
	SyncDiskMode     bool
	WorkerCount      int
	FlushThreshold   int
}

func (o *WALRecorderOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.Dir == "" {
		o.Dir = "./wal"
	}
	if o.SegmentPrefix == "" {
		o.SegmentPrefix = "audit_"
	}
	if o.SegmentThreshold == 0 {
		o.SegmentThreshold = 1000
	}
	if o.MaxSegments == 0 {
		o.MaxSegments = 10
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.FlushThreshold == 0 {
		o.FlushThreshold = 1000
	}
}

// walEntry pairs an event with its log index so completions can be tracked.
type walEntry struct {
	Index uint64
	Event Event
}

var _ Recorder = new(WALRecorder)

// WALRecorder appends every event to a write-ahead log before queuing it for
// insertion, and replays unprocessed log entries on start. The highest
// contiguously processed index is checkpointed to a state file so replay
// picks up where the previous run stopped.
type WALRecorder struct {
	store     EventStore
	wal       *gowal.Wal
	walMu     sync.Mutex
	workCh    chan walEntry
	doneCh    chan uint64
	opts      WALRecorderOptions
	logger    *slog.Logger
	stateFile string

	processedIndex atomic.Uint64
	flushedIndex   atomic.Uint64

	coordinatorDone chan struct{}
	workerWg        sync.WaitGroup
}

func NewWALRecorder(store EventStore, opts WALRecorderOptions, logger *slog.Logger) (*WALRecorder, error) {
	opts.defaults()

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              opts.Dir,
		Prefix:           opts.SegmentPrefix,
		SegmentThreshold: opts.SegmentThreshold,
		MaxSegments:      opts.MaxSegments,
		IsInSyncDiskMode: opts.SyncDiskMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL: %w", err)
	}

	return &WALRecorder{
		store:           store,
		wal:             wal,
		workCh:          make(chan walEntry, opts.BufferSize),
		doneCh:          make(chan uint64, opts.BufferSize),
		opts:            opts,
		logger:          logger,
		stateFile:       filepath.Join(opts.Dir, "recorder.state"),
		coordinatorDone: make(chan struct{}),
	}, nil
}

func (c *WALRecorder) Start(ctx context.Context) {
	checkpoint, err := c.readCheckpoint()
	if err != nil {
		c.logger.Warn("failed to read WAL checkpoint, starting from 0", "error", err)
		checkpoint = 0
	}
	c.flushedIndex.Store(checkpoint)
	c.processedIndex.Store(checkpoint)

	go c.coordinator(ctx)

	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}

	if err := c.replay(ctx, checkpoint); err != nil {
		c.logger.Error("WAL replay failed", "error", err)
	}
}

func (c *WALRecorder) Stop() {
	close(c.workCh)
	c.workerWg.Wait()

	close(c.doneCh)
	<-c.coordinatorDone

	if err := c.writeCheckpoint(c.processedIndex.Load()); err != nil {
		c.logger.Error("failed to write final WAL checkpoint", "error", err)
	}

	c.walMu.Lock()
	defer c.walMu.Unlock()
	if err := c.wal.Close(); err != nil {
		c.logger.Error("failed to close WAL", "error", err)
	}
}

func (c *WALRecorder) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	// The append is the durability step; index assignment and write must not
	// interleave across callers.
	c.walMu.Lock()
	index := c.wal.CurrentIndex() + 1
	if err := c.wal.Write(index, event.ID, payload); err != nil {
		c.walMu.Unlock()
		return fmt.Errorf("failed to append to WAL: %w", err)
	}
	c.walMu.Unlock()

	select {
	case c.workCh <- walEntry{Index: index, Event: event}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrRecorderFull
	}
}

// replay re-queues every WAL entry past the checkpoint. Runs after the
// workers start so recovered entries flow through the same path as new ones.
func (c *WALRecorder) replay(ctx context.Context, checkpoint uint64) error {
	c.walMu.Lock()
	defer c.walMu.Unlock()

	recovered := 0
	for msg := range c.wal.Iterator() {
		if msg.Index() <= checkpoint {
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("failed to unmarshal WAL entry, skipping", "index", msg.Index(), "error", err)
			continue
		}

		select {
		case c.workCh <- walEntry{Index: msg.Index(), Event: event}:
			recovered++
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if recovered > 0 {
		c.logger.Info("replayed unprocessed WAL entries", "count", recovered, "from_index", checkpoint)
	}
	return nil
}

// coordinator advances the processed index as completions arrive, holding
// back out-of-order ones until the gap closes, and checkpoints to disk every
// FlushThreshold completions or five seconds, whichever comes first.
func (c *WALRecorder) coordinator(ctx context.Context) {
	defer close(c.coordinatorDone)

	pending := make(map[uint64]struct{})

	flushTicker := time.NewTicker(5 * time.Second)
	defer flushTicker.Stop()

	for {
		select {
		case done, ok := <-c.doneCh:
			if !ok {
				return
			}

			current := c.processedIndex.Load()
			switch {
			case done == current+1:
				c.processedIndex.Add(1)
				for {
					next := c.processedIndex.Load() + 1
					if _, ok := pending[next]; !ok {
						break
					}
					delete(pending, next)
					c.processedIndex.Add(1)
				}
				c.maybeFlush(uint64(c.opts.FlushThreshold))
			case done > current+1:
				pending[done] = struct{}{}
			}
			// done <= current is a duplicate, ignore

		case <-flushTicker.C:
			c.maybeFlush(1)

		case <-ctx.Done():
			return
		}
	}
}

func (c *WALRecorder) maybeFlush(threshold uint64) {
	current := c.processedIndex.Load()
	if current-c.flushedIndex.Load() < threshold {
		return
	}
	if err := c.writeCheckpoint(current); err != nil {
		c.logger.Error("failed to write WAL checkpoint", "error", err)
		return
	}
	c.flushedIndex.Store(current)
}

func (c *WALRecorder) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}

		events := make([]Event, len(batch.Value))
		for i, entry := range batch.Value {
			events[i] = entry.Event
		}

		if err := c.store.BulkInsert(ctx, events); err != nil {
			c.logger.Error("failed to bulk insert audit events", "error", err, "count", len(events))
		}
		for _, entry := range batch.Value {
			c.doneCh <- entry.Index
		}
	}
}

func (c *WALRecorder) readCheckpoint() (uint64, error) {
	data, err := os.ReadFile(c.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var index uint64
	if _, err := fmt.Sscanf(string(data), "%d", &index); err != nil {
		return 0, err
	}
	return index, nil
}

func (c *WALRecorder) writeCheckpoint(index uint64) error {
	return os.WriteFile(c.stateFile, []byte(fmt.Sprintf("%d", index)), 0o644)
}
