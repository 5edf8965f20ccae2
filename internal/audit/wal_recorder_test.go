package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gowal"
)

func TestWALRecorder_RecordAndFlush(t *testing.T) {
	store := &fakeStore{}
	rec, err := NewWALRecorder(store, WALRecorderOptions{
		Dir:          t.TempDir(),
		BatchSize:    4,
		BatchTimeout: 10 * time.Millisecond,
		WorkerCount:  1,
	}, discardLogger())
	require.NoError(t, err)

	ctx := context.Background()
	rec.Start(ctx)

	for i := 0; i < 6; i++ {
		require.NoError(t, rec.Record(ctx, NewEvent("user.created", "user", "user_a1111111111a", nil)))
	}

	require.Eventually(t, func() bool {
		return len(store.stored()) == 6
	}, 2*time.Second, 10*time.Millisecond)

	rec.Stop()
}

func TestWALRecorder_ReplaysUnprocessedEntries(t *testing.T) {
	dir := t.TempDir()

	// simulate a crash: entries made it into the WAL but never into the store
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "audit_",
		SegmentThreshold: 1000,
		MaxSegments:      10,
	})
	require.NoError(t, err)

	var want []string
	for i := uint64(1); i <= 3; i++ {
		event := NewEvent("post.created", "post", "post_11111111111a", nil)
		want = append(want, event.ID)
		payload, err := json.Marshal(event)
		require.NoError(t, err)
		require.NoError(t, wal.Write(i, event.ID, payload))
	}
	require.NoError(t, wal.Close())

	store := &fakeStore{}
	rec, err := NewWALRecorder(store, WALRecorderOptions{
		Dir:          dir,
		BatchTimeout: 10 * time.Millisecond,
		WorkerCount:  1,
	}, discardLogger())
	require.NoError(t, err)

	rec.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(store.stored()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	got := make([]string, 0, 3)
	for _, event := range store.stored() {
		got = append(got, event.ID)
	}
	assert.ElementsMatch(t, want, got)

	rec.Stop()

	// the checkpoint should now cover every replayed entry
	data, err := os.ReadFile(filepath.Join(dir, "recorder.state"))
	require.NoError(t, err)
	assert.Equal(t, "3", string(data))
}

func TestWALRecorder_ReplaySkipsCheckpointedEntries(t *testing.T) {
	dir := t.TempDir()

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "audit_",
		SegmentThreshold: 1000,
		MaxSegments:      10,
	})
	require.NoError(t, err)

	for i := uint64(1); i <= 2; i++ {
		event := NewEvent("user.deleted", "user", "user_a1111111111a", nil)
		payload, err := json.Marshal(event)
		require.NoError(t, err)
		require.NoError(t, wal.Write(i, event.ID, payload))
	}
	require.NoError(t, wal.Close())

	// entry 1 was already processed by the previous run
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recorder.state"), []byte("1"), 0o644))

	store := &fakeStore{}
	rec, err := NewWALRecorder(store, WALRecorderOptions{
		Dir:          dir,
		BatchTimeout: 10 * time.Millisecond,
		WorkerCount:  1,
	}, discardLogger())
	require.NoError(t, err)

	rec.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(store.stored()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec.Stop()
	assert.Len(t, store.stored(), 1)
}
