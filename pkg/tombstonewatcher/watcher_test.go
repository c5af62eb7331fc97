package tombstonewatcher

import (
	"testing"
	"time"

	"github.com/kubescape/tombstone-agent/pkg/eventpipeline"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*TombstoneWatcher, afero.Fs, *eventpipeline.EventPipelineMock) {
	appFs := afero.NewMemMapFs()
	require.NoError(t, appFs.MkdirAll(DefaultTombstoneDir, 0755))
	pipeline := &eventpipeline.EventPipelineMock{}
	w, err := NewTombstoneWatcher(appFs, "", 2, pipeline)
	require.NoError(t, err)
	t.Cleanup(w.release)
	return w, appFs, pipeline
}

// blockingPipeline holds every tombstone until release is closed.
type blockingPipeline struct {
	eventpipeline.EventPipelineMock
	started chan struct{}
	release chan struct{}
}

func (b *blockingPipeline) HandleTombstoneFile(timestamp time.Time, record []byte) eventpipeline.Outcome {
	b.started <- struct{}{}
	<-b.release
	return b.EventPipelineMock.HandleTombstoneFile(timestamp, record)
}

func TestHandleFile(t *testing.T) {
	w, appFs, pipeline := newTestWatcher(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, afero.WriteFile(appFs, "/data/tombstones/tombstone_00.pb", []byte{0x28, 0x01}, 0644))
	require.NoError(t, afero.WriteFile(appFs, "/data/tombstones/tombstone_00", []byte("text tombstone"), 0644))

	w.handleFile("/data/tombstones/tombstone_00", now)
	w.handleFile("/data/tombstones/tombstone_00.pb", now)

	require.Eventually(t, func() bool { return len(pipeline.Events()) == 1 }, time.Second, 10*time.Millisecond)
	event := pipeline.Events()[0]
	assert.Equal(t, []byte{0x28, 0x01}, event.Bytes)
	assert.Equal(t, now, event.Timestamp)
	assert.False(t, event.IsHistorical)
}

func TestHandleFileDeduplicates(t *testing.T) {
	w, appFs, pipeline := newTestWatcher(t)
	require.NoError(t, afero.WriteFile(appFs, "/data/tombstones/tombstone_01.pb", []byte{0x28, 0x01}, 0644))

	w.handleFile("/data/tombstones/tombstone_01.pb", time.Now())
	w.handleFile("/data/tombstones/tombstone_01.pb", time.Now())

	require.Eventually(t, func() bool { return len(pipeline.Events()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, pipeline.Events(), 1)
}

func TestHandleFileRetriesEmptyFile(t *testing.T) {
	w, appFs, pipeline := newTestWatcher(t)
	path := "/data/tombstones/tombstone_02.pb"
	require.NoError(t, afero.WriteFile(appFs, path, nil, 0644))

	w.handleFile(path, time.Now())
	require.Eventually(t, func() bool {
		_, seen := w.recent.Get(path)
		return !seen
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, pipeline.Events())

	require.NoError(t, afero.WriteFile(appFs, path, []byte{0x28, 0x01}, 0644))
	w.handleFile(path, time.Now())
	require.Eventually(t, func() bool { return len(pipeline.Events()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandleFileMissing(t *testing.T) {
	w, _, pipeline := newTestWatcher(t)

	w.handleFile("/data/tombstones/gone.pb", time.Now())
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, pipeline.Events())
}

func TestHandleFileDropsWhenPoolSaturated(t *testing.T) {
	appFs := afero.NewMemMapFs()
	require.NoError(t, appFs.MkdirAll(DefaultTombstoneDir, 0755))
	pipeline := &blockingPipeline{started: make(chan struct{}, 2), release: make(chan struct{})}
	w, err := NewTombstoneWatcher(appFs, "", 1, pipeline)
	require.NoError(t, err)
	t.Cleanup(w.release)

	busy := "/data/tombstones/tombstone_03.pb"
	dropped := "/data/tombstones/tombstone_04.pb"
	require.NoError(t, afero.WriteFile(appFs, busy, []byte{0x28, 0x03}, 0644))
	require.NoError(t, afero.WriteFile(appFs, dropped, []byte{0x28, 0x04}, 0644))

	w.handleFile(busy, time.Now())
	select {
	case <-pipeline.started:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the worker")
	}

	w.handleFile(dropped, time.Now())
	_, seen := w.recent.Get(dropped)
	assert.False(t, seen, "a dropped tombstone can be queued again")

	close(pipeline.release)
	require.Eventually(t, func() bool { return len(pipeline.Events()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte{0x28, 0x03}, pipeline.Events()[0].Bytes)

	// a later event for the dropped file is handled once the worker is free
	require.Eventually(t, func() bool {
		w.handleFile(dropped, time.Now())
		return len(pipeline.Events()) == 2
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, pipeline.Events(), 2)
	assert.Equal(t, []byte{0x28, 0x04}, pipeline.Events()[1].Bytes)
}
