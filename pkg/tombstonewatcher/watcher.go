package tombstonewatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/kubescape/tombstone-agent/pkg/eventpipeline"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"
)

const (
	DefaultTombstoneDir = "/data/tombstones"
	DefaultPoolSize     = 4

	// tombstoned writes a text and a proto rendition of each crash
	tombstoneSuffix = ".pb"

	// a file is reported once per window even if several events fire for it
	dedupWindow    = 10 * time.Second
	dedupCacheSize = 128
)

var ErrUnsupportedPlatform = errors.New("tombstone watcher requires fanotify (linux only)")

type fileEvent struct {
	path      string
	timestamp time.Time
}

// TombstoneWatcher feeds newly written tombstone files to the pipeline.
type TombstoneWatcher struct {
	appFs    afero.Fs
	dir      string
	pipeline eventpipeline.EventPipeline
	pool     *ants.PoolWithFunc
	recent   *expirable.LRU[string, time.Time]
	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once

	platformWatcher
}

func NewTombstoneWatcher(appFs afero.Fs, dir string, poolSize int, pipeline eventpipeline.EventPipeline) (*TombstoneWatcher, error) {
	if dir == "" {
		dir = DefaultTombstoneDir
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	w := &TombstoneWatcher{
		appFs:    appFs,
		dir:      dir,
		pipeline: pipeline,
		recent:   expirable.NewLRU[string, time.Time](dedupCacheSize, nil, dedupWindow),
		stopChan: make(chan struct{}),
	}

	pool, err := ants.NewPoolWithFunc(poolSize, func(i interface{}) {
		w.processFile(i.(fileEvent))
	}, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("creating tombstone worker pool: %w", err)
	}
	w.pool = pool
	return w, nil
}

func (w *TombstoneWatcher) IsRunning() bool {
	return w.running.Load()
}

// handleFile queues path for processing. It never blocks: when every worker
// is busy the tombstone is dropped, and a later event for the same path may
// queue it again.
func (w *TombstoneWatcher) handleFile(path string, timestamp time.Time) {
	if !strings.HasSuffix(path, tombstoneSuffix) {
		return
	}
	if _, seen := w.recent.Get(path); seen {
		return
	}
	w.recent.Add(path, timestamp)

	err := w.pool.Invoke(fileEvent{path: path, timestamp: timestamp})
	switch {
	case errors.Is(err, ants.ErrPoolOverload):
		w.recent.Remove(path)
		logger.L().Warning("TombstoneWatcher - worker pool saturated, dropping tombstone", helpers.String("path", path))
	case err != nil:
		w.recent.Remove(path)
		logger.L().Warning("TombstoneWatcher - failed to queue tombstone", helpers.String("path", path), helpers.Error(err))
	}
}

func (w *TombstoneWatcher) processFile(event fileEvent) {
	content, err := afero.ReadFile(w.appFs, event.path)
	if err != nil {
		logger.L().Warning("TombstoneWatcher - failed to read tombstone", helpers.String("path", event.path), helpers.Error(err))
		return
	}
	if len(content) == 0 {
		// still being written, the close event reports it again
		w.recent.Remove(event.path)
		return
	}
	outcome := w.pipeline.HandleTombstoneFile(event.timestamp, content)
	logger.L().Debug("TombstoneWatcher - handled tombstone",
		helpers.String("path", event.path),
		helpers.String("outcome", outcome.String()))
}

func (w *TombstoneWatcher) release() {
	w.pool.Release()
	w.recent.Purge()
}
