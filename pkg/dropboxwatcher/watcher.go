package dropboxwatcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/kubescape/tombstone-agent/pkg/eventpipeline"
	"github.com/spf13/afero"
)

const (
	DefaultDir          = "/data/system/dropbox"
	DefaultTag          = "SYSTEM_TOMBSTONE_PROTO_WITH_HEADERS"
	DefaultScanInterval = 30 * time.Second
	DefaultMaxEntrySize = 16 << 20
)

var ErrEntryTooLarge = errors.New("entry exceeds the maximum size")

type Config struct {
	Dir          string        `mapstructure:"dir"`
	Tag          string        `mapstructure:"tag"`
	ScanInterval time.Duration `mapstructure:"scanInterval"`
	// MaxEntrySize caps the uncompressed size of an entry, in bytes.
	MaxEntrySize int64 `mapstructure:"maxEntrySize"`
}

func (c *Config) setDefaults() {
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if c.Tag == "" {
		c.Tag = DefaultTag
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.MaxEntrySize <= 0 {
		c.MaxEntrySize = DefaultMaxEntrySize
	}
}

// DropBoxWatcher replays tombstone entries of the rotating system log.
// Entries are historical: they may have been handled before a restart.
type DropBoxWatcher struct {
	appFs    afero.Fs
	config   Config
	pipeline eventpipeline.EventPipeline
	// newest entry handed on, only entries ordered after it are replayed
	last      entry
	scanMutex sync.Mutex
	running   atomic.Bool
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewDropBoxWatcher(appFs afero.Fs, config Config, pipeline eventpipeline.EventPipeline) *DropBoxWatcher {
	config.setDefaults()
	return &DropBoxWatcher{
		appFs:    appFs,
		config:   config,
		pipeline: pipeline,
		stopChan: make(chan struct{}),
	}
}

// Start replays the current entries and then scans periodically.
func (d *DropBoxWatcher) Start() error {
	if d.running.Load() {
		return fmt.Errorf("dropbox watcher is already running")
	}
	if _, err := d.appFs.Stat(d.config.Dir); err != nil {
		return fmt.Errorf("dropbox directory %s: %w", d.config.Dir, err)
	}
	d.running.Store(true)

	go d.scanPeriodically()

	logger.L().Info("DropBoxWatcher - watching log entries",
		helpers.String("dir", d.config.Dir),
		helpers.String("tag", d.config.Tag),
		helpers.String("scan_interval", d.config.ScanInterval.String()))
	return nil
}

func (d *DropBoxWatcher) Stop() {
	d.stopOnce.Do(func() {
		d.running.Store(false)
		close(d.stopChan)
		logger.L().Info("DropBoxWatcher - stopped")
	})
}

func (d *DropBoxWatcher) IsRunning() bool {
	return d.running.Load()
}

func (d *DropBoxWatcher) scanPeriodically() {
	ticker := time.NewTicker(d.config.ScanInterval)
	defer ticker.Stop()

	for {
		if err := d.scan(); err != nil {
			logger.L().Warning("DropBoxWatcher - scan failed, will retry next cycle", helpers.Error(err))
		}
		select {
		case <-ticker.C:
		case <-d.stopChan:
			return
		}
	}
}

// scan hands every tombstone entry newer than the last handled one to the
// pipeline, oldest first.
func (d *DropBoxWatcher) scan() error {
	d.scanMutex.Lock()
	defer d.scanMutex.Unlock()

	infos, err := afero.ReadDir(d.appFs, d.config.Dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", d.config.Dir, err)
	}

	var entries []entry
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		e, ok := parseEntryName(info.Name())
		if !ok || e.tag != d.config.Tag || e.lost() {
			continue
		}
		if !e.after(d.last) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[j].after(entries[i])
	})

	for _, e := range entries {
		// unreadable entries are not retried either
		d.last = e
		content, err := d.readEntry(e)
		if err != nil {
			logger.L().Warning("DropBoxWatcher - failed to read entry", helpers.String("entry", e.name), helpers.Error(err))
			continue
		}
		outcome := d.pipeline.HandleLogEntry(e.timestamp, content)
		logger.L().Debug("DropBoxWatcher - handled entry",
			helpers.String("entry", e.name),
			helpers.String("size", humanize.Bytes(uint64(len(content)))),
			helpers.String("outcome", outcome.String()))
	}
	return nil
}

func (d *DropBoxWatcher) readEntry(e entry) ([]byte, error) {
	// entries are written by another service, do not follow links out of the directory
	path, err := securejoin.SecureJoin(d.config.Dir, e.name)
	if err != nil {
		return nil, err
	}
	info, err := d.appFs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > d.config.MaxEntrySize {
		return nil, fmt.Errorf("%s: %w", humanize.Bytes(uint64(info.Size())), ErrEntryTooLarge)
	}
	content, err := afero.ReadFile(d.appFs, path)
	if err != nil {
		return nil, err
	}
	if !e.compressed {
		return content, nil
	}
	reader, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	defer reader.Close()
	content, err = io.ReadAll(io.LimitReader(reader, d.config.MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	if int64(len(content)) > d.config.MaxEntrySize {
		return nil, fmt.Errorf("decompressed: %w", ErrEntryTooLarge)
	}
	return content, nil
}
