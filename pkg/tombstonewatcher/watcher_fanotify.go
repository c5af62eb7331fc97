//go:build linux

package tombstonewatcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/opcoder0/fanotify"
)

type platformWatcher struct {
	listener *fanotify.Listener
}

// Start watches the tombstone directory for new files.
func (w *TombstoneWatcher) Start() error {
	if w.running.Load() {
		return fmt.Errorf("tombstone watcher is already running")
	}
	if _, err := os.Stat(w.dir); err != nil {
		return fmt.Errorf("tombstone directory %s: %w", w.dir, err)
	}

	listener, err := fanotify.NewListener(w.dir, false, fanotify.PermissionNone)
	if err != nil {
		return fmt.Errorf("failed to create fanotify listener for %s: %w", w.dir, err)
	}
	// tombstoned links a fully written file into place, or creates and then writes it
	eventTypes := fanotify.FileCreated.Or(fanotify.FileMovedTo).Or(fanotify.FileClosedAfterWrite)
	if err := listener.AddWatch(w.dir, eventTypes); err != nil {
		listener.Stop()
		return fmt.Errorf("failed to add watch for %s: %w", w.dir, err)
	}
	listener.Start()
	w.listener = listener

	go w.watch()

	w.running.Store(true)
	logger.L().Info("TombstoneWatcher - watching tombstones", helpers.String("dir", w.dir))
	return nil
}

func (w *TombstoneWatcher) watch() {
	for {
		select {
		case <-w.stopChan:
			logger.L().Debug("TombstoneWatcher - stopping")
			return
		case event := <-w.listener.Events:
			if event.FileName == "" {
				continue
			}
			w.handleFile(filepath.Join(event.Path, event.FileName), time.Now())
		}
	}
}

func (w *TombstoneWatcher) Stop() {
	if !w.running.Load() {
		return
	}
	w.running.Store(false)
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	if w.listener != nil {
		w.listener.Stop()
	}
	w.release()
}
