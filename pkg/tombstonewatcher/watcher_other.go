//go:build !linux

package tombstonewatcher

type platformWatcher struct{}

func (w *TombstoneWatcher) Start() error {
	return ErrUnsupportedPlatform
}

func (w *TombstoneWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	w.release()
}
