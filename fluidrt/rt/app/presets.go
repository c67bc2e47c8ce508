package app

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
)

// PresetWatcher reloads a fluid preset file when it changes on disk. The
// reload happens on the watcher goroutine; the render thread picks the
// result up with Poll.
type PresetWatcher struct {
	path    string
	logger  core.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *core.FluidPresets

	done chan struct{}
	wg   sync.WaitGroup
}

// WatchPresets starts watching path. The directory is watched rather than
// the file so editors that replace the file on save are still seen.
func WatchPresets(path string, logger core.Logger) (*PresetWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	pw := &PresetWatcher{
		path:    abs,
		logger:  core.OrNop(logger),
		watcher: w,
		done:    make(chan struct{}),
	}
	pw.wg.Add(1)
	go pw.loop()
	return pw, nil
}

func (pw *PresetWatcher) loop() {
	defer pw.wg.Done()
	for {
		select {
		case <-pw.done:
			return
		case ev, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != pw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			pw.reload()
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.Warnf("preset watcher: %v", err)
		}
	}
}

func (pw *PresetWatcher) reload() {
	p, err := core.LoadFluidPresets(pw.path)
	if err != nil {
		// half-written files fail to parse; the next write event retries
		pw.logger.Debugf("preset reload: %v", err)
		return
	}
	pw.mu.Lock()
	pw.pending = p
	pw.mu.Unlock()
	pw.logger.Infof("reloaded %d fluid presets from %s", p.Len(), pw.path)
}

// Poll returns presets loaded since the last call, if any.
func (pw *PresetWatcher) Poll() (*core.FluidPresets, bool) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	p := pw.pending
	pw.pending = nil
	return p, p != nil
}

func (pw *PresetWatcher) Close() error {
	close(pw.done)
	err := pw.watcher.Close()
	pw.wg.Wait()
	return err
}
