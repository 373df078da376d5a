package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// ConfigWatcher watches the configuration file for changes. Editors often
// replace files atomically, so the parent directory is watched and events are
// filtered to the configured path, debounced to collapse write bursts.
type ConfigWatcher struct {
	configPath string
	onChange   func()
	watcher    *fsnotify.Watcher
	stopCh     chan struct{}
}

// NewConfigWatcher creates a watcher that calls onChange after the file at
// configPath settles.
func NewConfigWatcher(configPath string, onChange func()) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{
		configPath: abs,
		onChange:   onChange,
		watcher:    watcher,
		stopCh:     make(chan struct{}),
	}, nil
}

// Start begins watching in the background.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	if err := cw.watcher.Add(filepath.Dir(cw.configPath)); err != nil {
		cw.watcher.Close()
		return err
	}
	go cw.loop(ctx)
	slog.Debug("Watching configuration file", "path", cw.configPath)
	return nil
}

// Stop ends the watch.
func (cw *ConfigWatcher) Stop() {
	close(cw.stopCh)
	cw.watcher.Close()
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	timerC := func() <-chan time.Time {
		if timer == nil {
			return nil
		}
		return timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC():
			timer = nil
			cw.onChange()
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}
