package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the write bursts editors produce when saving.
const debounceWindow = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	once    sync.Once
	done    chan struct{}
	timerMu sync.Mutex
	timer   *time.Timer

	// OnReload receives the freshly loaded configuration, or the load
	// error for a file that became invalid.
	OnReload func(cfg *Config, err error)
}

// Watch starts watching path for changes. The containing directory is
// watched so atomic rename-based saves are seen too.
func Watch(path string, onReload func(cfg *Config, err error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(path))
	}

	w := &Watcher{
		path:     path,
		fsw:      fsw,
		done:     make(chan struct{}),
		OnReload: onReload,
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher. Idempotent.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// scheduleReload arms (or re-arms) the debounce timer.
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, func() {
		select {
		case <-w.done:
			return
		default:
		}
		cfg, err := Load(w.path)
		if w.OnReload != nil {
			w.OnReload(cfg, err)
		}
	})
}
