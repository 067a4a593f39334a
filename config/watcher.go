package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ChangeFunc receives the configuration before and after a reload.
type ChangeFunc func(oldConfig, newConfig *Config)

// Watcher keeps the configuration loaded from one file current. A reload
// that fails to load or validate keeps the previous configuration.
type Watcher struct {
	path   string
	loader *Loader
	log    *logrus.Entry

	mu       sync.RWMutex
	current  *Config
	onChange []ChangeFunc

	fs       *fsnotify.Watcher
	debounce time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher loads path once. Watching starts with Start.
func NewWatcher(path string, loader *Loader, logger *logrus.Logger) (*Watcher, error) {
	if _, err := formatOf(path); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	initial, err := loader.LoadFromFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		loader:   loader,
		log:      logger.WithField("component", "config"),
		current:  initial,
		fs:       fs,
		debounce: 500 * time.Millisecond,
		stop:     make(chan struct{}),
	}, nil
}

// Start watches the directory of the file, so editors that replace the
// file instead of writing it are noticed too.
func (w *Watcher) Start() error {
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

// GetConfig returns the configuration in effect.
func (w *Watcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnConfigChange registers fn for every successful reload.
func (w *Watcher) OnConfigChange(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Reload loads the file now.
func (w *Watcher) Reload() error {
	next, err := w.loader.LoadFromFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	subscribers := append([]ChangeFunc(nil), w.onChange...)
	w.mu.Unlock()

	w.log.WithField("file", w.path).Info("configuration reloaded")
	for _, fn := range subscribers {
		w.notify(fn, prev, next)
	}
	return nil
}

func (w *Watcher) notify(fn ChangeFunc, prev, next *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("panic", r).Error("config change callback panicked")
		}
	}()
	fn(prev, next)
}

// run coalesces bursts of events on the file into one reload.
func (w *Watcher) run() {
	defer w.wg.Done()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, func() {
				if err := w.Reload(); err != nil {
					w.log.WithError(err).Warn("keeping previous configuration")
				}
			})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("config watcher error")
		}
	}
}
