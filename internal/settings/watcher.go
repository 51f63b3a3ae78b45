package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dailysync/internal/logger"
	"dailysync/internal/model"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Watcher reloads the settings file when it is changed by something other
// than the store itself.
type Watcher struct {
	store    *Store
	onReload func([]model.Job)
	delay    time.Duration

	fw     *fsnotify.Watcher
	group  singleflight.Group
	doneCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

func NewWatcher(store *Store, onReload func([]model.Job)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		store:    store,
		onReload: onReload,
		delay:    200 * time.Millisecond,
		fw:       fw,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the directory containing the settings file; editors often
// replace files instead of writing them in place.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.run()

	logger.Log.Info("settings watcher started",
		zap.String("path", w.store.Path()))
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.fw.Close()
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.doneCh)
	err := w.fw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run() {
	defer w.wg.Done()

	target := filepath.Clean(w.store.Path())

	for {
		select {
		case <-w.doneCh:
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Log.Warn("settings watcher error",
				zap.Error(err))
		}
	}
}

// schedule debounces bursts of events into one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		_ = w.Reload()
	})
}

// Reload reads the settings file and hands it to the reload callback unless
// the content is the store's own last write. Concurrent calls share one read.
func (w *Watcher) Reload() error {
	_, err, _ := w.group.Do(w.store.Path(), func() (any, error) {
		data, err := os.ReadFile(w.store.Path())
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			logger.Log.Warn("failed to read settings",
				zap.Error(err))
			return nil, err
		}

		if w.store.IsOwnWrite(data) {
			return nil, nil
		}

		jobs, err := Decode(data)
		if err != nil {
			logger.Log.Warn("ignoring invalid settings file",
				zap.String("path", w.store.Path()),
				zap.Error(err))
			return nil, err
		}

		logger.Log.Info("settings changed on disk, reloading",
			zap.Int("jobs", len(jobs)))
		w.onReload(jobs)
		return nil, nil
	})

	return err
}
