// Package watch reports changes of schema files so generation can rerun.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay collapses the burst of events editors produce for one save.
const DefaultDelay = 100 * time.Millisecond

// Watcher watches a fixed set of files. Editors often replace files instead of writing them, so
// the parent directories are watched and events are filtered by path.
type Watcher struct {
	watcher *fsnotify.Watcher
	files   map[string]bool
	delay   time.Duration

	mu          sync.Mutex
	subscribers []func([]string)
	pending     map[string]bool
	timer       *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// New starts watching files. Changes are delivered after delay without further events.
func New(files []string, delay time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		watcher: fw,
		files:   make(map[string]bool),
		delay:   delay,
		pending: make(map[string]bool),
		done:    make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		slog.Debug("Watching directory", "path", dir)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Subscribe adds a callback receiving the sorted changed files. It returns an unsubscribe function.
func (w *Watcher) Subscribe(callback func(changed []string)) func() {
	w.mu.Lock()
	w.subscribers = append(w.subscribers, callback)
	index := len(w.subscribers) - 1
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.subscribers[index] = nil
	}
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.files[name] {
				continue
			}
			slog.Debug("Schema file changed", "path", name, "op", event.Op.String())
			w.add(name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher failed", "error", err)
		}
	}
}

func (w *Watcher) add(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for name := range w.pending {
		changed = append(changed, name)
	}
	w.pending = make(map[string]bool)
	subscribers := append(([]func([]string))(nil), w.subscribers...)
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	for _, callback := range subscribers {
		if callback != nil {
			callback(changed)
		}
	}
}

// Close stops watching. Pending changes are dropped.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
