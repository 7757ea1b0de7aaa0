package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls a callback when a project's config.yaml or .graph.toml
// changes on disk, debounced so a save-triggered rewrite-then-chmod pair
// doesn't fire the callback twice. It does not reload or apply the
// settings itself; graphd serve's callback only logs that a restart is
// needed for claim-TTL or strict-mode edits to take effect.
type Watcher struct {
	watcher   *fsnotify.Watcher
	onChanged func()
	debounce  time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher watches projectDir (the .graph directory) and repoRoot (for
// .graph.toml, which lives alongside the project, not inside it) and
// calls onChanged after debounce settles following any write.
func NewWatcher(projectDir, repoRoot string, onChanged func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(projectDir); err != nil {
		fw.Close()
		return nil, err
	}
	if repoRoot != "" && repoRoot != projectDir {
		if err := fw.Add(repoRoot); err != nil {
			fw.Close()
			return nil, err
		}
	}

	w := &Watcher{watcher: fw, onChanged: onChanged, debounce: 300 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.schedule()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if name != "config.yaml" && name != OverrideFileName {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// schedule resets the debounce timer so a burst of events collapses into
// a single reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChanged)
}

// Close stops the watcher and its background goroutine.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
