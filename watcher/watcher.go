package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const activityOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

type Watcher struct {
	root     string
	onChange func(path string)
	onError  func(err error)
	pending  []error
	fsw      *fsnotify.Watcher
	mu       sync.Mutex
}

func NewWatcher(root string) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &SetupError{Path: root, Err: fmt.Errorf("not a directory")}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		root: root,
		fsw:  fsw,
	}

	if err = w.fsw.Add(root); err != nil {
		fsw.Close()
		return nil, &SetupError{Path: root, Err: err}
	}
	w.addRecursive(root)

	return w, nil
}

func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

func (w *Watcher) OnError(fn func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Run drains filesystem notifications until ctx is done or the watcher is
// closed. Registration errors from NewWatcher are reported first.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, err := range pending {
		w.reportError(err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				w.reportError(err)
			}
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&activityOps == 0 {
		return
	}

	w.mu.Lock()
	fn := w.onChange
	w.mu.Unlock()

	if fn != nil {
		fn(event.Name)
	}

	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			w.addRecursive(event.Name)
		}
	}
}

// addRecursive registers root and every directory below it. Directories
// that vanish or cannot be registered are reported through OnError and
// skipped.
func (w *Watcher) addRecursive(root string) {
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.reportError(fmt.Errorf("failed to walk %s: %w", path, err))
			return nil
		}

		if d.IsDir() {
			if err = w.fsw.Add(path); err != nil {
				w.reportError(fmt.Errorf("failed to watch %s: %w", path, err))
			}
		}

		return nil
	})
}

// reportError hands err to the OnError callback, or holds it until Run when
// no callback is set yet.
func (w *Watcher) reportError(err error) {
	w.mu.Lock()
	fn := w.onError
	if fn == nil {
		w.pending = append(w.pending, err)
	}
	w.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}
