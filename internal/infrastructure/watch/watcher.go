package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent reports that a watched file changed.
type ChangeEvent struct {
	Path       string
	ChangeType string // "create", "write", "remove", "rename"
}

// FileWatcher watches individual files. It watches their parent directories
// so that editors replacing a file via rename are still observed.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(ChangeEvent)
	files    map[string]struct{}
	last     map[string]string
}

// NewFileWatcher creates a watcher. A zero debounce defaults to 500ms.
func NewFileWatcher(debounce time.Duration, onChange func(ChangeEvent)) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &FileWatcher{
		watcher:  w,
		debounce: debounce,
		onChange: onChange,
		files:    make(map[string]struct{}),
		last:     make(map[string]string),
	}, nil
}

// Watch adds path to the watched set. The file does not need to exist yet,
// but its directory does.
func (w *FileWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.files[abs] = struct{}{}
	return nil
}

// Run starts the event loop. It blocks until the context is cancelled.
func (w *FileWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	events := make(chan string, 16)
	debouncer := NewDebouncer(w.debounce, func(path string) {
		select {
		case events <- path:
		case <-ctx.Done():
		}
	})
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-events:
			if w.onChange != nil {
				w.onChange(ChangeEvent{Path: path, ChangeType: w.last[path]})
			}
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			changeType := opToChangeType(event.Op)
			if changeType == "" {
				continue
			}
			path := filepath.Clean(event.Name)
			if _, watched := w.files[path]; !watched {
				continue
			}
			w.last[path] = changeType
			debouncer.Trigger(path)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func opToChangeType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}
