package livereload

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before reporting it.
const DefaultDebounce = 200 * time.Millisecond

// ChangeFunc receives the sorted set of files changed during one burst.
type ChangeFunc func(paths []string)

// Watcher reports changes to files matching a set of patterns.
type Watcher struct {
	patterns *Patterns
	onChange ChangeFunc
	logger   *slog.Logger
	debounce time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a watcher for the given patterns.
func NewWatcher(patterns *Patterns, onChange ChangeFunc, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		patterns: patterns,
		onChange: onChange,
		logger:   logger,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches every directory below the pattern roots, including directories
// created later, and calls the change callback once per debounced burst of
// write, create, remove or rename events on matching files. Roots that do not
// exist are skipped. Run blocks until ctx is cancelled, then returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	watched := 0
	for _, root := range w.patterns.Roots() {
		n, err := addTree(fsw, root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("watch root does not exist, skipping", "root", root)
				continue
			}
			return err
		}
		watched += n
	}
	w.logger.Info("watching for changes", "patterns", w.patterns.Len(), "directories", watched)

	pending := make(map[string]struct{})
	flushCh := make(chan struct{}, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := addTree(fsw, event.Name); err != nil {
						w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.patterns.Match(event.Name) {
				continue
			}
			pending[filepath.Clean(event.Name)] = struct{}{}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				select {
				case flushCh <- struct{}{}:
				default:
				}
			})

		case <-flushCh:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			w.logger.Debug("files changed", "count", len(paths))
			w.onChange(paths)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// addTree adds root and every directory below it to fsw.
func addTree(fsw *fsnotify.Watcher, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && d.Name() == "node_modules" {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
