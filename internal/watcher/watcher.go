// Package watcher notifies on config file changes so topology rules can
// be reloaded without a restart.
package watcher

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches one file and invokes a callback when it changes
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
}

// New creates a watcher for the given file
func New(path string, onChange func()) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
	}
}

// WithDebounce sets the quiet period after an event before the callback
// fires
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until the context is cancelled. The parent directory is
// watched instead of the file itself so editor rename-and-replace saves
// are still seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s for changes", w.path)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				log.Printf("File changed: %s", w.path)
				w.onChange()
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
