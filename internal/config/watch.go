package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of write events most editors emit when
// saving a file.
const debounceWindow = 250 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands the
// result to a callback, so a page-shape edit takes effect without a restart.
// A file that fails to parse is logged and ignored; the previous
// configuration stays active.
type Watcher struct {
	path     string
	onChange func(Config)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string, onChange func(Config)) *Watcher {
	return &Watcher{path: path, onChange: onChange}
}

// Start begins watching. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("config watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the directory, not the file: editors that save via rename
	// replace the inode and would silently detach a file-level watch.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watching config directory: %w", err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.done = make(chan struct{})

	go w.run(ctx, fsw)
	log.Printf("Watching %s for configuration changes", w.path)
	return nil
}

// Stop halts the watcher and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.running = false
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer fsw.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Config watcher error: %v", err)

		case <-reload:
			cfg, err := Load(w.path)
			if err != nil {
				log.Printf("Config reload failed, keeping previous configuration: %v", err)
				continue
			}
			log.Printf("Configuration reloaded from %s", w.path)
			if w.onChange != nil {
				w.onChange(cfg)
			}
		}
	}
}
