// Package watch monitors a drop directory for new video files and hands
// settled files to the processing flow. Writes are debounced per file so a
// video still being copied is not picked up mid-transfer.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stubborncoder/vdocs/internal/logfields"
)

// DefaultSettleTime is how long a file must stay quiet before processing.
const DefaultSettleTime = 2 * time.Second

// videoExtensions are the file types the watcher reacts to.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

// ProcessFunc handles one settled video file.
type ProcessFunc func(ctx context.Context, videoPath string)

// Watcher monitors one directory for incoming videos.
type Watcher struct {
	dir        string
	settleTime time.Duration
	process    ProcessFunc
	watcher    *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]*time.Timer
	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a watcher over dir. settleTime <= 0 uses the default.
func New(dir string, settleTime time.Duration, process ProcessFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if settleTime <= 0 {
		settleTime = DefaultSettleTime
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to resolve watch directory: %w", err)
	}

	return &Watcher{
		dir:        absDir,
		settleTime: settleTime,
		process:    process,
		watcher:    fsw,
		pending:    map[string]*time.Timer{},
		stopChan:   make(chan struct{}),
	}, nil
}

// Start begins monitoring. It returns once the watch is registered; events
// are handled on a background goroutine until Stop or context cancel.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}

	slog.Info("watching for videos", logfields.Path(w.dir))
	go w.watchLoop(ctx)
	return nil
}

// Stop stops monitoring and cancels pending settle timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		_ = w.watcher.Close()

		w.mu.Lock()
		defer w.mu.Unlock()
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isVideo(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("video watcher error", logfields.Error(err))
		}
	}
}

// schedule arms (or re-arms) the settle timer for one file. Each write
// pushes processing back until the file stops changing.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settleTime, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.stopChan:
			return
		default:
		}

		slog.Info("video settled, processing", logfields.Path(path))
		w.process(ctx, path)
	})
}

func isVideo(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}
