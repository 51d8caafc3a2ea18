package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/choregate/internal/logfields"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 2 * time.Second

// FileWatcher calls onChange after the watched file is written, created or
// renamed into place. Rapid changes are debounced into one call.
type FileWatcher struct {
	path     string
	onChange func()
	debounce time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	pending chan struct{}
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewFileWatcher creates a watcher for path. It does not start watching
// until Start is called.
func NewFileWatcher(path string, debounce time.Duration, onChange func(), logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watched path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &FileWatcher{
		path:     absPath,
		onChange: onChange,
		debounce: debounce,
		logger:   logger,
		watcher:  w,
		pending:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}, nil
}

// Path is the absolute path being watched.
func (fw *FileWatcher) Path() string { return fw.path }

// Start watches the directory containing the file. Watching the directory
// survives editors that replace the file instead of writing it in place.
func (fw *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	fw.logger.Info("Watching children file", logfields.Path(fw.path))

	fw.wg.Add(2)
	go fw.watchLoop(ctx)
	go fw.debounceLoop(ctx)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (fw *FileWatcher) Stop() {
	fw.once.Do(func() {
		close(fw.stop)
		if err := fw.watcher.Close(); err != nil {
			fw.logger.Error("Error closing file watcher", logfields.Error(err))
		}
		fw.wg.Wait()
	})
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer fw.wg.Done()
	name := filepath.Base(fw.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stop:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				fw.logger.Debug("Children file change detected",
					logfields.Path(event.Name),
					slog.String("op", event.Op.String()))
				fw.trigger()
			case event.Has(fsnotify.Remove):
				fw.logger.Warn("Children file removed; keeping current configuration", logfields.Path(event.Name))
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (fw *FileWatcher) debounceLoop(ctx context.Context) {
	defer fw.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-fw.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-fw.pending:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(fw.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			fw.onChange()
		}
	}
}

func (fw *FileWatcher) trigger() {
	select {
	case fw.pending <- struct{}{}:
	default:
	}
}
