package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

type reconsulter interface {
	Reconsult(path string) error
}

// watcher reconsults source files when they are written.
//
// Directories are watched instead of files, so that editors that replace
// the file on save are also noticed.
type watcher struct {
	solver  reconsulter
	watcher *fsnotify.Watcher
	// files maps absolute paths to the names given by the user.
	files  map[string]string
	logger *slog.Logger
}

func newWatcher(s reconsulter, files []string, logger *slog.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		solver:  s,
		watcher: fw,
		files:   make(map[string]string),
		logger:  logger,
	}
	dirs := make(map[string]bool)
	for _, file := range files {
		path, err := filepath.Abs(file)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[path] = file
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run handles file events until ctx is done or the watcher is closed.
func (w *watcher) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.Any("err", err))
		case <-ctx.Done():
			return
		}
	}
}

func (w *watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	file, ok := w.files[filepath.Clean(event.Name)]
	if !ok {
		return
	}
	w.logger.Info("file changed, reconsulting", slog.String("file", file))
	if err := w.solver.Reconsult(file); err != nil {
		w.logger.Warn("reconsult failed", slog.String("file", file), slog.Any("err", err))
	}
}

func (w *watcher) Close() error {
	return w.watcher.Close()
}
