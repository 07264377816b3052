package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/tallowoak/taskline/internal/logger"
)

// Watch watches path (a program file or a config file) and calls onChange
// every time it is written, until ctx is done. Used by `taskline agent-mode
// --watch` to reload a program without restarting the process.
func Watch(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange()
				}
			case werr, ok := <-watcher.Errors:
				if ok && logger.Log != nil {
					logger.Warn("watch error", "path", path, "err", werr)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
