package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events editors emit on save.
const watchDebounce = 150 * time.Millisecond

// watch runs path, then re-runs it on every change until ctx is done.
// Failed runs are reported and the watch goes on.
func (a *app) watch(ctx context.Context, path string, opts runOptions, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file on save.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	rerun := func() {
		if err := a.runScript(ctx, path, opts, out); err != nil {
			a.log.Error("run failed", "path", path, "error", err)
			return
		}
		fmt.Fprintln(out)
	}
	rerun()
	a.log.Info("watching", "path", abs)

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watch error", "error", err)
		case <-timer:
			timer = nil
			a.log.Info("script changed, re-running", "path", path)
			rerun()
		}
	}
}
