package circle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RequestLoader reads the request stored at path.
type RequestLoader func(path string) (Request, error)

// Watch resolves the request file at path once, then again after every write
// to it, handing each result to handle until ctx is done. An edit made while
// a request is still running supersedes it, and superseded results are not
// handed over. A request file that fails to load is logged and skipped.
func (ss *Session) Watch(ctx context.Context, path string, load RequestLoader, handle func(Result)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file instead of writing it, so the directory
	// is watched and events are matched by name.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	logger := ss.service.logger
	var pending <-chan Result
	submit := func() {
		req, err := load(target)
		if err != nil {
			logger.Warn("skipping unreadable request",
				zap.String("op", "circle.Session.Watch"),
				zap.String("path", target),
				zap.Error(err),
			)
			return
		}
		pending = ss.Submit(ctx, req)
	}

	submit()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("request file changed",
				zap.String("op", "circle.Session.Watch"),
				zap.String("event", event.Op.String()),
			)
			submit()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error",
				zap.String("op", "circle.Session.Watch"),
				zap.Error(err),
			)
		case res := <-pending:
			pending = nil
			if errors.Is(res.Err, context.Canceled) {
				continue
			}
			handle(res)
		}
	}
}
