package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/novabloom/capsulecore/internal/logger"
)

// Watch reloads configuration from configPath whenever the file changes
// and invokes onChange with the freshly loaded Config. It runs until ctx
// is cancelled. A reload that fails validation is logged and skipped —
// the previous config stays in effect.
func Watch(ctx context.Context, configPath string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(configPath)
				if err != nil {
					logger.ErrorCtx(ctx, "config reload failed", logger.Err(err))
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.ErrorCtx(ctx, "config watcher error", logger.Err(err))
			}
		}
	}()

	return nil
}
