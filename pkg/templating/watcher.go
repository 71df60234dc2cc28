package templating

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long the watcher waits after the last filesystem
// event before refreshing. Editors tend to fire several events per save.
const watchDebounce = 500 * time.Millisecond

// StartWatcher begins watching the template directory and refreshes the
// template set whenever a .html file inside it changes. The watcher stops
// when ctx is cancelled or StopWatcher is called. Only one watcher may run
// per manager.
func (tm *TemplateManager) StartWatcher(ctx context.Context) error {
	tm.mu.Lock()
	if tm.watcher != nil {
		tm.mu.Unlock()
		return fmt.Errorf("template watcher already running")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		tm.mu.Unlock()
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	if err = watcher.Add(tm.templateDir); err != nil {
		_ = watcher.Close()
		tm.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", tm.templateDir, err)
	}
	tm.watcher = watcher
	tm.mu.Unlock()

	go tm.watchLoop(ctx, watcher)
	tm.logger.Info("Watching template directory", "dir", tm.templateDir)
	return nil
}

// StopWatcher stops the running watcher, if any. Safe to call more than once.
func (tm *TemplateManager) StopWatcher() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.watcher == nil {
		return
	}
	_ = tm.watcher.Close()
	tm.watcher = nil
}

func (tm *TemplateManager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			tm.StopWatcher()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".html") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			name := event.Name
			debounce = time.AfterFunc(watchDebounce, func() {
				if err := tm.Refresh(); err != nil {
					tm.logger.Error("failed to refresh templates after change", "file", name, "error", err)
					return
				}
				tm.logger.Info("Templates reloaded after change", "file", name)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			tm.logger.Error("template watcher error", "error", err)
		}
	}
}
