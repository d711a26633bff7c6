package daemon

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/tunnelguard/tunnelguard/internal/core"
	"github.com/tunnelguard/tunnelguard/internal/tunnelstore"
)

// watchConfigDir watches the application directory for changes to custom
// tunnel config files so edits made outside the CLI show up without a
// restart. A changed file only affects the next launch; running processes
// keep the config they were started with.
func (d *Daemon) watchConfigDir() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("Config watcher unavailable", "error", err)
		return
	}

	configDir := core.GetConfigPath()
	if err := watcher.Add(configDir); err != nil {
		slog.Warn("Failed to watch config directory", "error", err, "dir", configDir)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-d.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				base := filepath.Base(event.Name)
				if !tunnelstore.IsConfigFileName(base) && base != tunnelstore.ListFileName {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				slog.Debug("Custom tunnel config changed", "file", base, "op", event.Op.String())
				if _, err := d.store.List(); err != nil {
					slog.Warn("Failed to refresh tunnel index after config change", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "error", err)
			}
		}
	}()
}
