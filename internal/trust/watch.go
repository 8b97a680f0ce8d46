package trust

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rai-osu/connect/pkg/rclog"
	"go.uber.org/zap"
)

// WatchHostsFile watches the hosts file for external writes (e.g. the user
// manually editing it, or another tool touching it) and emits on the
// returned channel whenever a write is observed, so callers can refresh
// their cached is_installed state reactively instead of re-reading it on
// every poll. The channel is closed and the watch torn down when ctx is
// done.
func WatchHostsFile(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(HostsFilePath())
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	changed := make(chan struct{}, 1)
	log := rclog.Named("trust")

	go func() {
		defer watcher.Close()
		defer close(changed)

		target := HostsFilePath()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
					continue
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("hosts file watch error", zap.Error(err))
			}
		}
	}()

	return changed, nil
}
