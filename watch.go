package reachctl

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// WatchEvent carries a snapshot taken by Watch, or an error from the file watcher
type WatchEvent struct {
	// Snapshot is the state observed
	Snapshot DeploymentSnapshot
	// Trigger names what caused the snapshot: initial, interval or the changed path
	Trigger string
	// Err is set when the file watcher failed
	Err error
}

// WatchCleanupFunc stops a watch and waits for its goroutine to exit
type WatchCleanupFunc func() error

// Watch emits a snapshot immediately, then every interval and whenever one
// of paths changes. A path may be a file or a directory; files are watched
// through their parent directory. Paths that do not exist are skipped.
// Only snapshots whose owner, states or health differ from the previous one
// are emitted after the first.
func (r *StatusReporter) Watch(ctx context.Context, interval time.Duration, paths ...string) (<-chan WatchEvent, WatchCleanupFunc, error) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	files := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		dir := p
		if !info.IsDir() {
			dir = filepath.Dir(p)
			files[filepath.Clean(p)] = true
		} else {
			dirs[filepath.Clean(p)] = true
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, nil, err
		}
	}

	relevant := func(name string) bool {
		name = filepath.Clean(name)
		return files[name] || dirs[filepath.Dir(name)] || dirs[name]
	}

	ch := make(chan WatchEvent, 10)
	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	var last *DeploymentSnapshot
	send := func(sctx *stopper.Context, ev WatchEvent) {
		select {
		case ch <- ev:
		case <-sctx.Stopping():
		}
	}
	observe := func(sctx *stopper.Context, trigger string) {
		snap := r.Snapshot(sctx)
		if last != nil && !snapshotChanged(*last, snap) && trigger == "interval" {
			return
		}
		last = &snap
		send(sctx, WatchEvent{Snapshot: snap, Trigger: trigger})
	}

	sctx.Go(func(sctx *stopper.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var debounce *time.Timer
		var debounceC <-chan time.Time
		pending := ""
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		observe(sctx, "initial")

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case <-sctx.Done():
				return nil

			case <-ticker.C:
				observe(sctx, "interval")

			case <-debounceC:
				debounceC = nil
				observe(sctx, pending)

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !relevant(event.Name) {
					continue
				}
				pending = event.Name
				if debounce == nil {
					debounce = time.NewTimer(DefaultWatchDebounce)
				} else {
					debounce.Reset(DefaultWatchDebounce)
				}
				debounceC = debounce.C

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					send(sctx, WatchEvent{Err: err})
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}

// snapshotChanged compares the fields an operator acts on
func snapshotChanged(a, b DeploymentSnapshot) bool {
	return a.Owner != b.Owner ||
		a.NativeState != b.NativeState ||
		a.ContainerState != b.ContainerState ||
		a.ContainerHealth != b.ContainerHealth ||
		a.ImagePresent != b.ImagePresent ||
		a.PortListening != b.PortListening ||
		a.Health != b.Health
}
