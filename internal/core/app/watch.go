package app

import (
	"context"
	"os"
	"strings"
	"time"

	"metadesc/internal/core/ports"
	"metadesc/internal/core/watcher"
	"metadesc/internal/shared/util"
)

const limiterIdleTTL = 10 * time.Minute

// Watch re-resolves every root descriptor whenever a watched descriptor
// changes, until ctx is done. Each root is throttled by its own limiter so
// a burst of saves in one tree does not starve the others.
func (a *App) Watch(ctx context.Context, handler func(ports.ResolveResult)) error {
	changes := make(chan []string, 1)
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.filter, func(paths []string) {
		kept := paths[:0:0]
		for _, p := range paths {
			if !a.isEmitted(p) {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			return
		}
		select {
		case changes <- kept:
		default:
			// A pending batch already re-resolves every root.
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := a.watchDirs()
	if err := w.Watch(dirs); err != nil {
		return err
	}
	a.logger.Info("watching descriptors", "dirs", dirs, "debounce", a.Config.Watch.Debounce)

	limiters := util.NewLimiterRegistry(a.Config.Watch.Rate, a.Config.Watch.Burst, limiterIdleTTL)
	defer limiters.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-changes:
			a.logger.Info("detected descriptor changes", "count", len(paths))
			if err := a.throttle(ctx, limiters, paths); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			result, err := a.ResolveAll(ctx, ports.ResolveRequest{Trigger: TriggerWatch})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error("watch re-resolution failed", "error", err)
				continue
			}
			if handler != nil {
				handler(result)
			}
		}
	}
}

func (a *App) throttle(ctx context.Context, limiters *util.LimiterRegistry, paths []string) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		root := a.rootFor(p)
		if seen[root] {
			continue
		}
		seen[root] = true
		if err := limiters.Get(root).Wait(ctx, 1); err != nil {
			return err
		}
	}
	return nil
}

// watchDirs returns the root directories plus local data path directories,
// since by-name imports resolve there.
func (a *App) watchDirs() []string {
	candidates := append([]string(nil), a.Paths.Roots...)
	for _, d := range a.Paths.DataPath {
		if strings.HasPrefix(d, "file://") {
			d = strings.TrimPrefix(d, "file://")
		} else if strings.Contains(d, "://") {
			continue
		}
		candidates = append(candidates, d)
	}

	var dirs []string
	for _, d := range uniqueScanRoots(candidates) {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
