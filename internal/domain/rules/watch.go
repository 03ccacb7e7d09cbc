package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long Watch waits after the last event before reloading.
// Editors typically emit several events per save.
const watchSettle = 100 * time.Millisecond

// Watch reloads the store whenever the file at path is written or recreated.
// It blocks until ctx is done. The parent directory is watched so atomic
// rename-style saves are seen, and path is re-resolved on every event so a
// swapped symlink (as in a mounted Kubernetes ConfigMap) also triggers a
// reload. Reload failures are logged and the previous snapshot is kept.
func (s *Store) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve rule path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	resolved, _ := filepath.EvalSymlinks(abs)
	s.logger.Info().Str("path", abs).Str("resolved", resolved).Msg("watching rule file")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			current, _ := filepath.EvalSymlinks(abs)
			written := filepath.Clean(ev.Name) == abs && ev.Op&(fsnotify.Write|fsnotify.Create) != 0
			swapped := current != "" && current != resolved
			if !written && !swapped {
				continue
			}
			resolved = current
			if timer == nil {
				timer = time.NewTimer(watchSettle)
			} else {
				timer.Reset(watchSettle)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if _, err := s.Reload(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("keeping previous rules after failed reload")
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error().Err(err).Msg("rule watcher error")
		}
	}
}
