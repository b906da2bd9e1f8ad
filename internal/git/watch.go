package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/gitmerge-go/internal/debounce"
)

const watchDebounceDelay = 350 * time.Millisecond

// Watcher notifies a host when HEAD or branch references move underneath
// it, e.g. because another process touched the repository. Event bursts are
// debounced into a single callback.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer
	done     chan struct{}
}

// Watch starts watching the repository's reference state and invokes
// onChange (from a background goroutine) after it settles. Close the
// returned Watcher to stop.
func (s *Service) Watch(onChange func()) (*Watcher, error) {
	if s.repo == nil {
		return nil, repoErr("watch", errors.New("native repository access required"))
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, repoErr("watch", err)
	}
	for _, path := range watchPaths(s.repo.GitDir()) {
		if err := fsw.Add(path); err != nil {
			err = errors.Join(err, fsw.Close())
			return nil, repoErr(fmt.Sprintf("watch %s", path), err)
		}
		slog.Debug("watching path", slog.String("path", path))
	}
	w := &Watcher{
		watcher:  fsw,
		debounce: debounce.New(watchDebounceDelay, onChange),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// watchPaths returns the gitdir locations where reference movement shows
// up: HEAD itself, the loose branch refs, the reflog and packed-refs.
func watchPaths(gitDir string) []string {
	paths := []string{gitDir}
	for _, sub := range []string{"refs/heads", "logs"} {
		p := filepath.Join(gitDir, sub)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("repository changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			w.debounce.Trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Debug("watch error", slog.Any("error", err))
		}
	}
}

// Close stops the watcher. Safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	w.debounce.Stop()
	return w.watcher.Close()
}
