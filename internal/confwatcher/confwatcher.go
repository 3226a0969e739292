// Package confwatcher contains a configuration watcher.
package confwatcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultSettleTime = 100 * time.Millisecond
)

// ConfWatcher signals when a configuration file has been rewritten.
// The parent directory is watched, so that files replaced by rename
// and symlinks that are switched to another target are detected too.
type ConfWatcher struct {
	FilePath   string
	SettleTime time.Duration

	inner        *fsnotify.Watcher
	absolutePath string

	// in
	terminate chan struct{}

	// out
	signal chan struct{}
	done   chan struct{}
}

// Initialize initializes a ConfWatcher.
func (w *ConfWatcher) Initialize() error {
	if _, err := os.Stat(w.FilePath); err != nil {
		return err
	}

	if w.SettleTime == 0 {
		w.SettleTime = defaultSettleTime
	}

	var err error
	w.inner, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// use absolute paths to support Darwin
	w.absolutePath, _ = filepath.Abs(w.FilePath)

	err = w.inner.Add(filepath.Dir(w.absolutePath))
	if err != nil {
		w.inner.Close() //nolint:errcheck
		return err
	}

	w.terminate = make(chan struct{})
	w.signal = make(chan struct{})
	w.done = make(chan struct{})

	go w.run()

	return nil
}

// Close closes a ConfWatcher.
func (w *ConfWatcher) Close() {
	close(w.terminate)
	<-w.done
}

func (w *ConfWatcher) isRelevant(event fsnotify.Event, previousTarget string) (bool, string) {
	currentTarget, _ := filepath.EvalSymlinks(w.absolutePath)

	// file is missing, wait until it is created again
	if currentTarget == "" {
		return false, ""
	}

	if currentTarget != previousTarget {
		return true, currentTarget
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false, currentTarget
	}

	eventPath, _ := filepath.Abs(event.Name)
	eventPath, _ = filepath.EvalSymlinks(eventPath)

	return eventPath == currentTarget, currentTarget
}

func (w *ConfWatcher) run() {
	defer close(w.done)
	defer w.inner.Close() //nolint:errcheck
	defer close(w.signal)

	previousTarget, _ := filepath.EvalSymlinks(w.absolutePath)

	// writers usually emit several events per save.
	// signal once, after events stopped for SettleTime.
	settle := time.NewTimer(w.SettleTime)
	settle.Stop()

	for {
		select {
		case event := <-w.inner.Events:
			var relevant bool
			relevant, previousTarget = w.isRelevant(event, previousTarget)
			if relevant {
				settle.Reset(w.SettleTime)
			}

		case <-settle.C:
			select {
			case w.signal <- struct{}{}:
			case <-w.terminate:
				return
			}

		case <-w.inner.Errors:
			return

		case <-w.terminate:
			return
		}
	}
}

// Watch returns a channel that receives a value after the configuration file has changed.
func (w *ConfWatcher) Watch() chan struct{} {
	return w.signal
}
