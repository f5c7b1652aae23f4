package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay groups the burst of events editors emit for a single save.
const settleDelay = 100 * time.Millisecond

var ErrAlreadyWatching = errors.New("already watching")

// StartWatching reprocesses Go files under dirs whenever they are written.
// Every result, or error, is passed to onResult from the watch goroutine.
func (e *Engine) StartWatching(dirs []string, onResult func(*Result, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isWatching {
		return ErrAlreadyWatching
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}

	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			watcher.Close()
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	e.watcher = watcher
	e.watchDirs = dirs
	e.onResult = onResult
	e.isWatching = true
	go e.watchLoop(watcher)
	return nil
}

func (e *Engine) StopWatching() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isWatching {
		return nil
	}

	e.isWatching = false
	return e.watcher.Close()
}

func (e *Engine) watchLoop(watcher *fsnotify.Watcher) {
	pending := make(map[string]struct{})
	timer := time.NewTimer(settleDelay)
	timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if e.wantsEvent(event) {
				pending[event.Name] = struct{}{}
				timer.Reset(settleDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			e.report(nil, err)
		case <-timer.C:
			for name := range pending {
				delete(pending, name)
				e.report(e.Run(name))
			}
		}
	}
}

func (e *Engine) wantsEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	if !strings.HasSuffix(event.Name, ".go") {
		return false
	}
	// our own output triggers write events too
	return !strings.HasSuffix(strings.TrimSuffix(strings.TrimSuffix(event.Name, ".go"), "_test"), e.opts.OutputSuffix)
}

func (e *Engine) report(result *Result, err error) {
	e.mu.Lock()
	onResult := e.onResult
	e.mu.Unlock()

	if onResult != nil {
		onResult(result, err)
	}
}
