// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	applog "audioviz/internal/log"

	"github.com/fsnotify/fsnotify"
)

var watchLog = applog.Named("config")

// PresetWatcher calls onChange after the preset file is written or
// replaced. Bursts of events inside the debounce window collapse into one
// call.
type PresetWatcher struct {
	path     string
	debounce time.Duration
	onChange func(*Preset)

	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// WatchPreset starts watching the directory holding path. The directory is
// watched rather than the file because editors and SavePreset replace the
// file by rename.
func WatchPreset(path string, debounce time.Duration, onChange func(*Preset)) (*PresetWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preset path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	pw := &PresetWatcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
		done:     make(chan struct{}),
	}
	pw.wg.Add(1)
	go pw.loop()
	watchLog.Infof("watching preset %s", abs)
	return pw, nil
}

func (pw *PresetWatcher) loop() {
	defer pw.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != pw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(pw.debounce)
			} else {
				timer.Reset(pw.debounce)
			}
			fire = timer.C
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			watchLog.Warnf("watcher error: %v", err)
		case <-fire:
			fire = nil
			p, err := LoadPreset(pw.path)
			if err != nil {
				// The old preset stays active.
				watchLog.Warnf("ignoring preset change: %v", err)
				continue
			}
			pw.onChange(p)
		case <-pw.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// Close stops the watcher goroutine and waits for it to exit.
func (pw *PresetWatcher) Close() error {
	var err error
	pw.stopOnce.Do(func() {
		close(pw.done)
		err = pw.watcher.Close()
		pw.wg.Wait()
	})
	return err
}
