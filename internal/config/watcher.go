package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// Changes lists which config sections differ between two configs.
type Changes struct {
	LogLevel  bool
	Providers bool
	// Restart names sections that only take effect after a restart.
	Restart []string
}

// Any reports whether anything changed.
func (c Changes) Any() bool {
	return c.LogLevel || c.Providers || len(c.Restart) > 0
}

// Diff compares old and new section by section. The log level and the
// provider seed map are applied live; every other section needs a restart.
func Diff(old, new *Config) Changes {
	var c Changes
	if old == nil || new == nil {
		return c
	}
	c.LogLevel = old.Server.LogLevel != new.Server.LogLevel
	c.Providers = !reflect.DeepEqual(old.Providers, new.Providers)

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"log", old.Log, new.Log},
		{"auth", old.Auth, new.Auth},
		{"store", old.Store, new.Store},
		{"generation", old.Generation, new.Generation},
		{"rate_limit", old.RateLimit, new.RateLimit},
		{"billing", old.Billing, new.Billing},
		{"tracing", old.Tracing, new.Tracing},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			c.Restart = append(c.Restart, s.name)
		}
	}
	return c
}

// OnReload is called after a successful reload with the previous config,
// the new one and what changed between them.
type OnReload func(old, new *Config, changes Changes)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	filePath  string
	logger    zerolog.Logger

	mu        sync.Mutex
	callbacks []OnReload

	done      chan struct{}
	closeOnce sync.Once
}

// Watch starts watching filePath. Each change is re-loaded and validated;
// an invalid file is logged and the previous config stays current.
func Watch(filePath string, logger zerolog.Logger) (*Watcher, error) {
	if filePath == "" {
		return nil, fmt.Errorf("config watcher: file path must not be empty")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("config watcher: resolving path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: creating fsnotify watcher: %w", err)
	}

	// Editors save via write-tmp-then-rename, so watch the directory.
	dir := filepath.Dir(absPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config watcher: watching directory %s: %w", dir, err)
	}

	w := &Watcher{
		fsWatcher: fsw,
		filePath:  absPath,
		logger:    logger.With().Str("component", "config").Logger(),
		done:      make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers fn for every later reload.
func (w *Watcher) OnChange(fn OnReload) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	old := Get()
	newCfg, err := Load(w.filePath)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.filePath).Msg("config reload failed, keeping previous config")
		return
	}

	changes := Diff(old, newCfg)
	if !changes.Any() {
		return
	}
	if len(changes.Restart) > 0 {
		w.logger.Warn().Strs("sections", changes.Restart).Msg("changed config sections take effect after restart")
	}

	w.mu.Lock()
	cbs := make([]OnReload, len(w.callbacks))
	copy(cbs, w.callbacks)
	w.mu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error().Interface("panic", r).Msg("config reload callback panicked")
				}
			}()
			cb(old, newCfg, changes)
		}()
	}
}
