// Package watch reports batches of changed source files
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period before a batch is delivered
const DefaultDebounce = 150 * time.Millisecond

// Options configures a Watcher
type Options struct {
	// Patterns select files by base name; "**/*.ext" matches at any depth
	Patterns []string
	// Exclude rejects base names; entries ending in "/" reject whole directories
	Exclude  []string
	Debounce time.Duration
	Logger   zerolog.Logger
}

// Watcher watches directory trees and calls onChange once per batch of
// matching changes. Calls happen sequentially on the Run goroutine.
type Watcher struct {
	watcher  *fsnotify.Watcher
	patterns []string
	exclude  []string
	debounce time.Duration
	logger   zerolog.Logger
	onChange func(paths []string)
}

// New creates a watcher. Nothing is watched until AddDirectory.
func New(opts Options, onChange func(paths []string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		watcher:  fsw,
		patterns: opts.Patterns,
		exclude:  opts.Exclude,
		debounce: debounce,
		logger:   opts.Logger.With().Str("component", "watch").Logger(),
		onChange: onChange,
	}, nil
}

// AddDirectory watches dir and every directory below it that is not excluded
func (w *Watcher) AddDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.excludedDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		return nil
	})
}

// Run delivers batches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]bool)
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}

			if event.Op.Has(fsnotify.Create) && w.isNewDir(event.Name) {
				if err := w.AddDirectory(event.Name); err != nil {
					w.logger.Warn().Err(err).Str("path", event.Name).Msg("cannot watch new directory")
				}
				continue
			}
			if event.Op == fsnotify.Chmod || !w.Matches(event.Name) {
				continue
			}

			w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("change")
			pending[event.Name] = true
			fire = time.After(w.debounce)

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			w.onChange(paths)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

// Matches reports whether a change to path should trigger a batch
func (w *Watcher) Matches(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range w.exclude {
		if strings.HasSuffix(pattern, "/") {
			if inDir(path, strings.TrimSuffix(pattern, "/")) {
				return false
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}

	for _, pattern := range w.patterns {
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			pattern = rest
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) excludedDir(name string) bool {
	for _, pattern := range w.exclude {
		if dir, ok := strings.CutSuffix(pattern, "/"); ok && dir == name {
			return true
		}
	}
	return false
}

func (w *Watcher) isNewDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// inDir reports whether any directory component of path is name
func inDir(path, name string) bool {
	parts := strings.Split(filepath.ToSlash(filepath.Dir(path)), "/")
	for _, p := range parts {
		if p == name {
			return true
		}
	}
	return false
}
