// Package ingest consumes a batch directory written by an upstream uploader: it
// waits for the ready marker, lists the page images and removes them afterwards.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrReadyTimeout is returned when the ready marker does not appear in time.
	ErrReadyTimeout = errors.New("timeout waiting for images")
	// ErrNoImages is returned when a batch directory holds no page images.
	ErrNoImages = errors.New("no images found")
)

// pollInterval backs up the watcher on filesystems that do not deliver events.
const pollInterval = 500 * time.Millisecond

// WaitReady blocks until dir contains marker, timeout elapses or ctx is done. dir
// itself may not exist yet; it is polled for until it appears.
func WaitReady(ctx context.Context, dir, marker string, timeout time.Duration) error {
	path := filepath.Join(dir, marker)
	if exists(path) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watching, err := watch(watcher, dir)
	if err != nil {
		return err
	}

	// The marker may have appeared between the first check and Add.
	if exists(path) {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if filepath.Base(ev.Name) == marker && exists(path) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			return fmt.Errorf("watching %s: %w", dir, err)
		case <-ticker.C:
			if exists(path) {
				return nil
			}
			if !watching {
				if watching, err = watch(watcher, dir); err != nil {
					return err
				}
			}
		case <-timer.C:
			return fmt.Errorf("%w: %s after %s", ErrReadyTimeout, marker, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// watch adds dir to w. A directory that does not exist yet is not an error; the
// caller falls back to polling and tries again.
func watch(w *fsnotify.Watcher, dir string) (bool, error) {
	err := w.Add(dir)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Collect returns the regular files in dir matching any of the glob patterns,
// sorted by path. A file matching several patterns is listed once.
func Collect(dir string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	sort.Strings(files)
	return files, nil
}

// Cleanup removes the given files. Files that are already gone are ignored.
func Cleanup(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
