// Package watcher turns filesystem changes into incremental build plans.
//
// FileWatcher is the event source. Each watched root owns a Machine that
// debounces its events; the Scheduler flushes due machines, maps the
// changed paths to tasks with a Mapper and hands the induced plan to the
// executor, one run at a time.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sitepipe/internal/logging"
)

// FileWatcher watches directory trees and emits filtered change events.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	roots   []string
	filters []FileFilter
	events  chan ChangeEvent
	logger  logging.Logger
	mutex   sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	Root    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// NewFileWatcher creates a new file watcher
func NewFileWatcher(logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan ChangeEvent, 256),
		logger:  logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddRoot watches root and every directory below it. Events carry the
// root that contains them.
func (fw *FileWatcher) AddRoot(root string) error {
	cleanRoot, err := validatePath(root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}
	absRoot, err := filepath.Abs(cleanRoot)
	if err != nil {
		return fmt.Errorf("getting absolute path: %w", err)
	}

	if err := fw.addRecursive(absRoot); err != nil {
		return err
	}

	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.roots = append(fw.roots, absRoot)
	// Longest first so nested roots win.
	sort.Slice(fw.roots, func(i, j int) bool { return len(fw.roots[i]) > len(fw.roots[j]) })
	return nil
}

// Roots returns the watched roots.
func (fw *FileWatcher) Roots() []string {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	return append([]string(nil), fw.roots...)
}

func (fw *FileWatcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// validatePath cleans a path and rejects directory traversal.
func validatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	cleanPath := filepath.Clean(path)
	for _, seg := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if seg == ".." {
			return "", fmt.Errorf("path contains directory traversal: %s", path)
		}
	}
	return cleanPath, nil
}

// Events returns the channel of filtered change events.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			change, keep := fw.convert(event)
			if !keep {
				continue
			}
			select {
			case fw.events <- change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) convert(event fsnotify.Event) (ChangeEvent, bool) {
	if event.Op == fsnotify.Chmod {
		return ChangeEvent{}, false
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return ChangeEvent{}, false
		}
	}

	var modTime time.Time
	var size int64
	if info, err := os.Stat(event.Name); err == nil {
		if info.IsDir() {
			if event.Op&fsnotify.Create == fsnotify.Create {
				if err := fw.addRecursive(event.Name); err != nil {
					fw.logger.Warn(context.Background(), err, "Failed to watch new directory", "path", event.Name)
				}
			}
			return ChangeEvent{}, false
		}
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	path := event.Name
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	return ChangeEvent{
		Type:    eventType,
		Path:    path,
		Root:    fw.rootOf(path),
		ModTime: modTime,
		Size:    size,
	}, true
}

func (fw *FileWatcher) rootOf(path string) string {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	for _, root := range fw.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

// NoHiddenFilter drops dotfiles and anything below a dot directory.
func NoHiddenFilter(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if len(seg) > 1 && strings.HasPrefix(seg, ".") && seg != ".." {
			return false
		}
	}
	return true
}

// NoEditorTempFilter drops swap, backup and lock files written by editors.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#") || base == "4913" {
		return false
	}
	switch filepath.Ext(base) {
	case ".swp", ".swx", ".swo", ".tmp", ".bak":
		return false
	}
	return true
}
