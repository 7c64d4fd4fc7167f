// Package themefs is the local side of a theme sync: a theme directory on disk
// with the checksum of every asset it holds.
package themefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/openmined/themesync/internal/client/workspace"
	"github.com/openmined/themesync/internal/theme"
	"github.com/openmined/themesync/internal/utils"
)

const filePermission = 0o644

var (
	ErrInvalidKey = errors.New("themefs: invalid asset key")
)

type fileState struct {
	checksum string
	size     int64
	modTime  time.Time
}

// ThemeFileSystem tracks the assets of a local theme directory. Each Read,
// Write and Delete is atomic with respect to the recorded checksums; file I/O
// for different keys may run concurrently.
type ThemeFileSystem struct {
	root   string
	filter *Filter
	cache  *ChecksumCache

	mu    sync.RWMutex
	files map[string]*fileState
}

type Option func(*ThemeFileSystem)

// WithFilter restricts the assets picked up by Load.
func WithFilter(f *Filter) Option {
	return func(t *ThemeFileSystem) {
		t.filter = f
	}
}

// WithChecksumCache reuses checksums of unchanged files across runs.
func WithChecksumCache(c *ChecksumCache) Option {
	return func(t *ThemeFileSystem) {
		t.cache = c
	}
}

func New(root string, opts ...Option) *ThemeFileSystem {
	t := &ThemeFileSystem{
		root:  root,
		files: make(map[string]*fileState),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ThemeFileSystem) Root() string {
	return t.root
}

// Load scans the theme directory and replaces the recorded checksums.
func (t *ThemeFileSystem) Load(ctx context.Context) error {
	cached := map[string]*CacheEntry{}
	if t.cache != nil {
		entries, err := t.cache.GetAll()
		if err != nil {
			slog.Warn("checksum cache unavailable", "error", err)
		} else {
			cached = entries
		}
	}

	tStart := time.Now()
	hashed := 0
	files := make(map[string]*fileState)

	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(t.root, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		key := workspace.NormPath(rel)
		if !workspace.IsValidKey(key) || !t.filter.Match(key) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("failed to get file info", "key", key, "error", err)
			return nil
		}

		if e, ok := cached[key]; ok && e.Size == info.Size() && e.ModTime == info.ModTime().UnixNano() {
			files[key] = &fileState{checksum: e.Checksum, size: e.Size, modTime: info.ModTime()}
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read file", "key", key, "error", err)
			return nil
		}
		hashed++
		state := &fileState{checksum: theme.ChecksumOf(content), size: info.Size(), modTime: info.ModTime()}
		files[key] = state
		t.cachePut(key, state)
		return nil
	})
	if err != nil {
		return fmt.Errorf("local scan failed: %w", err)
	}

	if t.cache != nil {
		keep := make(map[string]struct{}, len(files))
		for key := range files {
			keep[key] = struct{}{}
		}
		if err := t.cache.Prune(keep); err != nil {
			slog.Warn("failed to prune checksum cache", "error", err)
		}
	}

	t.mu.Lock()
	t.files = files
	t.mu.Unlock()

	slog.Debug("local theme loaded", "files", len(files), "hashed", hashed, "took", time.Since(tStart))
	return nil
}

// Assets returns a snapshot of the recorded checksums.
func (t *ThemeFileSystem) Assets() map[string]theme.Checksum {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]theme.Checksum, len(t.files))
	for key, f := range t.files {
		out[key] = theme.Checksum{Key: key, Checksum: f.checksum}
	}
	return out
}

// Checksum returns the recorded checksum for key.
func (t *ThemeFileSystem) Checksum(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	f, ok := t.files[key]
	if !ok {
		return "", false
	}
	return f.checksum, true
}

// Read returns the current content of key and refreshes its recorded
// checksum. A missing file clears the record and returns an error wrapping
// fs.ErrNotExist.
func (t *ThemeFileSystem) Read(key string) ([]byte, error) {
	path, err := t.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		t.forget(key)
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	defer f.Close()

	// stat before reading: an edit racing the read then shows up as a newer
	// mtime on the next Load instead of hiding behind the cached checksum
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	state := &fileState{
		checksum: theme.ChecksumOf(content),
		size:     int64(len(content)),
		modTime:  info.ModTime(),
	}

	t.mu.Lock()
	t.files[key] = state
	t.mu.Unlock()
	t.cachePut(key, state)

	return content, nil
}

// Write stores the asset content on disk and records its checksum.
func (t *ThemeFileSystem) Write(asset *theme.Asset) error {
	path, err := t.path(asset.Key)
	if err != nil {
		return err
	}

	content, err := asset.Bytes()
	if err != nil {
		return err
	}

	info, err := utils.WriteFileAtomic(path, content, filePermission)
	if err != nil {
		return fmt.Errorf("write %s: %w", asset.Key, err)
	}

	state := &fileState{
		checksum: theme.ChecksumOf(content),
		size:     int64(len(content)),
		modTime:  info.ModTime(),
	}

	t.mu.Lock()
	t.files[asset.Key] = state
	t.mu.Unlock()
	t.cachePut(asset.Key, state)

	return nil
}

// Delete removes key from disk. Deleting a missing key succeeds.
func (t *ThemeFileSystem) Delete(key string) error {
	path, err := t.path(key)
	if err != nil {
		return err
	}

	if err := utils.RemoveFile(path); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	// keep the top level theme dirs around
	top, _, _ := strings.Cut(key, "/")
	utils.PruneEmptyDirs(filepath.Join(t.root, top), filepath.Dir(path))

	t.forget(key)
	return nil
}

func (t *ThemeFileSystem) path(key string) (string, error) {
	if !workspace.IsValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(t.root, filepath.FromSlash(key)), nil
}

func (t *ThemeFileSystem) forget(key string) {
	t.mu.Lock()
	delete(t.files, key)
	t.mu.Unlock()

	if t.cache != nil {
		if err := t.cache.Delete(key); err != nil {
			slog.Debug("checksum cache delete", "key", key, "error", err)
		}
	}
}

func (t *ThemeFileSystem) cachePut(key string, state *fileState) {
	if t.cache == nil || state.modTime.IsZero() {
		return
	}
	err := t.cache.Put(&CacheEntry{
		Key:      key,
		Size:     state.size,
		ModTime:  state.modTime.UnixNano(),
		Checksum: state.checksum,
	})
	if err != nil {
		slog.Debug("checksum cache put", "key", key, "error", err)
	}
}
