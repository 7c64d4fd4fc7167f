package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/themesync/internal/utils"
)

const (
	metadataDir   = ".themesync"
	lockFile      = "themesync.lock"
	cacheFile     = "checksums.db"
	ignoreFile    = ".themeignore"
	dirPermission = 0o755
)

var (
	ErrWorkspaceLocked = errors.New("theme directory locked by another process")
)

// Workspace is a local theme directory plus the metadata themesync keeps next to it.
type Workspace struct {
	Root        string
	MetadataDir string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	meta := filepath.Join(root, metadataDir)
	return &Workspace{
		Root:        root,
		MetadataDir: meta,
		flock:       flock.New(filepath.Join(meta, lockFile)),
	}, nil
}

// Setup creates the theme directory layout and takes the workspace lock.
func (w *Workspace) Setup() error {
	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace", "root", w.Root)

	for _, dir := range ThemeDirs {
		if err := utils.EnsureDir(filepath.Join(w.Root, dir)); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func (w *Workspace) Lock() error {
	if err := os.MkdirAll(w.MetadataDir, dirPermission); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.MetadataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// only the process holding the lock removes the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// ChecksumCachePath is the sqlite file caching local checksums between runs.
func (w *Workspace) ChecksumCachePath() string {
	return filepath.Join(w.MetadataDir, cacheFile)
}

// IgnoreFilePath is the optional gitignore-style file excluding keys from sync.
func (w *Workspace) IgnoreFilePath() string {
	return filepath.Join(w.Root, ignoreFile)
}
