package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/openmined/themesync/internal/theme"
	"golang.org/x/sync/errgroup"
)

// UploadError reports the keys a bulk upload failed for.
type UploadError struct {
	Failures map[string]error
}

func (e *UploadError) Error() string {
	keys := make([]string, 0, len(e.Failures))
	for k := range e.Failures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("upload failed for %d asset(s): %s", len(keys), strings.Join(keys, ", "))
}

func (e *UploadError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

// BulkUploader pushes local assets to a RemoteStore.
type BulkUploader struct {
	remote      RemoteStore
	concurrency int
}

func NewBulkUploader(remote RemoteStore, concurrency int) *BulkUploader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &BulkUploader{remote: remote, concurrency: concurrency}
}

// UploadTheme uploads every selected local asset whose checksum differs from
// checksums. Assets are sent in dependency order: files first, then JSON
// templates and sections that may reference them, then config. Unless
// opts.NoDelete is set, remote assets absent locally are deleted afterwards.
func (u *BulkUploader) UploadTheme(ctx context.Context, t theme.Theme, checksums []theme.Checksum, store LocalStore, opts UploadOptions) error {
	remote := theme.IndexChecksums(checksums)

	keys := opts.Keys
	if len(keys) == 0 {
		for key := range store.Assets() {
			keys = append(keys, key)
		}
	}

	var mu sync.Mutex
	failures := map[string]error{}
	fail := func(key string, err error) {
		mu.Lock()
		failures[key] = err
		mu.Unlock()
	}

	for _, phase := range uploadPhases(keys) {
		var g errgroup.Group
		g.SetLimit(u.concurrency)

		for _, key := range phase {
			g.Go(func() error {
				if err := u.uploadOne(ctx, t.ID, key, remote, store); err != nil {
					slog.Error("sync", "op", OpWriteRemote, "key", key, "error", err)
					fail(key, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if !opts.NoDelete {
		local := store.Assets()
		for key := range remote {
			if _, ok := local[key]; ok {
				continue
			}
			if err := u.remote.DeleteAsset(ctx, t.ID, key); err != nil {
				slog.Error("sync", "op", OpDeleteRemote, "key", key, "error", err)
				fail(key, err)
				continue
			}
			slog.Info("sync", "op", OpDeleteRemote, "key", key)
		}
	}

	if len(failures) > 0 {
		return &UploadError{Failures: failures}
	}
	return nil
}

func (u *BulkUploader) uploadOne(ctx context.Context, themeID int64, key string, remote map[string]theme.Checksum, store LocalStore) error {
	content, err := store.Read(key)
	if err != nil {
		return err
	}

	sum, _ := store.Checksum(key)
	if r, ok := remote[key]; ok && sum != "" && r.Checksum == sum {
		slog.Debug("sync", "op", OpWriteRemote, "key", key, "skipped", "unchanged")
		return nil
	}

	if err := u.remote.UploadAsset(ctx, themeID, theme.NewAsset(key, content)); err != nil {
		return err
	}
	slog.Info("sync", "op", OpWriteRemote, "key", key)
	return nil
}

// uploadPhases groups keys by upload order, each group sorted by key.
func uploadPhases(keys []string) [][]string {
	var files, jsonFiles, config []string
	for _, key := range keys {
		switch {
		case strings.HasPrefix(key, "config/"):
			config = append(config, key)
		case path.Ext(key) == ".json" && !strings.HasPrefix(key, "locales/"):
			jsonFiles = append(jsonFiles, key)
		default:
			files = append(files, key)
		}
	}

	var phases [][]string
	for _, p := range [][]string{files, jsonFiles, config} {
		if len(p) > 0 {
			slices.Sort(p)
			phases = append(phases, p)
		}
	}
	return phases
}

var _ Uploader = (*BulkUploader)(nil)
var _ error = (*UploadError)(nil)
