package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/openmined/themesync/internal/theme"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

type ResultStatus string

const (
	ResultOK      ResultStatus = "ok"
	ResultSkipped ResultStatus = "skipped"
	ResultFailed  ResultStatus = "failed"
)

// Result is the outcome of one operation on one key.
type Result struct {
	Op     OpType
	Key    string
	Status ResultStatus
	Err    error
}

// BatchResult collects the outcomes of a batch. It is safe for concurrent use.
type BatchResult struct {
	mu      sync.Mutex
	results []Result
}

func (b *BatchResult) add(r Result) {
	b.mu.Lock()
	b.results = append(b.results, r)
	b.mu.Unlock()
}

// Results returns every outcome ordered by op and key.
func (b *BatchResult) Results() []Result {
	b.mu.Lock()
	out := slices.Clone(b.results)
	b.mu.Unlock()

	slices.SortFunc(out, func(a, b Result) int {
		if c := strings.Compare(string(a.Op), string(b.Op)); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

func (b *BatchResult) Count(status ResultStatus) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, r := range b.results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed operation, or returns nil.
func (b *BatchResult) Err() error {
	var errs []error
	for _, r := range b.Results() {
		if r.Status == ResultFailed {
			errs = append(errs, fmt.Errorf("%s %s: %w", r.Op, r.Key, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Executor applies a Plan. All operations run concurrently in one bounded
// group and a failure never cancels its siblings.
type Executor struct {
	remote      RemoteStore
	local       LocalStore
	uploader    Uploader
	concurrency int
}

func NewExecutor(remote RemoteStore, local LocalStore, uploader Uploader, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Executor{
		remote:      remote,
		local:       local,
		uploader:    uploader,
		concurrency: concurrency,
	}
}

// Execute runs the plan against the theme. remoteChecksums is the remote
// listing the plan was built from.
func (e *Executor) Execute(ctx context.Context, t theme.Theme, remoteChecksums []theme.Checksum, plan *Plan) *BatchResult {
	result := &BatchResult{}
	if plan == nil || plan.Empty() {
		return result
	}

	tStart := time.Now()

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for _, key := range plan.LocalFilesToDelete {
		g.Go(func() error {
			result.add(e.deleteLocal(key))
			return nil
		})
	}

	for _, key := range plan.FilesToDownload {
		g.Go(func() error {
			result.add(e.download(ctx, t.ID, key))
			return nil
		})
	}

	for _, key := range plan.RemoteFilesToDelete {
		g.Go(func() error {
			result.add(e.deleteRemote(ctx, t.ID, key))
			return nil
		})
	}

	if len(plan.FilesToUpload) > 0 {
		g.Go(func() error {
			e.upload(ctx, t, remoteChecksums, plan.FilesToUpload, result)
			return nil
		})
	}

	_ = g.Wait()

	slog.Info("reconcile",
		"localDeletes", len(plan.LocalFilesToDelete),
		"downloads", len(plan.FilesToDownload),
		"remoteDeletes", len(plan.RemoteFilesToDelete),
		"uploads", len(plan.FilesToUpload),
		"skipped", result.Count(ResultSkipped),
		"failed", result.Count(ResultFailed),
		"took", time.Since(tStart),
	)
	return result
}

func (e *Executor) deleteLocal(key string) Result {
	if err := e.local.Delete(key); err != nil {
		slog.Error("sync", "op", OpDeleteLocal, "key", key, "error", err)
		return Result{Op: OpDeleteLocal, Key: key, Status: ResultFailed, Err: err}
	}
	slog.Info("sync", "op", OpDeleteLocal, "key", key)
	return Result{Op: OpDeleteLocal, Key: key, Status: ResultOK}
}

func (e *Executor) download(ctx context.Context, themeID int64, key string) Result {
	status, err := fetchAndWrite(ctx, e.remote, e.local, themeID, key)
	if err != nil {
		slog.Error("sync", "op", OpWriteLocal, "key", key, "error", err)
		return Result{Op: OpWriteLocal, Key: key, Status: ResultFailed, Err: err}
	}
	if status == ResultSkipped {
		slog.Debug("sync", "op", OpWriteLocal, "key", key, "skipped", "remote asset missing")
	} else {
		slog.Info("sync", "op", OpWriteLocal, "key", key)
	}
	return Result{Op: OpWriteLocal, Key: key, Status: status}
}

func (e *Executor) deleteRemote(ctx context.Context, themeID int64, key string) Result {
	if err := e.remote.DeleteAsset(ctx, themeID, key); err != nil {
		slog.Error("sync", "op", OpDeleteRemote, "key", key, "error", err)
		return Result{Op: OpDeleteRemote, Key: key, Status: ResultFailed, Err: err}
	}
	slog.Info("sync", "op", OpDeleteRemote, "key", key)
	return Result{Op: OpDeleteRemote, Key: key, Status: ResultOK}
}

func (e *Executor) upload(ctx context.Context, t theme.Theme, remoteChecksums []theme.Checksum, keys []string, result *BatchResult) {
	err := e.uploader.UploadTheme(ctx, t, remoteChecksums, e.local, UploadOptions{NoDelete: true, Keys: keys})

	var uploadErr *UploadError
	perKey := errors.As(err, &uploadErr)

	for _, key := range keys {
		keyErr := err
		if perKey {
			keyErr = uploadErr.Failures[key]
		}
		if keyErr != nil {
			slog.Error("sync", "op", OpWriteRemote, "key", key, "error", keyErr)
			result.add(Result{Op: OpWriteRemote, Key: key, Status: ResultFailed, Err: keyErr})
			continue
		}
		result.add(Result{Op: OpWriteRemote, Key: key, Status: ResultOK})
	}
}

// fetchAndWrite downloads key into the local store. A missing remote asset is
// reported as ResultSkipped.
func fetchAndWrite(ctx context.Context, remote RemoteStore, local LocalStore, themeID int64, key string) (ResultStatus, error) {
	asset, err := remote.FetchAsset(ctx, themeID, key)
	if err != nil {
		return ResultFailed, fmt.Errorf("fetch: %w", err)
	}
	if asset == nil {
		return ResultSkipped, nil
	}

	asset.Key = key
	if err := local.Write(asset); err != nil {
		return ResultFailed, fmt.Errorf("write: %w", err)
	}
	return ResultOK, nil
}
