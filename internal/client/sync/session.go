package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/openmined/themesync/internal/theme"
)

var (
	ErrNoRemoteStore = errors.New("sync: remote store missing")
	ErrNoLocalStore  = errors.New("sync: local store missing")
	ErrNoPrompter    = errors.New("sync: prompter missing")
)

type SessionConfig struct {
	Theme    theme.Theme
	Remote   RemoteStore
	Local    LocalStore
	Prompter Prompter
	// Uploader defaults to a BulkUploader on Remote.
	Uploader Uploader
	Reporter Reporter
	// Filter hides remote and local keys from the session when set.
	Filter      KeyFilter
	Interval    time.Duration
	Concurrency int
	OnError     func(error)
}

// Session reconciles a local theme with its remote once, then keeps pulling
// remote changes.
type Session struct {
	cfg      SessionConfig
	remote   RemoteStore
	executor *Executor

	mu     sync.RWMutex
	poller *Poller
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Remote == nil {
		return nil, ErrNoRemoteStore
	}
	if cfg.Local == nil {
		return nil, ErrNoLocalStore
	}
	if cfg.Prompter == nil {
		return nil, ErrNoPrompter
	}

	remote := cfg.Remote
	if cfg.Filter != nil {
		remote = &filteredRemote{RemoteStore: remote, filter: cfg.Filter}
	}
	if cfg.Uploader == nil {
		cfg.Uploader = NewBulkUploader(remote, cfg.Concurrency)
	}

	return &Session{
		cfg:      cfg,
		remote:   remote,
		executor: NewExecutor(remote, cfg.Local, cfg.Uploader, cfg.Concurrency),
	}, nil
}

// Reconcile classifies the differences between both sides, asks the prompter
// how to resolve them and applies the answers.
func (s *Session) Reconcile(ctx context.Context) (*BatchResult, error) {
	remote, err := s.remote.FetchChecksums(ctx, s.cfg.Theme.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch checksums: %w", err)
	}

	local := s.localAssets()
	parts := Classify(remote, local)
	slog.Info("classified",
		"remote", len(remote),
		"local", len(local),
		"localOnly", len(parts.LocalOnly),
		"remoteOnly", len(parts.RemoteOnly),
		"conflicting", len(parts.Conflicting),
	)

	if parts.Empty() {
		return &BatchResult{}, nil
	}

	plan, err := ResolveStrategies(ctx, parts, s.cfg.Prompter)
	if err != nil {
		return nil, err
	}

	result := s.executor.Execute(ctx, s.cfg.Theme, remote, plan)
	return result, result.Err()
}

// Run reconciles, then polls until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if _, err := s.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	baseline, err := s.remote.FetchChecksums(ctx, s.cfg.Theme.ID)
	if err != nil {
		return fmt.Errorf("fetch baseline: %w", err)
	}

	poller := NewPoller(PollerConfig{
		Theme:       s.cfg.Theme,
		Remote:      s.remote,
		Local:       s.cfg.Local,
		Reporter:    s.cfg.Reporter,
		Interval:    s.cfg.Interval,
		Concurrency: s.cfg.Concurrency,
		OnError:     s.cfg.OnError,
	}, baseline)

	s.mu.Lock()
	s.poller = poller
	s.mu.Unlock()

	return poller.Run(ctx)
}

// Status reports StateReconciling until polling starts.
func (s *Session) Status() Status {
	s.mu.RLock()
	poller := s.poller
	s.mu.RUnlock()

	if poller == nil {
		return Status{State: StateReconciling}
	}
	return poller.Status()
}

// TriggerNow requests an early poll. It returns false before polling starts.
func (s *Session) TriggerNow() bool {
	s.mu.RLock()
	poller := s.poller
	s.mu.RUnlock()

	if poller == nil {
		return false
	}
	poller.TriggerNow()
	return true
}

func (s *Session) localAssets() map[string]theme.Checksum {
	assets := s.cfg.Local.Assets()
	if s.cfg.Filter == nil {
		return assets
	}
	assets = maps.Clone(assets)
	maps.DeleteFunc(assets, func(key string, _ theme.Checksum) bool {
		return !s.cfg.Filter.Match(key)
	})
	return assets
}

// filteredRemote hides remote checksums rejected by the filter.
type filteredRemote struct {
	RemoteStore
	filter KeyFilter
}

func (r *filteredRemote) FetchChecksums(ctx context.Context, themeID int64) ([]theme.Checksum, error) {
	checksums, err := r.RemoteStore.FetchChecksums(ctx, themeID)
	if err != nil {
		return nil, err
	}

	out := make([]theme.Checksum, 0, len(checksums))
	for _, c := range checksums {
		if r.filter.Match(c.Key) {
			out = append(out, c)
		}
	}
	return out, nil
}
