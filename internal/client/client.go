package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/themesync/internal/blob"
	"github.com/openmined/themesync/internal/client/config"
	"github.com/openmined/themesync/internal/client/sync"
	"github.com/openmined/themesync/internal/client/themefs"
	"github.com/openmined/themesync/internal/client/workspace"
	"github.com/openmined/themesync/internal/theme"
	"github.com/openmined/themesync/internal/themesdk"
	"golang.org/x/sync/errgroup"
)

// RemoteTheme is a sync.RemoteStore that can also describe the theme itself.
type RemoteTheme interface {
	sync.RemoteStore
	FetchTheme(ctx context.Context, themeID int64) (*theme.Theme, error)
}

type Client struct {
	config    *config.Config
	workspace *workspace.Workspace
	remote    RemoteTheme
	prompter  sync.Prompter
	reporter  sync.Reporter
	closer    func()

	fs      *themefs.ThemeFileSystem
	cache   *themefs.ChecksumCache
	filter  *themefs.Filter
	theme   theme.Theme
	session *sync.Session
}

// New builds a client for a validated config. The remote backend is picked
// from config.Backend.
func New(ctx context.Context, cfg *config.Config, prompter sync.Prompter, reporter sync.Reporter) (*Client, error) {
	var (
		remote RemoteTheme
		closer = func() {}
	)

	switch cfg.Backend {
	case config.BackendS3:
		bucket, err := blob.NewThemeBucketWithS3Config(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create theme bucket: %w", err)
		}
		remote = bucket
	default:
		sdk, err := themesdk.New(&themesdk.Config{
			BaseURL:     cfg.StoreURL,
			AccessToken: cfg.AccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create sdk: %w", err)
		}
		remote = sdk
		closer = sdk.Close
	}

	return NewWithRemote(cfg, remote, prompter, reporter, closer)
}

// NewWithRemote builds a client on an existing remote store.
func NewWithRemote(cfg *config.Config, remote RemoteTheme, prompter sync.Prompter, reporter sync.Reporter, closer func()) (*Client, error) {
	ws, err := workspace.NewWorkspace(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	if closer == nil {
		closer = func() {}
	}

	return &Client{
		config:    cfg,
		workspace: ws,
		remote:    remote,
		prompter:  prompter,
		reporter:  reporter,
		closer:    closer,
	}, nil
}

// Reconcile runs the initial reconciliation only.
func (c *Client) Reconcile(ctx context.Context) (*sync.BatchResult, error) {
	if err := c.open(ctx, nil); err != nil {
		return nil, err
	}
	defer c.close()

	return c.session.Reconcile(ctx)
}

// Start reconciles, then polls the remote theme until ctx is cancelled. The
// control plane runs alongside when an address is configured. With the exit
// conflict policy a conflict stops the client and is returned.
func (c *Client) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	onError := func(err error) {
		if sync.IsConflict(err) && c.config.ConflictPolicy == config.ConflictPolicyExit {
			cancel(err)
			return
		}
		slog.Warn("sync cycle failed", "error", err)
	}

	if err := c.open(ctx, onError); err != nil {
		return err
	}
	defer c.close()

	slog.Info("themesync client start",
		"theme", c.theme.ID,
		"name", c.theme.Name,
		"path", c.workspace.Root,
		"backend", c.config.Backend,
	)
	slog.Debug("themesync client config", "config", c.config.String())

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return c.session.Run(egCtx)
	})

	if c.config.ControlPlane.Addr != "" {
		cps, err := NewControlPlaneServer(&c.config.ControlPlane, c.session, c.theme, c.workspace.Root)
		if err != nil {
			return fmt.Errorf("failed to create control plane: %w", err)
		}

		eg.Go(func() error {
			return cps.Start(egCtx)
		})
		eg.Go(func() error {
			<-egCtx.Done()
			return cps.Stop(context.WithoutCancel(egCtx))
		})
	}

	err := eg.Wait()
	if cause := context.Cause(ctx); sync.IsConflict(cause) {
		return cause
	}

	slog.Info("themesync client stop")
	return err
}

func (c *Client) open(ctx context.Context, onError func(error)) error {
	if err := c.workspace.Setup(); err != nil {
		return fmt.Errorf("failed to setup workspace: %w", err)
	}

	ok := false
	defer func() {
		if !ok {
			c.close()
		}
	}()

	cache, err := themefs.OpenChecksumCache(c.workspace.ChecksumCachePath())
	if err != nil {
		return fmt.Errorf("failed to open checksum cache: %w", err)
	}
	c.cache = cache

	ignore := themefs.NewIgnoreList(c.workspace.IgnoreFilePath())
	ignore.Load()

	filter, err := themefs.NewFilter(c.config.Only, c.config.Ignore, ignore)
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}
	c.filter = filter

	c.fs = themefs.New(c.workspace.Root, themefs.WithFilter(filter), themefs.WithChecksumCache(cache))
	if err := c.fs.Load(ctx); err != nil {
		return fmt.Errorf("failed to load theme directory: %w", err)
	}

	t, err := c.remote.FetchTheme(ctx, c.config.ThemeID)
	if err != nil {
		return fmt.Errorf("failed to fetch theme %d: %w", c.config.ThemeID, err)
	}
	c.theme = *t

	// a fixed strategy wins over interactive prompts; with neither, any
	// difference fails with sync.ErrStrategyRequired
	var strategyPrompter sync.Prompter = c.prompter
	if c.config.Strategy != "" || strategyPrompter == nil {
		strategy, _ := sync.ParseStrategy(c.config.Strategy)
		strategyPrompter = sync.FixedPrompter{Strategy: strategy}
	}

	session, err := sync.NewSession(sync.SessionConfig{
		Theme:       c.theme,
		Remote:      c.remote,
		Local:       c.fs,
		Prompter:    strategyPrompter,
		Reporter:    c.reporter,
		Filter:      filter,
		Interval:    c.config.PollInterval,
		Concurrency: c.config.Concurrency,
		OnError:     onError,
	})
	if err != nil {
		return fmt.Errorf("failed to create sync session: %w", err)
	}
	c.session = session

	ok = true
	return nil
}

func (c *Client) close() {
	var errs []error
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
		c.cache = nil
	}
	errs = append(errs, c.workspace.Unlock())
	c.closer()

	if err := errors.Join(errs...); err != nil {
		slog.Warn("client close", "error", err)
	}
}
