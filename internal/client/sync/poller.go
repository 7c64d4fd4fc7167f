package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/openmined/themesync/internal/theme"
	"golang.org/x/sync/errgroup"
)

const DefaultPollInterval = 3000 * time.Millisecond

type State string

const (
	StateReconciling    State = "reconciling"
	StateIdle           State = "idle"
	StatePolling        State = "polling"
	StateApplying       State = "applying"
	StateErrorRecovered State = "error_recovered"
)

type PollerConfig struct {
	Theme       theme.Theme
	Remote      RemoteStore
	Local       LocalStore
	Reporter    Reporter
	Interval    time.Duration
	Concurrency int
	// OnError receives the error of every failed cycle, including *ConflictError.
	OnError func(error)
}

// Status is a snapshot of the poller.
type Status struct {
	State     State     `json:"state"`
	Cycles    int64     `json:"cycles"`
	Baseline  int       `json:"baseline"`
	LastError string    `json:"lastError,omitempty"`
	LastSync  time.Time `json:"lastSync"`
	LastCycle time.Time `json:"lastCycle"`
}

// Poller pulls remote changes into the local store. The baseline is the
// remote listing of the last fully applied cycle. Cycles never overlap.
type Poller struct {
	cfg     PollerConfig
	trigger chan struct{}
	muTick  sync.Mutex

	mu        sync.RWMutex
	baseline  map[string]theme.Checksum
	state     State
	cycles    int64
	lastErr   error
	lastSync  time.Time
	lastCycle time.Time
}

func NewPoller(cfg PollerConfig, baseline []theme.Checksum) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}

	return &Poller{
		cfg:      cfg,
		trigger:  make(chan struct{}, 1),
		baseline: theme.IndexChecksums(baseline),
		state:    StateIdle,
		lastSync: time.Now(),
	}
}

// Run polls until ctx is cancelled. Errors go to OnError and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("poller start", "theme", p.cfg.Theme.ID, "interval", p.cfg.Interval, "baseline", len(p.Baseline()))

	// using a timer and not a ticker to avoid queued ticks when
	// a cycle takes more than the interval to complete
	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller stop", "cycles", p.Status().Cycles)
			return nil
		case <-p.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		if err := p.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) && p.cfg.OnError != nil {
			p.cfg.OnError(err)
		}
		timer.Reset(p.cfg.Interval)
	}
}

// TriggerNow asks Run to start a cycle without waiting for the timer.
// Requests made while one is pending are merged.
func (p *Poller) TriggerNow() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Tick runs one poll cycle. The baseline only advances when every change of
// the cycle was applied.
func (p *Poller) Tick(ctx context.Context) error {
	p.muTick.Lock()
	defer p.muTick.Unlock()

	p.setState(StatePolling)
	tStart := time.Now()

	latest, err := p.cfg.Remote.FetchChecksums(ctx, p.cfg.Theme.ID)
	if err != nil {
		return p.fail(fmt.Errorf("fetch checksums: %w", err))
	}

	changed, deleted := p.diff(latest)
	if len(changed) == 0 && len(deleted) == 0 {
		p.succeed(latest)
		return nil
	}

	if err := GuardConflicts(p.cfg.Local, changed); err != nil {
		return p.fail(err)
	}

	p.setState(StateApplying)

	var mu sync.Mutex
	var errs []error
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for _, c := range changed {
		g.Go(func() error {
			status, err := fetchAndWrite(ctx, p.cfg.Remote, p.cfg.Local, p.cfg.Theme.ID, c.Key)
			switch {
			case err != nil:
				slog.Error("sync", "op", OpWriteLocal, "key", c.Key, "error", err)
				fail(fmt.Errorf("%s %s: %w", OpWriteLocal, c.Key, err))
			case status == ResultOK:
				slog.Info("sync", "op", OpWriteLocal, "key", c.Key)
				p.cfg.Reporter.Synced(ReportGet, c.Key)
			}
			return nil
		})
	}

	for _, key := range deleted {
		g.Go(func() error {
			if err := p.cfg.Local.Delete(key); err != nil {
				slog.Error("sync", "op", OpDeleteLocal, "key", key, "error", err)
				fail(fmt.Errorf("%s %s: %w", OpDeleteLocal, key, err))
				return nil
			}
			slog.Info("sync", "op", OpDeleteLocal, "key", key)
			p.cfg.Reporter.Synced(ReportRemove, key)
			return nil
		})
	}

	_ = g.Wait()

	if len(errs) > 0 {
		return p.fail(errors.Join(errs...))
	}

	p.succeed(latest)
	slog.Info("poll", "changed", len(changed), "deleted", len(deleted), "took", time.Since(tStart))
	return nil
}

// diff returns the keys of latest that are new or changed against the
// baseline, in listing order, and the baseline keys missing from latest.
func (p *Poller) diff(latest []theme.Checksum) (changed []theme.Checksum, deleted []string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	latestIdx := theme.IndexChecksums(latest)
	for _, c := range latest {
		if latestIdx[c.Key] != c {
			// superseded by a later duplicate
			continue
		}
		if prev, ok := p.baseline[c.Key]; !ok || prev.Checksum != c.Checksum {
			changed = append(changed, c)
		}
	}

	for key := range p.baseline {
		if _, ok := latestIdx[key]; !ok {
			deleted = append(deleted, key)
		}
	}
	slices.Sort(deleted)

	return changed, deleted
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Poller) succeed(latest []theme.Checksum) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.baseline = theme.IndexChecksums(latest)
	p.state = StateIdle
	p.cycles++
	p.lastErr = nil
	p.lastSync = time.Now()
	p.lastCycle = p.lastSync
}

func (p *Poller) fail(err error) error {
	p.mu.Lock()
	p.state = StateErrorRecovered
	p.cycles++
	p.lastErr = err
	p.lastCycle = time.Now()
	p.mu.Unlock()

	if IsConflict(err) {
		slog.Error("poll aborted", "error", err)
	} else if !errors.Is(err, context.Canceled) {
		slog.Warn("poll failed, retrying next cycle", "error", err)
	}

	p.setState(StateIdle)
	return err
}

// Baseline returns a copy of the current baseline.
func (p *Poller) Baseline() map[string]theme.Checksum {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.baseline)
}

func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{
		State:     p.state,
		Cycles:    p.cycles,
		Baseline:  len(p.baseline),
		LastSync:  p.lastSync,
		LastCycle: p.lastCycle,
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}
