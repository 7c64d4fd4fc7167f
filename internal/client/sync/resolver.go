package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/themesync/internal/theme"
)

type Strategy string

const (
	StrategyKeepLocal  Strategy = "local"
	StrategyKeepRemote Strategy = "remote"
)

var (
	ErrStrategyRequired = errors.New("sync: a strategy is required to reconcile without a terminal")
	ErrInvalidStrategy  = errors.New("sync: invalid strategy")
)

// ParseStrategy accepts "local", "remote" or an empty string.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyKeepLocal, StrategyKeepRemote:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

type PartitionKind string

const (
	PartitionLocalOnly   PartitionKind = "local_only"
	PartitionRemoteOnly  PartitionKind = "remote_only"
	PartitionConflicting PartitionKind = "conflicting"
)

type Choice struct {
	Label    string
	Strategy Strategy
}

// PromptRequest asks the user how to reconcile one partition.
type PromptRequest struct {
	Kind    PartitionKind
	Title   string
	Keys    []string
	Choices []Choice
}

type Prompter interface {
	PromptStrategy(ctx context.Context, req PromptRequest) (Strategy, error)
}

var (
	localOnlyPrompt = PromptRequest{
		Kind:  PartitionLocalOnly,
		Title: "The files listed below are only present locally. What would you like to do?",
		Choices: []Choice{
			{Label: "Delete files from the local directory", Strategy: StrategyKeepRemote},
			{Label: "Upload local files to the remote theme", Strategy: StrategyKeepLocal},
		},
	}
	remoteOnlyPrompt = PromptRequest{
		Kind:  PartitionRemoteOnly,
		Title: "The files listed below are only present on the remote theme. What would you like to do?",
		Choices: []Choice{
			{Label: "Download remote files to the local directory", Strategy: StrategyKeepRemote},
			{Label: "Delete files from the remote theme", Strategy: StrategyKeepLocal},
		},
	}
	conflictingPrompt = PromptRequest{
		Kind:  PartitionConflicting,
		Title: "The files listed below differ between the local and remote versions. What would you like to do?",
		Choices: []Choice{
			{Label: "Keep the remote version", Strategy: StrategyKeepRemote},
			{Label: "Keep the local version", Strategy: StrategyKeepLocal},
		},
	}
)

// ResolveStrategies asks the prompter once per non-empty partition and turns
// the answers into a plan. A prompter error aborts the resolution.
func ResolveStrategies(ctx context.Context, parts Partitions, prompter Prompter) (*Plan, error) {
	plan := &Plan{}

	if len(parts.LocalOnly) > 0 {
		strategy, err := ask(ctx, prompter, localOnlyPrompt, parts.LocalOnly)
		if err != nil {
			return nil, err
		}
		keys := theme.KeysOf(parts.LocalOnly)
		if strategy == StrategyKeepRemote {
			plan.LocalFilesToDelete = append(plan.LocalFilesToDelete, keys...)
		} else {
			plan.FilesToUpload = append(plan.FilesToUpload, keys...)
		}
	}

	if len(parts.RemoteOnly) > 0 {
		strategy, err := ask(ctx, prompter, remoteOnlyPrompt, parts.RemoteOnly)
		if err != nil {
			return nil, err
		}
		keys := theme.KeysOf(parts.RemoteOnly)
		if strategy == StrategyKeepRemote {
			plan.FilesToDownload = append(plan.FilesToDownload, keys...)
		} else {
			plan.RemoteFilesToDelete = append(plan.RemoteFilesToDelete, keys...)
		}
	}

	if len(parts.Conflicting) > 0 {
		strategy, err := ask(ctx, prompter, conflictingPrompt, parts.Conflicting)
		if err != nil {
			return nil, err
		}
		keys := theme.KeysOf(parts.Conflicting)
		if strategy == StrategyKeepRemote {
			plan.FilesToDownload = append(plan.FilesToDownload, keys...)
		} else {
			plan.FilesToUpload = append(plan.FilesToUpload, keys...)
		}
	}

	return plan, nil
}

func ask(ctx context.Context, prompter Prompter, tmpl PromptRequest, checksums []theme.Checksum) (Strategy, error) {
	req := tmpl
	req.Keys = theme.KeysOf(checksums)

	strategy, err := prompter.PromptStrategy(ctx, req)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", req.Kind, err)
	}
	if strategy != StrategyKeepLocal && strategy != StrategyKeepRemote {
		return "", fmt.Errorf("prompt %s: %w: %q", req.Kind, ErrInvalidStrategy, strategy)
	}

	slog.Info("strategy", "partition", req.Kind, "keys", len(req.Keys), "strategy", strategy)
	return strategy, nil
}

// FixedPrompter answers every prompt with the same strategy. With no strategy
// set it fails with ErrStrategyRequired.
type FixedPrompter struct {
	Strategy Strategy
}

func (p FixedPrompter) PromptStrategy(_ context.Context, _ PromptRequest) (Strategy, error) {
	if p.Strategy == "" {
		return "", ErrStrategyRequired
	}
	return p.Strategy, nil
}
