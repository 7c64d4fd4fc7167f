package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStrategies_Mapping(t *testing.T) {
	parts := Partitions{
		LocalOnly:   cs("assets/local.js", "1"),
		RemoteOnly:  cs("assets/remote.js", "2"),
		Conflicting: cs("assets/both.js", "3"),
	}

	cases := []struct {
		name    string
		answers map[PartitionKind]Strategy
		want    Plan
	}{
		{
			name: "keep remote everywhere",
			answers: map[PartitionKind]Strategy{
				PartitionLocalOnly:   StrategyKeepRemote,
				PartitionRemoteOnly:  StrategyKeepRemote,
				PartitionConflicting: StrategyKeepRemote,
			},
			want: Plan{
				LocalFilesToDelete: []string{"assets/local.js"},
				FilesToDownload:    []string{"assets/remote.js", "assets/both.js"},
			},
		},
		{
			name: "keep local everywhere",
			answers: map[PartitionKind]Strategy{
				PartitionLocalOnly:   StrategyKeepLocal,
				PartitionRemoteOnly:  StrategyKeepLocal,
				PartitionConflicting: StrategyKeepLocal,
			},
			want: Plan{
				FilesToUpload:       []string{"assets/local.js", "assets/both.js"},
				RemoteFilesToDelete: []string{"assets/remote.js"},
			},
		},
		{
			name: "mixed",
			answers: map[PartitionKind]Strategy{
				PartitionLocalOnly:   StrategyKeepLocal,
				PartitionRemoteOnly:  StrategyKeepRemote,
				PartitionConflicting: StrategyKeepRemote,
			},
			want: Plan{
				FilesToUpload:   []string{"assets/local.js"},
				FilesToDownload: []string{"assets/remote.js", "assets/both.js"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prompter := &answerPrompter{answers: tc.answers}
			plan, err := ResolveStrategies(context.Background(), parts, prompter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *plan)
			assert.Len(t, prompter.requests, 3)
		})
	}
}

func TestResolveStrategies_PromptContent(t *testing.T) {
	prompter := &answerPrompter{answers: map[PartitionKind]Strategy{PartitionConflicting: StrategyKeepRemote}}

	_, err := ResolveStrategies(context.Background(), Partitions{Conflicting: cs("a/1", "x", "a/2", "y")}, prompter)
	require.NoError(t, err)
	require.Len(t, prompter.requests, 1)

	req := prompter.requests[0]
	assert.Equal(t, "The files listed below differ between the local and remote versions. What would you like to do?", req.Title)
	assert.Equal(t, []string{"a/1", "a/2"}, req.Keys)
	assert.Equal(t, []Choice{
		{Label: "Keep the remote version", Strategy: StrategyKeepRemote},
		{Label: "Keep the local version", Strategy: StrategyKeepLocal},
	}, req.Choices)
}

func TestResolveStrategies_EmptyPartitionsSkipped(t *testing.T) {
	prompter := &answerPrompter{}

	plan, err := ResolveStrategies(context.Background(), Partitions{}, prompter)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Empty(t, prompter.requests)
}

func TestResolveStrategies_PrompterError(t *testing.T) {
	aborted := errors.New("user aborted")
	prompter := &answerPrompter{err: aborted}

	plan, err := ResolveStrategies(context.Background(), Partitions{RemoteOnly: cs("a/1", "1"), LocalOnly: cs("b/1", "1")}, prompter)
	assert.ErrorIs(t, err, aborted)
	assert.Nil(t, plan)
	assert.Len(t, prompter.requests, 1)
}

func TestResolveStrategies_InvalidAnswer(t *testing.T) {
	prompter := &answerPrompter{answers: map[PartitionKind]Strategy{PartitionRemoteOnly: "both"}}

	_, err := ResolveStrategies(context.Background(), Partitions{RemoteOnly: cs("a/1", "1")}, prompter)
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestFixedPrompter(t *testing.T) {
	s, err := FixedPrompter{Strategy: StrategyKeepLocal}.PromptStrategy(context.Background(), PromptRequest{})
	require.NoError(t, err)
	assert.Equal(t, StrategyKeepLocal, s)

	_, err = FixedPrompter{}.PromptStrategy(context.Background(), PromptRequest{})
	assert.ErrorIs(t, err, ErrStrategyRequired)
}

func TestParseStrategy(t *testing.T) {
	for _, in := range []string{"", "local", "remote"} {
		s, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, Strategy(in), s)
	}

	_, err := ParseStrategy("merge")
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}
