package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openmined/themesync/internal/client/themefs"
	"github.com/openmined/themesync/internal/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type prefixFilter string

func (p prefixFilter) Match(key string) bool {
	return !strings.HasPrefix(key, string(p))
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(SessionConfig{})
	assert.ErrorIs(t, err, ErrNoRemoteStore)

	_, err = NewSession(SessionConfig{Remote: &mockRemoteStore{}})
	assert.ErrorIs(t, err, ErrNoLocalStore)

	_, err = NewSession(SessionConfig{Remote: &mockRemoteStore{}, Local: newMemLocal(nil)})
	assert.ErrorIs(t, err, ErrNoPrompter)
}

// Local store empty, remote holds A with checksum "2", keep-remote chosen:
// A ends up locally with checksum "2" after exactly one fetch.
func TestSession_ReconcileKeepRemote(t *testing.T) {
	remote := &mockRemoteStore{}
	local := newMemLocal(nil)

	remote.On("FetchChecksums", mock.Anything, testTheme.ID).Return(cs("A", "2"), nil)
	remote.On("FetchAsset", mock.Anything, testTheme.ID, "A").
		Return(&theme.Asset{Key: "A", Checksum: "2", Value: "content of A"}, nil).Once()

	s, err := NewSession(SessionConfig{
		Theme:    testTheme,
		Remote:   remote,
		Local:    local,
		Prompter: FixedPrompter{Strategy: StrategyKeepRemote},
	})
	require.NoError(t, err)

	result, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count(ResultOK))

	sum, ok := local.Checksum("A")
	require.True(t, ok)
	assert.Equal(t, "2", sum)
	remote.AssertNumberOfCalls(t, "FetchAsset", 1)
}

func TestSession_ReconcileIsIdempotent(t *testing.T) {
	remote := newMemRemote(map[string]string{"templates/index.json": "{}", "assets/app.css": "css"})
	local := newMemLocal(map[string]string{"assets/app.css": "old", "snippets/local.liquid": "l"})

	s, err := NewSession(SessionConfig{
		Theme:    testTheme,
		Remote:   remote,
		Local:    local,
		Prompter: FixedPrompter{Strategy: StrategyKeepRemote},
	})
	require.NoError(t, err)

	_, err = s.Reconcile(context.Background())
	require.NoError(t, err)

	// a second pass finds nothing to ask about
	prompter := &answerPrompter{err: errors.New("must not prompt")}
	s.cfg.Prompter = prompter
	result, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Results())
	assert.Empty(t, prompter.requests)

	assert.Equal(t, []string{"snippets/local.liquid"}, local.deleted())
}

func TestSession_StrategyRequired(t *testing.T) {
	remote := newMemRemote(map[string]string{"a/1": "1"})
	local := newMemLocal(nil)

	s, err := NewSession(SessionConfig{Theme: testTheme, Remote: remote, Local: local, Prompter: FixedPrompter{}})
	require.NoError(t, err)

	_, err = s.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrStrategyRequired)
	assert.Empty(t, local.written())
	assert.Zero(t, remote.fetchCount("a/1"))

	err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrStrategyRequired)
}

func TestSession_FilterHidesKeys(t *testing.T) {
	remote := newMemRemote(map[string]string{"config/settings_data.json": "remote", "assets/a.js": "a"})
	local := newMemLocal(map[string]string{"config/settings_data.json": "local", "config/only_local.json": "x"})

	s, err := NewSession(SessionConfig{
		Theme:    testTheme,
		Remote:   remote,
		Local:    local,
		Prompter: FixedPrompter{Strategy: StrategyKeepRemote},
		Filter:   prefixFilter("config/"),
	})
	require.NoError(t, err)

	_, err = s.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"assets/a.js"}, local.written())
	assert.Empty(t, local.deleted())
	content, _ := local.content("config/settings_data.json")
	assert.Equal(t, "local", content)
}

func TestSession_RunPollsAfterReconcile(t *testing.T) {
	remote := newMemRemote(map[string]string{"sections/a.liquid": "a"})
	local := newMemLocal(nil)
	reporter := &recordingReporter{}

	s, err := NewSession(SessionConfig{
		Theme:    testTheme,
		Remote:   remote,
		Local:    local,
		Prompter: FixedPrompter{Strategy: StrategyKeepRemote},
		Reporter: reporter,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, StateReconciling, s.Status().State)
	assert.False(t, s.TriggerNow())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Status().Cycles >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.TriggerNow())

	// initial reconciliation is not reported, poll changes are
	remote.set("sections/b.liquid", "b")
	remote.remove("sections/a.liquid")
	require.Eventually(t, func() bool { return len(reporter.get()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"get sections/b.liquid", "remove sections/a.liquid"}, reporter.get())

	cancel()
	require.NoError(t, <-done)
}

// Full round trip against a real theme directory.
func TestSession_ThemeFileSystem(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "snippets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "snippets", "local.liquid"), []byte("local"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", "index.json"), []byte(`{"a":1}`), 0o644))

	tfs := themefs.New(root)
	require.NoError(t, tfs.Load(context.Background()))

	remote := newMemRemote(map[string]string{
		"templates/index.json":   `{"a":2}`,
		"sections/remote.liquid": "remote",
	})

	s, err := NewSession(SessionConfig{
		Theme:    testTheme,
		Remote:   remote,
		Local:    tfs,
		Prompter: FixedPrompter{Strategy: StrategyKeepLocal},
	})
	require.NoError(t, err)

	_, err = s.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "local", string(remote.assets["snippets/local.liquid"]))
	assert.Equal(t, `{"a":1}`, string(remote.assets["templates/index.json"]))
	assert.NotContains(t, remote.assets, "sections/remote.liquid")

	// both sides now agree
	checksums, _ := remote.FetchChecksums(context.Background(), testTheme.ID)
	assert.True(t, Classify(checksums, tfs.Assets()).Empty())

	// a remote edit is pulled by the poller
	p := NewPoller(PollerConfig{Theme: testTheme, Remote: remote, Local: tfs}, checksums)
	remote.set("templates/index.json", `{"a":3}`)
	require.NoError(t, p.Tick(context.Background()))

	got, err := os.ReadFile(filepath.Join(root, "templates", "index.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":3}`, string(got))

	// a local edit racing a remote edit is a conflict
	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", "index.json"), []byte(`{"a":"local"}`), 0o644))
	remote.set("templates/index.json", `{"a":4}`)
	assert.True(t, IsConflict(p.Tick(context.Background())))
}

// Remote keys outside the theme directories are invisible to both the
// reconcile and the poller, so they never block other changes.
func TestSession_StrayRemoteKeysIgnored(t *testing.T) {
	root := t.TempDir()
	tfs := themefs.New(root)
	require.NoError(t, tfs.Load(context.Background()))

	filter, err := themefs.NewFilter(nil, nil, nil)
	require.NoError(t, err)

	remote := newMemRemote(map[string]string{
		"README.md":            "stray",
		"templates/index.json": `{"a":1}`,
	})

	s, err := NewSession(SessionConfig{
		Theme:    testTheme,
		Remote:   remote,
		Local:    tfs,
		Prompter: FixedPrompter{Strategy: StrategyKeepRemote},
		Filter:   filter,
	})
	require.NoError(t, err)

	result, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count(ResultOK))
	assert.NoFileExists(t, filepath.Join(root, "README.md"))

	baseline, err := s.remote.FetchChecksums(context.Background(), testTheme.ID)
	require.NoError(t, err)
	p := NewPoller(PollerConfig{Theme: testTheme, Remote: s.remote, Local: tfs}, baseline)

	remote.set("README.md", "stray v2")
	remote.set("sections/new.liquid", "new")
	remote.set("templates/index.json", `{"a":2}`)
	for range 3 {
		require.NoError(t, p.Tick(context.Background()))
	}

	got, err := os.ReadFile(filepath.Join(root, "templates", "index.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))
	assert.FileExists(t, filepath.Join(root, "sections", "new.liquid"))

	assert.Len(t, p.Baseline(), 2)
	assert.NotContains(t, p.Baseline(), "README.md")
}
