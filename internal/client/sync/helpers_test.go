package sync

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sync"

	"github.com/openmined/themesync/internal/theme"
	"github.com/stretchr/testify/mock"
)

var testTheme = theme.Theme{ID: 1, Name: "Dawn", Role: "unpublished"}

// mockRemoteStore is a testify mock of RemoteStore.
type mockRemoteStore struct {
	mock.Mock
}

func (m *mockRemoteStore) FetchChecksums(ctx context.Context, themeID int64) ([]theme.Checksum, error) {
	args := m.Called(ctx, themeID)
	checksums, _ := args.Get(0).([]theme.Checksum)
	return checksums, args.Error(1)
}

func (m *mockRemoteStore) FetchAsset(ctx context.Context, themeID int64, key string) (*theme.Asset, error) {
	args := m.Called(ctx, themeID, key)
	asset, _ := args.Get(0).(*theme.Asset)
	return asset, args.Error(1)
}

func (m *mockRemoteStore) DeleteAsset(ctx context.Context, themeID int64, key string) error {
	return m.Called(ctx, themeID, key).Error(0)
}

func (m *mockRemoteStore) UploadAsset(ctx context.Context, themeID int64, asset *theme.Asset) error {
	return m.Called(ctx, themeID, asset).Error(0)
}

// mockUploader is a testify mock of Uploader.
type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) UploadTheme(ctx context.Context, t theme.Theme, checksums []theme.Checksum, store LocalStore, opts UploadOptions) error {
	return m.Called(ctx, t, checksums, store, opts).Error(0)
}

type uploadCall struct {
	theme     theme.Theme
	checksums []theme.Checksum
	store     LocalStore
	opts      UploadOptions
}

// recordingUploader records UploadTheme calls without touching the store.
type recordingUploader struct {
	mu    sync.Mutex
	calls []uploadCall
}

func (u *recordingUploader) UploadTheme(_ context.Context, t theme.Theme, checksums []theme.Checksum, store LocalStore, opts UploadOptions) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, uploadCall{theme: t, checksums: checksums, store: store, opts: opts})
	return nil
}

// memRemote is an in-memory remote theme. Checksums are md5 of the content.
type memRemote struct {
	mu           sync.Mutex
	assets       map[string][]byte
	fetchErr     error
	assetErrs    map[string]error
	fetchCalls   map[string]int
	uploads      []string
	remoteDelete []string
}

func newMemRemote(files map[string]string) *memRemote {
	r := &memRemote{
		assets:     map[string][]byte{},
		assetErrs:  map[string]error{},
		fetchCalls: map[string]int{},
	}
	for k, v := range files {
		r.assets[k] = []byte(v)
	}
	return r
}

func (r *memRemote) set(key, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[key] = []byte(content)
}

func (r *memRemote) remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assets, key)
}

func (r *memRemote) FetchChecksums(_ context.Context, _ int64) ([]theme.Checksum, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	out := make([]theme.Checksum, 0, len(r.assets))
	for k, v := range r.assets {
		out = append(out, theme.Checksum{Key: k, Checksum: theme.ChecksumOf(v)})
	}
	slices.SortFunc(out, func(a, b theme.Checksum) int {
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
	return out, nil
}

func (r *memRemote) FetchAsset(_ context.Context, _ int64, key string) (*theme.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchCalls[key]++
	if err := r.assetErrs[key]; err != nil {
		return nil, err
	}
	content, ok := r.assets[key]
	if !ok {
		return nil, nil
	}
	return theme.NewAsset(key, content), nil
}

func (r *memRemote) DeleteAsset(_ context.Context, _ int64, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.assetErrs[key]; err != nil {
		return err
	}
	delete(r.assets, key)
	r.remoteDelete = append(r.remoteDelete, key)
	return nil
}

func (r *memRemote) UploadAsset(_ context.Context, _ int64, asset *theme.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.assetErrs[asset.Key]; err != nil {
		return err
	}
	content, err := asset.Bytes()
	if err != nil {
		return err
	}
	r.assets[asset.Key] = content
	r.uploads = append(r.uploads, asset.Key)
	return nil
}

func (r *memRemote) fetchCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetchCalls[key]
}

type memFile struct {
	content  []byte
	checksum string
}

// memLocal is an in-memory LocalStore. files is what is "on disk", recorded
// holds the checksums the store knows about. edit changes a file behind the
// store's back.
type memLocal struct {
	mu       sync.Mutex
	files    map[string]memFile
	recorded map[string]string
	readErrs map[string]error
	writeErr map[string]error
	writes   []string
	deletes  []string
}

func newMemLocal(files map[string]string) *memLocal {
	l := &memLocal{
		files:    map[string]memFile{},
		recorded: map[string]string{},
		readErrs: map[string]error{},
		writeErr: map[string]error{},
	}
	for k, v := range files {
		f := memFile{content: []byte(v), checksum: theme.ChecksumOf([]byte(v))}
		l.files[k] = f
		l.recorded[k] = f.checksum
	}
	return l
}

func (l *memLocal) edit(key, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[key] = memFile{content: []byte(content), checksum: theme.ChecksumOf([]byte(content))}
}

func (l *memLocal) Assets() map[string]theme.Checksum {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]theme.Checksum, len(l.recorded))
	for k, v := range l.recorded {
		out[k] = theme.Checksum{Key: k, Checksum: v}
	}
	return out
}

func (l *memLocal) Checksum(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum, ok := l.recorded[key]
	return sum, ok
}

func (l *memLocal) Read(key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.readErrs[key]; err != nil {
		return nil, err
	}
	f, ok := l.files[key]
	if !ok {
		delete(l.recorded, key)
		return nil, fmt.Errorf("read %s: %w", key, fs.ErrNotExist)
	}
	l.recorded[key] = f.checksum
	return f.content, nil
}

func (l *memLocal) Write(asset *theme.Asset) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writeErr[asset.Key]; err != nil {
		return err
	}
	content, err := asset.Bytes()
	if err != nil {
		return err
	}
	sum := asset.Checksum
	if sum == "" {
		sum = theme.ChecksumOf(content)
	}
	l.files[asset.Key] = memFile{content: content, checksum: sum}
	l.recorded[asset.Key] = sum
	l.writes = append(l.writes, asset.Key)
	return nil
}

func (l *memLocal) Delete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.files, key)
	delete(l.recorded, key)
	l.deletes = append(l.deletes, key)
	return nil
}

func (l *memLocal) content(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.files[key]
	return string(f.content), ok
}

func (l *memLocal) deleted() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.deletes)
}

func (l *memLocal) written() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.writes)
}

// answerPrompter answers by partition kind and records every request.
type answerPrompter struct {
	mu       sync.Mutex
	answers  map[PartitionKind]Strategy
	err      error
	requests []PromptRequest
}

func (p *answerPrompter) PromptStrategy(_ context.Context, req PromptRequest) (Strategy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", p.err
	}
	return p.answers[req.Kind], nil
}

type recordingReporter struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingReporter) Synced(op ReportOp, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf("%s %s", op, key))
}

func (r *recordingReporter) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.lines)
}

func cs(pairs ...string) []theme.Checksum {
	out := make([]theme.Checksum, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, theme.Checksum{Key: pairs[i], Checksum: pairs[i+1]})
	}
	return out
}

func localMap(pairs ...string) map[string]theme.Checksum {
	return theme.IndexChecksums(cs(pairs...))
}
