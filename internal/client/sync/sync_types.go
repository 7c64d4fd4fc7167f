package sync

import (
	"context"

	"github.com/openmined/themesync/internal/theme"
)

type OpType string

const (
	OpWriteRemote  OpType = "WriteRemote"
	OpWriteLocal   OpType = "WriteLocal"
	OpDeleteRemote OpType = "DeleteRemote"
	OpDeleteLocal  OpType = "DeleteLocal"
)

// RemoteStore is the remote theme. The session credentials are bound when an
// implementation is constructed.
type RemoteStore interface {
	FetchChecksums(ctx context.Context, themeID int64) ([]theme.Checksum, error)
	// FetchAsset returns nil, nil when the asset does not exist.
	FetchAsset(ctx context.Context, themeID int64, key string) (*theme.Asset, error)
	// DeleteAsset succeeds when the asset does not exist.
	DeleteAsset(ctx context.Context, themeID int64, key string) error
	UploadAsset(ctx context.Context, themeID int64, asset *theme.Asset) error
}

// LocalStore is the local theme directory. Each call is atomic with respect
// to the checksums it records.
type LocalStore interface {
	Assets() map[string]theme.Checksum
	Checksum(key string) (string, bool)
	// Read returns the content of key and refreshes its recorded checksum.
	// A missing file clears the record and returns an error wrapping fs.ErrNotExist.
	Read(key string) ([]byte, error)
	Write(asset *theme.Asset) error
	// Delete succeeds when the file does not exist.
	Delete(key string) error
}

type UploadOptions struct {
	// NoDelete keeps remote assets that are absent locally.
	NoDelete bool
	// Keys restricts the upload to the given keys. Empty means every local asset.
	Keys []string
}

type Uploader interface {
	UploadTheme(ctx context.Context, t theme.Theme, checksums []theme.Checksum, store LocalStore, opts UploadOptions) error
}

// KeyFilter restricts the keys taking part in a sync.
type KeyFilter interface {
	Match(key string) bool
}

// Partitions groups the keys that differ between the remote and local theme.
// Keys present on both sides with equal checksums are left out. Each slice is
// sorted by key.
type Partitions struct {
	LocalOnly   []theme.Checksum
	RemoteOnly  []theme.Checksum
	Conflicting []theme.Checksum
}

func (p Partitions) Empty() bool {
	return len(p.LocalOnly) == 0 && len(p.RemoteOnly) == 0 && len(p.Conflicting) == 0
}

// Plan is the set of actions chosen for a reconciliation.
type Plan struct {
	LocalFilesToDelete  []string
	FilesToDownload     []string
	FilesToUpload       []string
	RemoteFilesToDelete []string
}

func (p Plan) Empty() bool {
	return len(p.LocalFilesToDelete) == 0 &&
		len(p.FilesToDownload) == 0 &&
		len(p.FilesToUpload) == 0 &&
		len(p.RemoteFilesToDelete) == 0
}
