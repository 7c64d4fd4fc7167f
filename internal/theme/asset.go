// Package theme holds the value types shared by the local theme directory and
// the remote theme store.
package theme

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"time"
)

// Theme is the remote collection of assets being synchronized.
type Theme struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Checksum is the lightweight projection of an Asset returned by checksum listings.
type Checksum struct {
	Key      string `json:"key"`
	Checksum string `json:"checksum"`
}

// Asset is one named file of a theme.
type Asset struct {
	Key        string     `json:"key"`
	Checksum   string     `json:"checksum,omitempty"`
	Value      string     `json:"value,omitempty"`
	Attachment string     `json:"attachment,omitempty"` // base64 encoded binary content
	Size       int64      `json:"size,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// NewAsset builds an asset from raw content. Text content is stored in Value,
// anything else is base64 encoded into Attachment.
func NewAsset(key string, content []byte) *Asset {
	a := &Asset{
		Key:      key,
		Checksum: ChecksumOf(content),
		Size:     int64(len(content)),
	}
	if IsText(content) {
		a.Value = string(content)
	} else {
		a.Attachment = base64.StdEncoding.EncodeToString(content)
	}
	return a
}

// Bytes returns the raw content of the asset.
func (a *Asset) Bytes() ([]byte, error) {
	if a.Attachment != "" {
		b, err := base64.StdEncoding.DecodeString(a.Attachment)
		if err != nil {
			return nil, fmt.Errorf("decode attachment %s: %w", a.Key, err)
		}
		return b, nil
	}
	return []byte(a.Value), nil
}

// ChecksumOf returns the lowercase hex md5 of content.
func ChecksumOf(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}
