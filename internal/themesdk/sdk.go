// Package themesdk is the HTTP client of the remote theme store.
package themesdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/openmined/themesync/internal/theme"
	"github.com/openmined/themesync/internal/version"
)

const (
	themePath  = "/admin/api/{version}/themes/{id}.json"
	assetsPath = "/admin/api/{version}/themes/{id}/assets.json"
)

// ThemeSDK talks to the theme asset API of a store. The access token is bound
// when the client is created, so every call runs within that session.
type ThemeSDK struct {
	client     *req.Client
	apiVersion string
}

// New creates a new ThemeSDK client
func New(cfg *Config) (*ThemeSDK, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderAccessToken, cfg.AccessToken).
		SetCommonHeader(HeaderAPIVersion, cfg.APIVersion).
		SetCommonErrorResult(&APIError{}).
		SetCommonRetryCount(cfg.RetryCount).
		SetCommonRetryBackoffInterval(500*time.Millisecond, 5*time.Second).
		SetCommonRetryCondition(shouldRetry).
		SetCommonRetryHook(func(_ *req.Response, err error) {
			slog.Debug("themesdk retry", "error", err)
		}).
		OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			r.SetHeader(HeaderRequestID, uuid.NewString())
			return nil
		}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &ThemeSDK{
		client:     client,
		apiVersion: cfg.APIVersion,
	}, nil
}

func shouldRetry(resp *req.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}

func (s *ThemeSDK) request(ctx context.Context, themeID int64) *req.Request {
	return s.client.R().
		SetContext(ctx).
		SetPathParam("version", s.apiVersion).
		SetPathParam("id", strconv.FormatInt(themeID, 10))
}

// FetchTheme returns the metadata of a theme.
func (s *ThemeSDK) FetchTheme(ctx context.Context, themeID int64) (*theme.Theme, error) {
	if themeID <= 0 {
		return nil, ErrNoThemeID
	}

	var out themeResponse
	res, err := s.request(ctx, themeID).
		SetSuccessResult(&out).
		Get(themePath)

	if err := handleAPIError(res, err, "fetch theme"); err != nil {
		return nil, err
	}
	if out.Theme == nil {
		return nil, fmt.Errorf("fetch theme: empty response")
	}

	return out.Theme, nil
}

// FetchChecksums lists the key and checksum of every asset of a theme.
func (s *ThemeSDK) FetchChecksums(ctx context.Context, themeID int64) ([]theme.Checksum, error) {
	if themeID <= 0 {
		return nil, ErrNoThemeID
	}

	var out checksumsResponse
	res, err := s.request(ctx, themeID).
		SetQueryParam("fields", "key,checksum").
		SetSuccessResult(&out).
		Get(assetsPath)

	if err := handleAPIError(res, err, "fetch checksums"); err != nil {
		return nil, err
	}

	return out.Assets, nil
}

// FetchAsset returns an asset with its content. A missing asset yields nil, nil.
func (s *ThemeSDK) FetchAsset(ctx context.Context, themeID int64, key string) (*theme.Asset, error) {
	if themeID <= 0 {
		return nil, ErrNoThemeID
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	var out assetResponse
	res, err := s.request(ctx, themeID).
		SetQueryParam("asset[key]", key).
		SetSuccessResult(&out).
		Get(assetsPath)

	if err := handleAPIError(res, err, "fetch asset "+key); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return out.Asset, nil
}

// DeleteAsset removes an asset. Deleting a missing asset succeeds.
func (s *ThemeSDK) DeleteAsset(ctx context.Context, themeID int64, key string) error {
	if themeID <= 0 {
		return ErrNoThemeID
	}
	if key == "" {
		return ErrEmptyKey
	}

	res, err := s.request(ctx, themeID).
		SetQueryParam("asset[key]", key).
		Delete(assetsPath)

	if err := handleAPIError(res, err, "delete asset "+key); err != nil && !IsNotFound(err) {
		return err
	}

	return nil
}

// UploadAsset creates or replaces an asset.
func (s *ThemeSDK) UploadAsset(ctx context.Context, themeID int64, asset *theme.Asset) error {
	if themeID <= 0 {
		return ErrNoThemeID
	}
	if asset == nil || asset.Key == "" {
		return ErrEmptyKey
	}

	// only the content travels, the store computes the rest
	body := assetRequest{Asset: &theme.Asset{
		Key:        asset.Key,
		Value:      asset.Value,
		Attachment: asset.Attachment,
	}}

	res, err := s.request(ctx, themeID).
		SetBody(&body).
		Put(assetsPath)

	return handleAPIError(res, err, "upload asset "+asset.Key)
}

// Close releases idle connections.
func (s *ThemeSDK) Close() {
	s.client.GetClient().CloseIdleConnections()
}
