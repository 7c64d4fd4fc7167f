package themesdk

import (
	"github.com/openmined/themesync/internal/theme"
)

const (
	HeaderAccessToken = "X-Access-Token"
	HeaderRequestID   = "X-Request-Id"
	HeaderAPIVersion  = "X-Api-Version"
)

type themeResponse struct {
	Theme *theme.Theme `json:"theme"`
}

type checksumsResponse struct {
	Assets []theme.Checksum `json:"assets"`
}

type assetResponse struct {
	Asset *theme.Asset `json:"asset"`
}

type assetRequest struct {
	Asset *theme.Asset `json:"asset"`
}
