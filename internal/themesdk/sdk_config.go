package themesdk

import (
	"time"

	"github.com/openmined/themesync/internal/utils"
)

const (
	DefaultAPIVersion = "2024-10"
	DefaultRetryCount = 3
	DefaultTimeout    = 30 * time.Second
)

// Config is the configuration for the theme API client
type Config struct {
	BaseURL     string // BaseURL is required, e.g. https://shop.example.com
	AccessToken string // AccessToken is required
	APIVersion  string // APIVersion defaults to DefaultAPIVersion
	RetryCount  int    // RetryCount defaults to DefaultRetryCount, negative disables retries
	Timeout     time.Duration
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}

	if err := utils.ValidateURL(c.BaseURL); err != nil {
		return err
	}

	if c.AccessToken == "" {
		return ErrNoAccessToken
	}

	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}

	if c.RetryCount == 0 {
		c.RetryCount = DefaultRetryCount
	} else if c.RetryCount < 0 {
		c.RetryCount = 0
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	return nil
}
