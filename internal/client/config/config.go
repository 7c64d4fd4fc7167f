package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/openmined/themesync/internal/blob"
	"github.com/openmined/themesync/internal/client/sync"
	"github.com/openmined/themesync/internal/utils"
)

const (
	BackendAPI = "api"
	BackendS3  = "s3"

	ConflictPolicyExit     = "exit"
	ConflictPolicyContinue = "continue"

	DefaultPollInterval = sync.DefaultPollInterval
	DefaultConcurrency  = sync.DefaultConcurrency
	MinPollInterval     = 500 * time.Millisecond
	MaxConcurrency      = 64
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".themesync", "config.json")
	DefaultLogFilePath = filepath.Join(home, ".themesync", "logs", "themesync.log")
)

var (
	ErrNoThemeID             = errors.New("config: theme id missing")
	ErrNoStoreURL            = errors.New("config: store url missing")
	ErrNoAccessToken         = errors.New("config: access token missing")
	ErrNoS3Config            = errors.New("config: s3 settings missing")
	ErrInvalidBackend        = errors.New("config: invalid backend")
	ErrInvalidConflictPolicy = errors.New("config: invalid conflict policy")
)

type ControlPlaneConfig struct {
	Addr  string `json:"addr,omitempty" mapstructure:"addr"`
	Token string `json:"token,omitempty" mapstructure:"token"`
}

type Config struct {
	ThemeID        int64              `json:"theme_id" mapstructure:"theme_id"`
	StoreURL       string             `json:"store_url,omitempty" mapstructure:"store_url"`
	AccessToken    string             `json:"access_token,omitempty" mapstructure:"access_token"`
	Path           string             `json:"path" mapstructure:"path"`
	Backend        string             `json:"backend" mapstructure:"backend"`
	S3             *blob.S3Config     `json:"s3,omitempty" mapstructure:"s3"`
	PollInterval   time.Duration      `json:"poll_interval" mapstructure:"poll_interval"`
	Concurrency    int                `json:"concurrency" mapstructure:"concurrency"`
	Strategy       string             `json:"strategy,omitempty" mapstructure:"strategy"`
	ConflictPolicy string             `json:"conflict_policy" mapstructure:"conflict_policy"`
	Only           []string           `json:"only,omitempty" mapstructure:"only"`
	Ignore         []string           `json:"ignore,omitempty" mapstructure:"ignore"`
	ControlPlane   ControlPlaneConfig `json:"control_plane" mapstructure:"control_plane"`
	ConfigPath     string             `json:"-" mapstructure:"config"`
}

// Validate checks the config, resolves paths and fills in defaults.
func (c *Config) Validate() error {
	var err error

	if c.ThemeID <= 0 {
		return ErrNoThemeID
	}

	if c.Path == "" {
		c.Path = "."
	}
	if c.Path, err = utils.ResolvePath(c.Path); err != nil {
		return fmt.Errorf("path: %w", err)
	}

	if c.ConfigPath != "" {
		if c.ConfigPath, err = utils.ResolvePath(c.ConfigPath); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	if err := c.validateBackend(); err != nil {
		return err
	}

	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	} else if c.PollInterval < MinPollInterval {
		return fmt.Errorf("poll interval %s is below %s", c.PollInterval, MinPollInterval)
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	} else if c.Concurrency < 0 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d", MaxConcurrency)
	}

	if _, err := sync.ParseStrategy(c.Strategy); err != nil {
		return err
	}

	switch c.ConflictPolicy {
	case "":
		c.ConflictPolicy = ConflictPolicyExit
	case ConflictPolicyExit, ConflictPolicyContinue:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidConflictPolicy, c.ConflictPolicy)
	}

	for _, p := range append(append([]string(nil), c.Only...), c.Ignore...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}

	if c.ControlPlane.Addr != "" {
		if _, err := utils.AddrToURL(c.ControlPlane.Addr); err != nil {
			return fmt.Errorf("control plane addr: %w", err)
		}
	}

	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend {
	case "", BackendAPI:
		c.Backend = BackendAPI
		if c.StoreURL == "" {
			return ErrNoStoreURL
		}
		if err := utils.ValidateURL(c.StoreURL); err != nil {
			return fmt.Errorf("store url: %w", err)
		}
		if c.AccessToken == "" {
			return ErrNoAccessToken
		}
	case BackendS3:
		if c.S3 == nil {
			return ErrNoS3Config
		}
		if err := c.S3.Validate(); err != nil {
			return fmt.Errorf("s3: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
	return nil
}

// Save writes the config as JSON to ConfigPath.
func (c *Config) Save() error {
	if c.ConfigPath == "" {
		return errors.New("config path not set")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	_, err = utils.WriteFileAtomic(c.ConfigPath, data, 0o600)
	return err
}

func (c *Config) String() string {
	// keep secrets out of logs
	redacted := *c
	if redacted.AccessToken != "" {
		redacted.AccessToken = "***"
	}
	if redacted.ControlPlane.Token != "" {
		redacted.ControlPlane.Token = "***"
	}
	if redacted.S3 != nil {
		s3 := *redacted.S3
		if s3.SecretKey != "" {
			s3.SecretKey = "***"
		}
		redacted.S3 = &s3
	}

	data, _ := json.Marshal(&redacted)
	return string(data)
}
