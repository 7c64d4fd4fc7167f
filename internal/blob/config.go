package blob

import (
	"errors"
	"path"
	"strings"
)

var (
	ErrNoBucket = errors.New("blob: bucket name missing")
	ErrNoRegion = errors.New("blob: region missing")
)

const defaultRegion = "us-east-1"

// S3Config describes the bucket a theme is stored in. Endpoint is set for
// S3 compatible stores such as MinIO.
type S3Config struct {
	BucketName    string `json:"bucket" mapstructure:"bucket"`
	Region        string `json:"region" mapstructure:"region"`
	AccessKey     string `json:"access_key" mapstructure:"access_key"`
	SecretKey     string `json:"secret_key" mapstructure:"secret_key"`
	Endpoint      string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	Prefix        string `json:"prefix,omitempty" mapstructure:"prefix"`
	UseAccelerate bool   `json:"accelerate,omitempty" mapstructure:"accelerate"`
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return ErrNoBucket
	}

	if c.Region == "" {
		if c.Endpoint == "" {
			return ErrNoRegion
		}
		// minio ignores the region but the sdk insists on one
		c.Region = defaultRegion
	}

	c.Prefix = strings.Trim(path.Clean("/"+c.Prefix), "/")
	return nil
}
