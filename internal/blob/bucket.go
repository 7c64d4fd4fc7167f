// Package blob stores a theme in an S3 bucket, one object per asset under
// `<prefix>/themes/<id>/<key>`.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"
	"github.com/openmined/themesync/internal/theme"
)

// S3API is the subset of *s3.Client used by ThemeBucket.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ThemeBucket is a remote theme store backed by S3. Object ETags serve as
// asset checksums, which holds for objects written with a single PutObject.
type ThemeBucket struct {
	api    S3API
	bucket string
	prefix string
}

func NewThemeBucket(api S3API, cfg *S3Config) *ThemeBucket {
	return &ThemeBucket{
		api:    api,
		bucket: cfg.BucketName,
		prefix: cfg.Prefix,
	}
}

// NewThemeBucketWithS3Config validates cfg and connects to the bucket.
func NewThemeBucketWithS3Config(ctx context.Context, cfg *S3Config) (*ThemeBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewThemeBucket(client, cfg), nil
}

func (b *ThemeBucket) themePrefix(themeID int64) string {
	return path.Join(b.prefix, "themes", strconv.FormatInt(themeID, 10)) + "/"
}

func (b *ThemeBucket) objectKey(themeID int64, key string) string {
	return b.themePrefix(themeID) + key
}

// FetchTheme describes the bucket location of a theme.
func (b *ThemeBucket) FetchTheme(_ context.Context, themeID int64) (*theme.Theme, error) {
	return &theme.Theme{
		ID:   themeID,
		Name: fmt.Sprintf("s3://%s/%s", b.bucket, strings.TrimSuffix(b.themePrefix(themeID), "/")),
		Role: "bucket",
	}, nil
}

func (b *ThemeBucket) FetchChecksums(ctx context.Context, themeID int64) ([]theme.Checksum, error) {
	prefix := b.themePrefix(themeID)
	paginator := s3.NewListObjectsV2Paginator(b.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	var checksums []theme.Checksum
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			etag := cleanETag(aws.ToString(obj.ETag))
			if strings.Contains(etag, "-") {
				slog.Warn("multipart etag is not an md5 checksum", "key", key, "etag", etag)
			}
			checksums = append(checksums, theme.Checksum{Key: key, Checksum: etag})
		}
	}

	return checksums, nil
}

// FetchAsset downloads an asset. A missing object yields nil, nil.
func (b *ThemeBucket) FetchAsset(ctx context.Context, themeID int64, key string) (*theme.Asset, error) {
	resp, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(themeID, key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	asset := theme.NewAsset(key, content)
	asset.UpdatedAt = resp.LastModified
	slog.Debug("blob get", "key", key, "size", humanize.Bytes(uint64(len(content))))
	return asset, nil
}

// DeleteAsset removes an asset. S3 deletes are idempotent.
func (b *ThemeBucket) DeleteAsset(ctx context.Context, themeID int64, key string) error {
	_, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(themeID, key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (b *ThemeBucket) UploadAsset(ctx context.Context, themeID int64, asset *theme.Asset) error {
	content, err := asset.Bytes()
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.objectKey(themeID, asset.Key)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	}
	if ct := mime.TypeByExtension(path.Ext(asset.Key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := b.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", asset.Key, err)
	}

	slog.Debug("blob put", "key", asset.Key, "size", humanize.Bytes(uint64(len(content))))
	return nil
}

func cleanETag(etag string) string {
	return strings.ToLower(strings.ReplaceAll(etag, "\"", ""))
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
