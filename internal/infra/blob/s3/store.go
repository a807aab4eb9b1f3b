// Package s3 implements a blob Store over an S3-compatible backend (AWS S3
// or MinIO). Single bucket; keys map to object keys directly.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"blockcore/internal/infra/blob/core"
)

// Store implements core.Store using an S3-compatible backend.
type Store struct {
	client *s3.Client
	bucket string
}

// Config holds explicit construction parameters (mostly for tests). For
// production, configuration comes from environment variables.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// Environment variables:
//   BLOCKCORE_BLOB_DRIVER=s3
//   BLOCKCORE_BLOB_S3_BUCKET=<bucket> (required)
//   BLOCKCORE_BLOB_S3_REGION=<region> (default us-east-1)
//   BLOCKCORE_BLOB_S3_ENDPOINT=<url> (optional, for MinIO)
//   BLOCKCORE_BLOB_S3_PATH_STYLE=true|false (default false)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// New creates an S3 blob store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// OpenFromEnv constructs an S3 store from process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("BLOCKCORE_BLOB_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("BLOCKCORE_BLOB_S3_BUCKET required for s3 driver")
	}
	cfg := Config{
		Bucket:    bucket,
		Region:    os.Getenv("BLOCKCORE_BLOB_S3_REGION"),
		Endpoint:  os.Getenv("BLOCKCORE_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("BLOCKCORE_BLOB_S3_PATH_STYLE"), "true"),
	}
	return New(ctx, cfg)
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Put stores or replaces an object.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: r}
	if opts.ContentType != "" {
		input.ContentType = &opts.ContentType
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.Info{}, err
	}
	return s.Head(ctx, key)
}

// Get returns object metadata and its content stream.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.Info{}, nil, err
	}
	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return infoFrom(key, size, out.ContentType, out.ETag, out.Metadata, out.LastModified), out.Body, nil
}

// Head returns object metadata only.
func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.Info{}, err
	}
	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return infoFrom(key, size, out.ContentType, out.ETag, out.Metadata, out.LastModified), nil
}

// Delete removes an object. S3 deletes are idempotent, so existence is
// assumed when the call succeeds.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, err
	}
	return true, nil
}

// List returns all objects matching prefix, sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix, ContinuationToken: token})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			infos = append(infos, core.Info{Key: aws.ToString(obj.Key), Size: size, LastModified: aws.ToTime(obj.LastModified)})
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func infoFrom(key string, size int64, contentType, etag *string, md map[string]string, lastModified *time.Time) core.Info {
	var ct, et string
	if contentType != nil {
		ct = *contentType
	}
	if etag != nil {
		et = strings.Trim(*etag, "\"")
	}
	lm := time.Now().UTC()
	if lastModified != nil {
		lm = *lastModified
	}
	return core.Info{Key: key, Size: size, ContentType: ct, ETag: et, Metadata: md, LastModified: lm}
}
