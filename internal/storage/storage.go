// Package storage wraps the S3-compatible object storage client this
// module uploads finished tiles to and reads remote source/manifest URIs
// from. Adapted directly from the tile-service template's s3.go, generalized
// from road-tile uploads to generic get/put/head/list over the pixetl
// destination bucket and any S3-compatible source bucket a manifest names.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Config describes how to reach one S3-compatible endpoint.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	PublicBaseURL   string // used by PublicURL; empty disables it
}

// Client wraps an S3-compatible bucket: the module's destination bucket for
// uploads, or a source bucket a manifest's "s3://..." URIs resolve against.
// It implements internal/manifest.Fetcher (Get).
type Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	publicBase string
}

// New creates a client, following the template's custom-endpoint-resolver +
// tuned-transport pattern for S3-compatible object storage (R2, Wasabi,
// MinIO).
func New(ctx context.Context, cfg Config) (*Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if service == s3.ServiceID && cfg.Endpoint != "" {
			return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: cfg.Region}, nil
		}
		return aws.Endpoint{}, &smithy.GenericAPIError{Code: "UnknownEndpoint"}
	})

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        150,
			MaxIdleConnsPerHost: 150,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: 5 * time.Minute,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(httpClient),
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})

	return &Client{
		client:     s3Client,
		uploader:   manager.NewUploader(s3Client),
		bucket:     cfg.Bucket,
		publicBase: cfg.PublicBaseURL,
	}, nil
}

// UploadFile uploads localPath's contents to key.
func (c *Client) UploadFile(ctx context.Context, localPath, key string) (int64, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   f,
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return info.Size(), nil
}

// Get fetches the contents of an object, satisfying internal/manifest.Fetcher.
// uri may be a bare key (resolved against this client's bucket) or a full
// "s3://bucket/key" URI, in which case the bucket segment is ignored (the
// client is already scoped to one bucket per endpoint).
func (c *Client) Get(ctx context.Context, uri string) ([]byte, error) {
	key := keyFromURI(uri)
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

func keyFromURI(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "s3://"); ok {
		if _, key, found := strings.Cut(rest, "/"); found {
			return key
		}
	}
	return uri
}

// Exists checks for key's presence without downloading it — the basis for
// spec.md §4.4's filter_exists stage ("destination already present,
// overwrite=false").
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", key, err)
}

// List returns every object key under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, *obj.Key)
		}
	}
	return keys, nil
}

// PublicURL returns key's public URL under the configured base, or "" if
// none is configured.
func (c *Client) PublicURL(key string) string {
	if c.publicBase == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.publicBase, "/"), strings.TrimLeft(key, "/"))
}
