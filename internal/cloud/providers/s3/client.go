// Package s3 provides the S3 implementation of storage.Storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// Config holds the bucket location and optional static credentials.
// Without static credentials the default AWS chain is used
// (environment, shared config, instance role).
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // S3-compatible endpoint, e.g. MinIO
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	HTTPClient      *nethttp.Client
}

// objectAPI is the subset of *s3.Client used here.
type objectAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// presignAPI is the subset of *s3.PresignClient used here.
type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Provider implements storage.Storage on one S3 bucket.
//
// Thread-safe: All operations are safe for concurrent use.
type Provider struct {
	bucket    string
	client    objectAPI
	presigner presignAPI

	// unsignedPayload sends PutObject bodies as UNSIGNED-PAYLOAD with a
	// trailing checksum, so the body is read once while it is sent.
	unsignedPayload bool
}

// NewProvider creates an S3 provider from cfg.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, config.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	p := newProvider(cfg.Bucket, client, s3.NewPresignClient(client))
	p.unsignedPayload = overTLS(cfg.Endpoint)
	return p, nil
}

// overTLS reports whether requests to endpoint use HTTPS. An empty
// endpoint is AWS, which is always HTTPS.
func overTLS(endpoint string) bool {
	return endpoint == "" || strings.HasPrefix(strings.ToLower(endpoint), "https://")
}

func newProvider(bucket string, client objectAPI, presigner presignAPI) *Provider {
	return &Provider{bucket: bucket, client: client, presigner: presigner}
}

// Bucket returns the S3 bucket name.
func (p *Provider) Bucket() string {
	return p.bucket
}

// List returns objects under the tier prefix joined with prefix.
func (p *Provider) List(ctx context.Context, prefix string, opts storage.ListOptions) ([]storage.Object, error) {
	tierPrefix, err := opts.AccessTier.Prefix()
	if err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(tierPrefix + prefix),
	})

	var objects []storage.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", p.bucket, tierPrefix+prefix, mapError(err))
		}
		for _, obj := range page.Contents {
			key, ok := storage.UserKey(opts.AccessTier, aws.ToString(obj.Key))
			if !ok {
				continue
			}
			objects = append(objects, storage.Object{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !opts.All {
			break
		}
	}
	return objects, nil
}

// SignedURL presigns a GetObject request, optionally for one version.
func (p *Provider) SignedURL(ctx context.Context, key string, opts storage.URLOptions) (string, error) {
	objectKey, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return "", err
	}

	expires := opts.Expires
	if expires <= 0 {
		expires = constants.SignedURLExpiry
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(objectKey),
	}
	if opts.VersionID != "" {
		input.VersionId = aws.String(opts.VersionID)
	}

	req, err := p.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectKey, mapError(err))
	}
	return req.URL, nil
}

// Upload stores body under key with a single PutObject.
func (p *Provider) Upload(ctx context.Context, key string, body io.Reader, opts storage.UploadOptions) error {
	objectKey, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(objectKey),
		Body:   storage.NewProgressReader(body, opts.Size, opts.OnProgress),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.Size > 0 {
		input.ContentLength = aws.Int64(opts.Size)
	}

	// A signed payload makes the SDK hash the whole body and rewind it
	// before sending, which would drive progress to 100 up front. Plain
	// HTTP endpoints still need the signed hash.
	var optFns []func(*s3.Options)
	if p.unsignedPayload {
		optFns = append(optFns, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	}

	if _, err := p.client.PutObject(ctx, input, optFns...); err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, mapError(err))
	}
	return nil
}

// Remove deletes the object under key.
func (p *Provider) Remove(ctx context.Context, key string, opts storage.RemoveOptions) error {
	objectKey, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return err
	}

	if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectKey, mapError(err))
	}
	return nil
}

// mapError translates S3 missing-object codes to storage.ErrNotFound.
func mapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchVersion":
			return fmt.Errorf("%w: %s", storage.ErrNotFound, apiErr.ErrorMessage())
		}
	}
	return err
}

// Compile-time interface verification
var _ storage.Storage = (*Provider)(nil)
