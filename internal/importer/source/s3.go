package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/internal/infra/config"
)

// ObjectGetter is the subset of *s3.Client the S3 source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client builds an S3 client from the default credential chain.
// Endpoint and path-style addressing support S3-compatible stores.
func NewS3Client(ctx context.Context, cfg config.AWSConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// IsS3URI reports whether uri uses the s3:// scheme.
func IsS3URI(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: not an s3 uri: %s", app_errors.ErrInvalidInput, uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: s3 uri needs a bucket and a key: %s", app_errors.ErrInvalidInput, uri)
	}
	return bucket, key, nil
}

// OpenS3Object returns the body of an S3 object. The caller closes it.
func OpenS3Object(ctx context.Context, client ObjectGetter, bucket, key string) (io.ReadCloser, error) {
	output, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get geojson object from S3: %w", err)
	}
	return output.Body, nil
}

// S3Object fetches a GeoJSON FeatureCollection from S3 and parses it like GeoJSON.
func S3Object(ctx context.Context, client ObjectGetter, bucket, key string, logger *slog.Logger) ([]domain.ImportItem, error) {
	body, err := OpenS3Object(ctx, client, bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := body.Close(); err != nil {
			logger.Error("failed to close S3 object body", "error", err)
		}
	}()

	items, err := GeoJSON(body)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
	}
	return items, nil
}
