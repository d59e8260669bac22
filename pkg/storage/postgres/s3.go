package postgres

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/quillstack/docsearch/pkg/storage"
)

var s3Tracer = otel.Tracer("docsearch.storage.s3")

// ObjectStore fetches uploaded document blobs from S3-compatible storage.
type ObjectStore struct {
	client *s3.Client
	bucket string
}

// NewObjectStore creates an S3 client for the configured bucket. Static
// credentials are used when provided, otherwise the default chain.
func NewObjectStore(ctx context.Context, cfg storage.Config) (*ObjectStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &ObjectStore{client: client, bucket: cfg.S3Bucket}, nil
}

// Fetch downloads one object in full.
func (o *ObjectStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s3Tracer.Start(ctx, "s3.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("s3.bucket", o.bucket),
		attribute.String("s3.key", key),
	)

	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get object failed")
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	span.SetAttributes(attribute.Int("s3.bytes", len(data)))
	return data, nil
}
