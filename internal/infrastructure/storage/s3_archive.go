// Package storage writes audit archives to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
	infraconfig "github.com/erp/connhub/internal/infrastructure/config"
)

const jsonLinesContentType = "application/x-ndjson"

// S3API is the subset of the S3 client used by the archive
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// AuditArchive writes one JSON Lines object per UTC day of audit entries.
// Objects are keyed <prefix>audit/YYYY/MM/DD.jsonl and rewritten on re-export.
type AuditArchive struct {
	client S3API
	bucket string
	prefix string
	logger *zap.Logger
}

// AuditArchiveOption is a functional option for configuring AuditArchive
type AuditArchiveOption func(*AuditArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) AuditArchiveOption {
	return func(a *AuditArchive) {
		a.logger = logger
	}
}

// NewAuditArchive creates an archive on top of an existing client
func NewAuditArchive(client S3API, bucket, prefix string, opts ...AuditArchiveOption) (*AuditArchive, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	archive := &AuditArchive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

// NewS3AuditArchive creates an archive from configuration.
// It supports any S3-compatible backend (AWS S3, MinIO, RustFS).
func NewS3AuditArchive(ctx context.Context, cfg *infraconfig.ArchiveConfig, opts ...AuditArchiveOption) (*AuditArchive, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	// Static keys are optional; without them the default credential chain applies.
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return NewAuditArchive(client, cfg.Bucket, cfg.Prefix, opts...)
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *AuditArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ObjectKey returns the object key for the UTC day containing day
func (a *AuditArchive) ObjectKey(day time.Time) string {
	return a.prefix + day.UTC().Format("audit/2006/01/02") + ".jsonl"
}

// WriteDay uploads the entries of one day and returns the object key.
// An empty day still produces an (empty) object so gaps are distinguishable from failures.
func (a *AuditArchive) WriteDay(ctx context.Context, day time.Time, entries []connection.AuditEntry) (string, error) {
	key := a.ObjectKey(day)

	body, err := encodeJSONLines(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit entries: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(jsonLinesContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audit archive %s: %w", key, err)
	}

	a.logger.Info("Audit archive written",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("entries", len(entries)),
	)
	return key, nil
}

// Bucket returns the bucket name
func (a *AuditArchive) Bucket() string {
	return a.bucket
}

// auditRecord is the archived line format
type auditRecord struct {
	ID               uuid.UUID         `json:"id"`
	UserID           string            `json:"user_id"`
	ConnectionID     *uuid.UUID        `json:"connection_id,omitempty"`
	ConnectionItemID *uuid.UUID        `json:"connection_item_id,omitempty"`
	Operation        string            `json:"operation"`
	Result           string            `json:"result"`
	ErrorCode        string            `json:"error_code,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

func encodeJSONLines(entries []connection.AuditEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		e := &entries[i]
		if err := enc.Encode(auditRecord{
			ID:               e.ID,
			UserID:           e.UserID,
			ConnectionID:     e.ConnectionID,
			ConnectionItemID: e.ConnectionItemID,
			Operation:        string(e.Operation),
			Result:           string(e.Result),
			ErrorCode:        e.ErrorCode,
			ErrorMessage:     e.ErrorMessage,
			Metadata:         e.Metadata,
			CreatedAt:        e.CreatedAt.UTC(),
		}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
