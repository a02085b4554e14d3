package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/config"
)

type fakeS3 struct {
	puts        []*s3.PutObjectInput
	bodies      [][]byte
	putErr      error
	headErr     error
	createErr   error
	createCalls int
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(context.Context, *s3.CreateBucketInput, ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &s3.CreateBucketOutput{}, nil
}

// ============================================================================
// Construction
// ============================================================================

func TestNewAuditArchive_Validation(t *testing.T) {
	t.Run("nil client returns error", func(t *testing.T) {
		_, err := NewAuditArchive(nil, "bucket", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewAuditArchive(&fakeS3{}, "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("prefix gains trailing slash", func(t *testing.T) {
		archive, err := NewAuditArchive(&fakeS3{}, "bucket", "connhub")
		require.NoError(t, err)
		assert.Equal(t, "connhub/", archive.prefix)
	})
}

func TestNewS3AuditArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3AuditArchive(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3AuditArchive(ctx, &config.ArchiveConfig{})
		require.Error(t, err)
	})

	t.Run("invalid endpoint returns error", func(t *testing.T) {
		_, err := NewS3AuditArchive(ctx, &config.ArchiveConfig{Bucket: "b", Endpoint: "::not a url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid storage endpoint")
	})

	t.Run("valid config creates archive", func(t *testing.T) {
		archive, err := NewS3AuditArchive(ctx, &config.ArchiveConfig{
			Bucket:          "audit",
			Region:          "ap-northeast-1",
			Endpoint:        "http://localhost:9000",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			UsePathStyle:    true,
		}, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "audit", archive.Bucket())
	})
}

// ============================================================================
// Keys and uploads
// ============================================================================

func TestAuditArchive_ObjectKey(t *testing.T) {
	archive, err := NewAuditArchive(&fakeS3{}, "bucket", "")
	require.NoError(t, err)

	tokyo := time.FixedZone("JST", 9*60*60)
	tests := []struct {
		name string
		day  time.Time
		want string
	}{
		{"utc day", time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), "audit/2026/03/07.jsonl"},
		{"converted to utc", time.Date(2026, 3, 7, 5, 0, 0, 0, tokyo), "audit/2026/03/06.jsonl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, archive.ObjectKey(tt.day))
		})
	}
}

func TestAuditArchive_WriteDay(t *testing.T) {
	client := &fakeS3{}
	archive, err := NewAuditArchive(client, "bucket", "prod")
	require.NoError(t, err)

	connID := uuid.New()
	day := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	entries := []connection.AuditEntry{
		*connection.NewSuccessAudit("user-1", connection.OpConnectionCreate).WithConnection(connID),
		*connection.NewErrorAudit("user-2", connection.OpConnectionRefresh,
			connection.NewPlatformError(connection.KindTokenExpired, "invalid_grant", "expired", "")),
	}

	key, err := archive.WriteDay(context.Background(), day, entries)
	require.NoError(t, err)
	assert.Equal(t, "prod/audit/2026/03/07.jsonl", key)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "bucket", aws.ToString(put.Bucket))
	assert.Equal(t, key, aws.ToString(put.Key))
	assert.Equal(t, jsonLinesContentType, aws.ToString(put.ContentType))
	assert.Equal(t, int64(len(client.bodies[0])), aws.ToInt64(put.ContentLength))

	var lines []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(client.bodies[0]))
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "connection.create", lines[0]["operation"])
	assert.Equal(t, connID.String(), lines[0]["connection_id"])
	assert.Equal(t, "TOKEN_EXPIRED", lines[1]["error_code"])
	assert.Equal(t, "invalid_grant", lines[1]["metadata"].(map[string]any)["provider_code"])
}

func TestAuditArchive_WriteDayEmpty(t *testing.T) {
	client := &fakeS3{}
	archive, err := NewAuditArchive(client, "bucket", "")
	require.NoError(t, err)

	_, err = archive.WriteDay(context.Background(), time.Now(), nil)
	require.NoError(t, err)
	require.Len(t, client.bodies, 1)
	assert.Empty(t, client.bodies[0])
}

func TestAuditArchive_WriteDayUploadError(t *testing.T) {
	archive, err := NewAuditArchive(&fakeS3{putErr: errors.New("access denied")}, "bucket", "")
	require.NoError(t, err)

	_, err = archive.WriteDay(context.Background(), time.Now(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestAuditArchive_EnsureBucket(t *testing.T) {
	tests := []struct {
		name        string
		client      *fakeS3
		wantErr     bool
		wantCreates int
	}{
		{"exists", &fakeS3{}, false, 0},
		{"missing is created", &fakeS3{headErr: &types.NotFound{}}, false, 1},
		{"race with another creator", &fakeS3{headErr: &types.NoSuchBucket{}, createErr: &types.BucketAlreadyOwnedByYou{}}, false, 1},
		{"head fails", &fakeS3{headErr: errors.New("forbidden")}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive, err := NewAuditArchive(tt.client, "bucket", "")
			require.NoError(t, err)

			err = archive.EnsureBucket(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCreates, tt.client.createCalls)
		})
	}
}
