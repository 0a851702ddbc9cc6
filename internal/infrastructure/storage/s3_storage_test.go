package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/erp/reconciliation/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func localConfig() config.StorageConfig {
	return config.StorageConfig{
		Enabled:         true,
		Bucket:          "reception-docs",
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UsePathStyle:    true,
	}
}

func newLocalStore(t *testing.T, opts ...Option) *S3DocumentStore {
	t.Helper()
	store, err := NewS3DocumentStore(context.Background(), localConfig(), opts...)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return store
}

func TestNewS3DocumentStore_Validation(t *testing.T) {
	t.Run("bucket is required", func(t *testing.T) {
		cfg := localConfig()
		cfg.Bucket = ""
		_, err := NewS3DocumentStore(context.Background(), cfg)
		assert.ErrorContains(t, err, "bucket is required")
	})

	t.Run("bad endpoint", func(t *testing.T) {
		cfg := localConfig()
		cfg.Endpoint = "http://"
		_, err := NewS3DocumentStore(context.Background(), cfg)
		assert.ErrorContains(t, err, "invalid storage endpoint")
	})

	t.Run("default ttl", func(t *testing.T) {
		store := newLocalStore(t)
		assert.Equal(t, DefaultPresignTTL, store.presignTTL)
		assert.Equal(t, "reception-docs", store.Bucket())
	})

	t.Run("configured ttl", func(t *testing.T) {
		cfg := localConfig()
		cfg.PresignTTL = 5 * time.Minute
		store, err := NewS3DocumentStore(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, store.presignTTL)
	})

	t.Run("option wins over config", func(t *testing.T) {
		store := newLocalStore(t, WithPresignTTL(time.Minute), WithLogger(zaptest.NewLogger(t)))
		assert.Equal(t, time.Minute, store.presignTTL)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"minio.internal:9000", "https://minio.internal:9000"},
		{"http://localhost:9000/", "http://localhost:9000"},
		{" https://s3.example.com ", "https://s3.example.com"},
	}
	for _, tt := range tests {
		got, err := normalizeEndpoint(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestS3DocumentStore_GenerateUploadURL(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	_, _, err := store.GenerateUploadURL(ctx, "", "image/jpeg", 0)
	assert.ErrorIs(t, err, ErrEmptyKey)

	raw, expiresAt, err := store.GenerateUploadURL(ctx, "receptions/r1/abc/note.pdf", "application/pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, store.now().Add(DefaultPresignTTL), expiresAt)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/reception-docs/receptions/r1/abc/note.pdf", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.True(t, strings.Contains(u.Query().Get("X-Amz-SignedHeaders"), "content-type"))
}

func TestS3DocumentStore_GenerateDownloadURL(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	_, _, err := store.GenerateDownloadURL(ctx, "", 0)
	assert.ErrorIs(t, err, ErrEmptyKey)

	raw, expiresAt, err := store.GenerateDownloadURL(ctx, "receptions/r1/abc/note.pdf", 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, store.now().Add(2*time.Minute), expiresAt)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "120", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("X-Amz-Credential"), "minioadmin/")
}

func TestS3DocumentStore_ExistsRequiresKey(t *testing.T) {
	_, err := newLocalStore(t).Exists(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}
