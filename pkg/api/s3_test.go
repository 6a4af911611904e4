package api

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/mtsoor/pkg/config"
)

func testFilesConfig() *config.FilesConfig {
	return &config.FilesConfig{
		PresignExpiry: "1h",
		S3: &config.S3Config{
			Bucket: "mts-results",
			Region: "us-east-1",
		},
	}
}

func TestS3Presigner_IsAllowedPath(t *testing.T) {
	presigner, err := newS3Presigner(logrus.New(), testFilesConfig())
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		allowed bool
	}{
		{name: "run file", path: "1769791126_8cec1fab/result.json", allowed: true},
		{name: "nested run file", path: "1769791126_8cec1fab/stats/index.html", allowed: true},
		{name: "path traversal rejected", path: "run/../secrets/key", allowed: false},
		{name: "double dot in middle rejected", path: "run/..hidden/file", allowed: false},
		{name: "empty path rejected", path: "", allowed: false},
		{name: "absolute path rejected", path: "/etc/passwd", allowed: false},
		{name: "trailing slash makes path unclean", path: "run/", allowed: false},
		{name: "double slash rejected", path: "run//file", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, presigner.isAllowedPath(tt.path))
		})
	}
}

func TestS3Presigner_ObjectKeyUsesPrefix(t *testing.T) {
	cfg := testFilesConfig()
	cfg.S3.Prefix = "mts/regression/"

	presigner, err := newS3Presigner(logrus.New(), cfg)
	require.NoError(t, err)

	assert.Equal(t,
		"mts/regression/1769791126_8cec1fab/result.json",
		presigner.objectKey("1769791126_8cec1fab/result.json"))

	// Default prefix when none is configured.
	presigner, err = newS3Presigner(logrus.New(), testFilesConfig())
	require.NoError(t, err)

	assert.Equal(t, "runs/a/console.log", presigner.objectKey("a/console.log"))
}

func TestS3Presigner_RejectsBadExpiry(t *testing.T) {
	cfg := testFilesConfig()
	cfg.PresignExpiry = "soonish"

	_, err := newS3Presigner(logrus.New(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presign_expiry")
}

func TestS3Presigner_CachesURLs(t *testing.T) {
	// Use a MinIO-style endpoint so presigning works without real AWS creds.
	cfg := testFilesConfig()
	cfg.S3.EndpointURL = "http://localhost:9000"
	cfg.S3.ForcePathStyle = true
	cfg.S3.AccessKeyID = "minioadmin"
	cfg.S3.SecretAccessKey = "minioadmin"

	presigner, err := newS3Presigner(logrus.New(), cfg)
	require.NoError(t, err)

	ctx := context.Background()

	// First call generates a fresh presigned URL.
	url1, err := presigner.GeneratePresignedURL(ctx, "a/result.json")
	require.NoError(t, err)
	assert.NotEmpty(t, url1)

	// Second call for the same key should return the cached URL (identical).
	url2, err := presigner.GeneratePresignedURL(ctx, "a/result.json")
	require.NoError(t, err)
	assert.Equal(t, url1, url2, "expected cached URL to be identical")

	// A different key should produce a different URL.
	url3, err := presigner.GeneratePresignedURL(ctx, "a/console.log")
	require.NoError(t, err)
	assert.NotEqual(t, url1, url3,
		"expected different key to produce different URL")
}
