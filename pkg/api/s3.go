package api

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/mtsoor/pkg/config"
)

// presignCacheEntry holds a cached presigned URL and its expiration time.
type presignCacheEntry struct {
	url       string
	expiresAt time.Time
}

// headObjectResult carries the object metadata exposed on HEAD requests.
type headObjectResult struct {
	ContentType   string
	ContentLength int64
}

// s3Presigner answers run file requests with presigned GET URLs for
// objects in the configured bucket. Request paths use the same
// "<run-dir>/<file>" shape the local file server accepts and are
// resolved under the upload prefix.
type s3Presigner struct {
	log           logrus.FieldLogger
	bucket        string
	prefix        string
	client        *s3.Client
	presignClient *s3.PresignClient
	expiry        time.Duration
	cacheTTL      time.Duration
	mu            sync.RWMutex
	cache         map[string]presignCacheEntry
}

// newS3Presigner creates a new S3 presigner from the files configuration.
func newS3Presigner(
	log logrus.FieldLogger,
	cfg *config.FilesConfig,
) (*s3Presigner, error) {
	expiry, err := time.ParseDuration(cfg.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("parsing presign_expiry: %w", err)
	}

	prefix := cfg.S3.Prefix
	if prefix == "" {
		prefix = config.DefaultS3Prefix
	}

	client := newFilesS3Client(cfg.S3)

	return &s3Presigner{
		log:           log.WithField("component", "s3-presigner"),
		bucket:        cfg.S3.Bucket,
		prefix:        strings.TrimRight(prefix, "/"),
		client:        client,
		presignClient: s3.NewPresignClient(client),
		expiry:        expiry,
		cacheTTL:      expiry / 2,
		cache:         make(map[string]presignCacheEntry),
	}, nil
}

// GeneratePresignedURL returns a presigned GET URL for the given run
// file path. Results are cached for half the presigned URL expiry
// duration to avoid redundant presigning while ensuring URLs always
// have sufficient validity.
func (p *s3Presigner) GeneratePresignedURL(
	ctx context.Context,
	filePath string,
) (string, error) {
	if !p.isAllowedPath(filePath) {
		return "", fmt.Errorf("path %q is not allowed", filePath)
	}

	key := p.objectKey(filePath)
	now := time.Now()

	// Fast path: check cache under read lock.
	p.mu.RLock()
	if entry, ok := p.cache[key]; ok && now.Before(entry.expiresAt) {
		p.mu.RUnlock()

		return entry.url, nil
	}
	p.mu.RUnlock()

	// Slow path: acquire write lock and double-check.
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.cache[key]; ok && now.Before(entry.expiresAt) {
		return entry.url, nil
	}

	result, err := p.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return "", fmt.Errorf("presigning URL for %q: %w", key, err)
	}

	p.cache[key] = presignCacheEntry{
		url:       result.URL,
		expiresAt: now.Add(p.cacheTTL),
	}

	return result.URL, nil
}

// HeadObject returns the metadata of the object backing a run file path.
func (p *s3Presigner) HeadObject(
	ctx context.Context,
	filePath string,
) (*headObjectResult, error) {
	if !p.isAllowedPath(filePath) {
		return nil, fmt.Errorf("path %q is not allowed", filePath)
	}

	key := p.objectKey(filePath)

	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("heading object %q: %w", key, err)
	}

	result := &headObjectResult{ContentType: "application/octet-stream"}

	if out.ContentType != nil {
		result.ContentType = *out.ContentType
	}

	if out.ContentLength != nil {
		result.ContentLength = *out.ContentLength
	}

	return result, nil
}

// objectKey maps a run file path onto its bucket key under the prefix.
func (p *s3Presigner) objectKey(filePath string) string {
	return p.prefix + "/" + filePath
}

// isAllowedPath rejects empty, absolute, unclean, or traversal request paths.
func (p *s3Presigner) isAllowedPath(filePath string) bool {
	if filePath == "" {
		return false
	}

	// Reject path traversal.
	if strings.Contains(filePath, "..") {
		return false
	}

	// Reject absolute paths; keys are always prefix-relative.
	if strings.HasPrefix(filePath, "/") {
		return false
	}

	// Clean the path and ensure it didn't change meaning.
	return path.Clean(filePath) == filePath
}

// newFilesS3Client constructs an S3 client from the files storage config.
func newFilesS3Client(cfg *config.S3Config) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
