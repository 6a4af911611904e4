package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/mtsoor/pkg/config"
)

// Compile-time interface check.
var _ Source = (*s3Source)(nil)

type s3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source creates a Source backed by S3-compatible storage. Runs
// are expected as "directories" under the configured prefix, the
// layout the uploader produces.
func NewS3Source(cfg *config.S3Config) Source {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = config.DefaultS3Prefix
	}

	return &s3Source{
		client: newS3Client(cfg),
		bucket: cfg.Bucket,
		prefix: strings.TrimRight(prefix, "/"),
	}
}

// Name returns the source identifier.
func (s *s3Source) Name() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// ListRunDirs lists run directory names (common prefixes) under the
// configured prefix.
func (s *s3Source) ListRunDirs(ctx context.Context) ([]string, error) {
	prefix := s.prefix + "/"

	paginator := s3.NewListObjectsV2Paginator(
		s.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(s.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		},
	)

	var dirs []string

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf(
				"listing run prefixes under %q: %w", prefix, err,
			)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				// Extract the directory name: "runs/abc123/" -> "abc123".
				dirs = append(dirs, path.Base(strings.TrimRight(*cp.Prefix, "/")))
			}
		}
	}

	return dirs, nil
}

// GetRunFile reads {prefix}/{runDir}/{filename} from the bucket.
// Returns (nil, nil) when the key does not exist.
func (s *s3Source) GetRunFile(
	ctx context.Context, runDir, filename string,
) ([]byte, error) {
	key := s.prefix + "/" + runDir + "/" + filename

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return data, nil
}

// isS3NotFound returns true if the error indicates the object does not exist.
func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	// Some S3-compatible implementations return a generic error with
	// "NoSuchKey" in the message rather than the typed error.
	return strings.Contains(err.Error(), "NoSuchKey")
}

func newS3Client(cfg *config.S3Config) *s3.Client {
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
