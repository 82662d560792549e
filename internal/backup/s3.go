package backup

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/schiavigomme/hertz-invoicer/internal/common"
)

// S3Sink mirrors artifacts to an S3 bucket under an optional key prefix.
// Region and credentials come from the standard AWS environment chain.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink creates an S3 sink from the backup configuration.
func NewS3Sink(ctx context.Context, cfg common.BackupConfig) (*S3Sink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &S3Sink{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
	}, nil
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Store(ctx context.Context, relPath string, data []byte) error {
	key := relPath
	if s.prefix != "" {
		key = path.Join(s.prefix, relPath)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeFor(relPath)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

func contentTypeFor(relPath string) string {
	switch strings.ToLower(path.Ext(relPath)) {
	case ".xml":
		return "application/xml"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
