// Package attachments stores inbound message attachments in S3-compatible object storage.
package attachments

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/models"
)

// Config holds S3 settings.
type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint points at an S3-compatible server (MinIO, LocalStack) and enables path-style addressing.
	Endpoint string
	Prefix   string
}

// Upload is one file to store.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes attachments to a bucket.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	log    logger.Logger
	now    func() time.Time
}

// NewS3Store creates a store from cfg. Static credentials are used when given,
// otherwise the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg Config, log logger.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("attachments bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg, log), nil
}

func newS3Store(client s3API, cfg Config, log logger.Logger) *S3Store {
	if log == nil {
		log = logger.Nop()
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "inbound"
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: prefix, log: log, now: time.Now}
}

// Save uploads u and returns its attachment descriptor.
func (s *S3Store) Save(ctx context.Context, u Upload) (models.Attachment, error) {
	key := path.Join(s.prefix, s.now().UTC().Format("2006/01/02"), uuid.NewString(), safeName(u.Filename))
	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        u.Body,
		ContentType: aws.String(contentType),
	}
	if u.Size > 0 {
		in.ContentLength = aws.Int64(u.Size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to upload attachment %s: %w", u.Filename, err)
	}

	s.log.Debug("attachment stored", "key", key, "size", u.Size)
	return models.Attachment{
		Filename:    u.Filename,
		ContentType: u.ContentType,
		Size:        u.Size,
		StorageKey:  key,
	}, nil
}

// safeName keeps the base name of a client-supplied filename.
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "attachment"
	}
	return name
}
