// Package uploads stores user-submitted profile images in S3-compatible
// object storage and hands back public URLs.
package uploads

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/inkwell-io/inkwell/pkg/storage"
)

// allowed image extensions, lowercase
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// ErrUnsupportedImageType is returned for files outside the image
// extension allowlist.
var ErrUnsupportedImageType = fmt.Errorf("only jpg, jpeg, png and gif files are allowed")

// ImageStore uploads profile images to an S3 bucket.
type ImageStore struct {
	client *s3.Client
	bucket string
	cfg    storage.Config
	now    func() time.Time
}

// NewImageStore creates an image store from storage config. Static
// credentials are used when configured (MinIO, explicit keys); otherwise
// the default AWS credential chain applies.
func NewImageStore(ctx context.Context, cfg storage.Config) (*ImageStore, error) {
	var awsCfg aws.Config
	var err error

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &ImageStore{
		client: client,
		bucket: cfg.S3Bucket,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Put uploads an image under a timestamped key derived from the original
// filename and returns its public URL. The extension allowlist is checked
// before any bytes are read.
func (s *ImageStore) Put(ctx context.Context, filename string, content io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", ErrUnsupportedImageType
	}

	key := fmt.Sprintf("%d-%s", s.now().UnixMilli(), path.Base(filename))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return s.URL(key), nil
}

// URL returns the public URL for a stored object key.
func (s *ImageStore) URL(key string) string {
	if s.cfg.S3Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.cfg.S3Endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.cfg.S3Region, key)
}
