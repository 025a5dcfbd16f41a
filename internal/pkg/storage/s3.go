package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sosdesk/intake/internal/pkg/env"
)

// S3Config holds the settings of the optional S3 mirror.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	KeyPrefix       string
	Enabled         bool
}

// LoadS3Config loads the mirror configuration from environment variables
func LoadS3Config() (*S3Config, error) {
	cfg := &S3Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		KeyPrefix:       env.GetEnv("S3_KEY_PREFIX", "multimedia"),
		Enabled:         env.GetEnvBool("S3_MIRROR_ENABLED", false),
	}

	if cfg.Enabled {
		if cfg.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the S3 mirror is enabled")
		}
		if cfg.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the S3 mirror is enabled")
		}
		if cfg.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the S3 mirror is enabled")
		}
	}
	return cfg, nil
}

// ObjectKey maps a local file to its key in the bucket.
func (c *S3Config) ObjectKey(localPath string) string {
	name := filepath.Base(localPath)
	if c.KeyPrefix == "" {
		return name
	}
	return c.KeyPrefix + "/" + name
}

// S3Client uploads and removes mirrored objects.
type S3Client struct {
	s3Client *s3.Client
	config   *S3Config
}

// NewS3Client creates the client and checks the bucket is reachable.
func NewS3Client(ctx context.Context, cfg *S3Config) (*S3Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("S3 mirror is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		return nil, fmt.Errorf("bucket %s not accessible: %w", cfg.BucketName, err)
	}

	log.Infof("[Storage] S3 mirror ready for bucket: %s", cfg.BucketName)
	return &S3Client{s3Client: client, config: cfg}, nil
}

// UploadFile copies a local file to the bucket.
func (c *S3Client) UploadFile(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	key := c.config.ObjectKey(localPath)
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          io.Reader(file),
		ContentType:   aws.String(contentType(filepath.Ext(localPath))),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Infof("[Storage] Mirrored %s -> s3://%s/%s", localPath, c.config.BucketName, key)
	return key, nil
}

// DeleteFile removes the mirrored object of a local file.
func (c *S3Client) DeleteFile(ctx context.Context, localPath string) error {
	key := c.config.ObjectKey(localPath)
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func contentType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
