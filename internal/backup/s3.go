package backup

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// KeyPrefix is the folder snapshots are uploaded under.
const KeyPrefix = "notebook"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

type S3Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

type S3Sink struct {
	opts S3Options
}

func NewS3Sink(opts S3Options) *S3Sink {
	return &S3Sink{opts: opts}
}

func (s *S3Sink) client(ctx context.Context) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(s.opts.Region)}
	if s.opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.opts.AccessKey, s.opts.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.opts.BaseEndpoint)
			// MinIO and other self-hosted endpoints
			o.UsePathStyle = true
		}
	}), nil
}

func (s *S3Sink) Write(ctx context.Context, name string, data []byte) (string, error) {
	c, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	key := path.Join(KeyPrefix, name)
	_, err = putObject(c, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.opts.Bucket, key), nil
}
