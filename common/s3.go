package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config carries optional overrides; empty values fall back to the
// standard AWS config and credential chain.
type S3Config struct {
	Region  string
	Profile string
	// UsePathStyle forces path-style addressing for S3-compatible stores.
	UsePathStyle bool
}

// S3 wraps the SDK client with the narrow surface the pipeline needs:
// uploading finished videos and checking for prior uploads.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3(ctx context.Context, cfg S3Config, bucket, prefix string) (*S3, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	if prefix != "" {
		prefix = strings.Trim(prefix, "/") + "/"
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}, nil
}

// NewS3FromEnv returns a configured uploader, or nil when S3_BUCKET is
// unset, in which case uploads are skipped.
func NewS3FromEnv(ctx context.Context) *S3 {
	bucket := strings.TrimSpace(os.Getenv("S3_BUCKET"))
	if bucket == "" {
		return nil
	}
	cfg := S3Config{
		Region:       strings.TrimSpace(os.Getenv("S3_REGION")),
		Profile:      strings.TrimSpace(os.Getenv("S3_PROFILE")),
		UsePathStyle: strings.EqualFold(strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")), "true"),
	}
	client, err := NewS3(ctx, cfg, bucket, os.Getenv("S3_PREFIX"))
	if err != nil {
		log.Printf("[S3] Client init failed, uploads disabled: %v", err)
		return nil
	}
	return client
}

// Put streams an object to the configured bucket under the prefix.
func (s *S3) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := s.client.PutObject(ctx, in)
	return err
}

// UploadVideo uploads a finished story video and returns its object key.
func (s *S3) UploadVideo(ctx context.Context, storyID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	key := "stories/" + storyID + filepath.Ext(path)
	if err := s.Put(ctx, key, f, "video/mp4"); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	log.Printf("[S3] Uploaded %s to s3://%s/%s%s", filepath.Base(path), s.bucket, s.prefix, key)
	return s.prefix + key, nil
}

// Exists reports whether an object with the key is already present.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err == nil {
		return true, nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}
	return false, err
}

// Delete removes an object under the prefix.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	return err
}
