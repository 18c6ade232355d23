// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config holds the Cloudflare R2 credentials and bucket.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
	Endpoint        string // overrides the account endpoint, e.g. a local S3 emulator
}

// ObjectStore uploads objects to an S3-compatible bucket.
type ObjectStore struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

func NewObjectStore(ctx context.Context, rc R2Config) (*ObjectStore, error) {
	if rc.Bucket == "" {
		return nil, fmt.Errorf("r2 bucket is not set")
	}
	endpoint := rc.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", rc.AccountID)
	}
	cdn := rc.CDNBaseURL
	if cdn == "" {
		cdn = endpoint + "/" + rc.Bucket
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			rc.AccessKeyID, rc.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &ObjectStore{client: client, bucket: rc.Bucket, cdnBaseURL: strings.TrimRight(cdn, "/")}, nil
}

// Put uploads body under key and returns its public URL.
func (s *ObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return s.URL(key), nil
}

func (s *ObjectStore) URL(key string) string {
	return fmt.Sprintf("%s/%s", s.cdnBaseURL, key)
}
