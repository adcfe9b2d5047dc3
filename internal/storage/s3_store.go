package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Store uploads artifacts to a bucket and hands out presigned GET URLs.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	expiry  time.Duration
}

func NewS3Store(ctx context.Context, region, bucket, prefix string, expiry time.Duration) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("artifact bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return NewS3StoreWithClient(client, bucket, prefix, expiry), nil
}

func NewS3StoreWithClient(client *s3.Client, bucket, prefix string, expiry time.Duration) *S3Store {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  prefix,
		expiry:  expiry,
	}
}

func (s *S3Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := s.prefix + name

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return "", fmt.Errorf("%w: %s", ErrArtifactExists, key)
		}
		return "", fmt.Errorf("failed to upload artifact to S3: %w", err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign artifact: %w", err)
	}
	if req.Method != http.MethodGet {
		return "", fmt.Errorf("unexpected presign method %s", req.Method)
	}

	return req.URL, nil
}
