package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EvidenceArchive keeps accepted evidence photos in S3 compatible storage.
type EvidenceArchive struct {
	client *s3.Client
	bucket string
}

type ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewEvidenceArchive builds an S3 client. A custom endpoint (MinIO) switches to path-style
// addressing; empty credentials fall back to the default AWS chain.
func NewEvidenceArchive(ctx context.Context, cfg ArchiveConfig) (*EvidenceArchive, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &EvidenceArchive{client: client, bucket: cfg.Bucket}, nil
}

// EvidenceKey lays objects out by upload date.
func EvidenceKey(authorID primitive.ObjectID, now time.Time) string {
	return fmt.Sprintf("evidence/%d/%02d/%02d/%s-%s", now.Year(), now.Month(), now.Day(), authorID.Hex(), uuid.NewString())
}

// Store uploads image and returns its object key.
func (a *EvidenceArchive) Store(ctx context.Context, authorID primitive.ObjectID, image []byte) (string, error) {
	key := EvidenceKey(authorID, time.Now().UTC())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image),
		ContentLength: aws.Int64(int64(len(image))),
		ContentType:   aws.String(http.DetectContentType(image)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence: %w", err)
	}
	return key, nil
}
