package storage

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

// SnapshotConfig holds configuration for S3-compatible snapshot storage
type SnapshotConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// SnapshotArchiver uploads raw detail-page HTML to S3-compatible storage so
// pages that yielded no contact candidates can be inspected later.
type SnapshotArchiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewSnapshotArchiver creates a new snapshot archiver
func NewSnapshotArchiver(ctx context.Context, cfg SnapshotConfig) (*SnapshotArchiver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &SnapshotArchiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
	}, nil
}

// Save uploads one detail-page snapshot. The key carries the listing and the
// attempt number so repeated fetches never overwrite each other.
func (a *SnapshotArchiver) Save(ctx context.Context, externalID string, attempt int, html []byte) (string, error) {
	key := fmt.Sprintf("%s-%d.html", externalID, attempt)
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(html),
		ContentType: aws.String("text/html"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}
