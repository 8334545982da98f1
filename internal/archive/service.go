// Package archive stores raw CSV uploads in S3-compatible object storage so
// imports can be audited or replayed later. Archival is best effort: a failed
// write never fails the import that triggered it.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ContentTypeCSV is the content type recorded on archived objects.
const ContentTypeCSV = "text/csv"

// Validation errors
var (
	ErrEmptyBody     = errors.New("archive body is empty")
	ErrInvalidUserID = errors.New("invalid user ID")
)

// Service writes uploaded CSV files to an S3-compatible bucket.
type Service struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	urlExpiry     time.Duration
	timeNow       func() time.Time // For testability
}

// ServiceConfig holds configuration for the archive service.
type ServiceConfig struct {
	BucketName       string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	Region           string
	URLExpiryMinutes int // Default: 15 minutes
}

// NewService creates a new archive service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 15
	}

	// Path-style addressing keeps the client compatible with R2 and MinIO.
	s3Client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	presignClient := s3.NewPresignClient(s3Client)

	return &Service{
		s3Client:      s3Client,
		presignClient: presignClient,
		bucketName:    cfg.BucketName,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		timeNow:       time.Now,
	}, nil
}

// ObjectKey creates a unique object key for an archived upload.
// Pattern: imports/{userID}/{timestamp}-{uuid}.csv
func (s *Service) ObjectKey(userID string) (string, error) {
	sanitized := sanitizePathComponent(userID)
	if sanitized == "" {
		return "", ErrInvalidUserID
	}

	stamp := s.timeNow().UTC().Format("20060102T150405")
	return fmt.Sprintf("imports/%s/%s-%s.csv", sanitized, stamp, uuid.New().String()), nil
}

// sanitizePathComponent removes potentially dangerous characters from path components.
func sanitizePathComponent(s string) string {
	// Only allow alphanumeric, hyphens, and underscores
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Store writes the raw CSV body to the bucket and returns the object key.
func (s *Service) Store(ctx context.Context, userID string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", ErrEmptyBody
	}

	key, err := s.ObjectKey(userID)
	if err != nil {
		return "", err
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(ContentTypeCSV),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive upload: %w", err)
	}

	return key, nil
}

// SignedDownloadURL generates a pre-signed GET URL for a previously archived object.
func (s *Service) SignedDownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	presignedReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign request: %w", err)
	}

	return presignedReq.URL, s.timeNow().Add(s.urlExpiry), nil
}

// BucketName returns the bucket the service writes to.
func (s *Service) BucketName() string {
	return s.bucketName
}
