// Package storage archives raw candidate snapshots in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	listingapp "github.com/catalogsync/backend/internal/application/listing"
	"github.com/catalogsync/backend/internal/domain/listing"
	infraconfig "github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ listingapp.SnapshotArchiver = (*S3SnapshotArchiver)(nil)

var (
	ErrConfigRequired = errors.New("storage: configuration is required")
	ErrBucketRequired = errors.New("storage: bucket is required")
	ErrCandidateNil   = errors.New("storage: candidate is required")
)

// ObjectAPI is the subset of the S3 client the archiver uses
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// snapshot is the archived document
type snapshot struct {
	SupplierID uuid.UUID                 `json:"supplier_id"`
	ArchivedAt time.Time                 `json:"archived_at"`
	Candidate  *listing.CandidateListing `json:"candidate"`
}

// S3SnapshotArchiver writes one JSON document per supplier and source URL.
// Re-ingesting a URL overwrites the previous snapshot.
type S3SnapshotArchiver struct {
	client ObjectAPI
	bucket string
	logger *zap.Logger
	now    func() time.Time
}

// Option configures S3SnapshotArchiver
type Option func(*S3SnapshotArchiver)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *S3SnapshotArchiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(a *S3SnapshotArchiver) {
		a.now = now
	}
}

// NewS3SnapshotArchiver builds an archiver for any S3-compatible backend (AWS S3, MinIO, RustFS)
func NewS3SnapshotArchiver(cfg *infraconfig.StorageConfig, opts ...Option) (*S3SnapshotArchiver, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normalizeEndpoint(cfg.Endpoint))
		}
	})

	return NewS3SnapshotArchiverWithClient(client, cfg.Bucket, opts...)
}

// NewS3SnapshotArchiverWithClient builds an archiver on an existing client
func NewS3SnapshotArchiverWithClient(client ObjectAPI, bucket string, opts ...Option) (*S3SnapshotArchiver, error) {
	if bucket == "" {
		return nil, ErrBucketRequired
	}
	a := &S3SnapshotArchiver{
		client: client,
		bucket: bucket,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SnapshotKey returns candidates/{supplier_id}/{sha256(url)}.json
func SnapshotKey(supplierID uuid.UUID, sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return "candidates/" + supplierID.String() + "/" + hex.EncodeToString(sum[:]) + ".json"
}

// ArchiveCandidate stores the candidate and returns its object key
func (a *S3SnapshotArchiver) ArchiveCandidate(ctx context.Context, supplierID uuid.UUID, candidate *listing.CandidateListing) (string, error) {
	if candidate == nil {
		return "", ErrCandidateNil
	}

	body, err := json.Marshal(snapshot{
		SupplierID: supplierID,
		ArchivedAt: a.now().UTC(),
		Candidate:  candidate,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := SnapshotKey(supplierID, candidate.SourceURL)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
		Metadata: map[string]string{
			"supplier-id": supplierID.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	a.logger.Debug("Candidate snapshot archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(body)),
	)
	return key, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *S3SnapshotArchiver) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating snapshot bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Bucket returns the bucket name
func (a *S3SnapshotArchiver) Bucket() string {
	return a.bucket
}

func normalizeEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}
