package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"land_leads_app_go/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrInvalidArchiveKey is returned for keys that do not name an inquiry archive
var ErrInvalidArchiveKey = errors.New("invalid archive key")

// StorageProvider stores inquiry archives
type StorageProvider interface {
	UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error)
	// Get returns the archive body and its content type
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	// GetSignedURL returns a temporary direct download link, or "" when the
	// backend has none and the archive must be streamed through Get.
	GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
	IsConfigured() bool
}

// StorageResult contains information about the stored file
type StorageResult struct {
	Key      string // Storage key/path
	FileName string
	FileSize int64
	MimeType string
	URL      string // Public or signed URL
}

// NewStorage picks Cloudflare R2 when it is configured and reachable, the local export dir otherwise
func NewStorage(ctx context.Context, cfg *config.Config) StorageProvider {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		log.Printf("Storage connection established (Local filesystem - path: %s)", cfg.ExportDir)
		return NewLocalStorage(cfg.ExportDir)
	}

	r2, err := NewR2Storage(ctx, cfg)
	if err != nil {
		log.Printf("[WARNING] Failed to initialize R2 storage: %v. Falling back to local storage.", err)
		return NewLocalStorage(cfg.ExportDir)
	}

	// Test R2 connection with HeadBucket
	headCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := r2.client.HeadBucket(headCtx, &s3.HeadBucketInput{Bucket: aws.String(cfg.R2BucketName)}); err != nil {
		log.Printf("[WARNING] R2 bucket connection test failed: %v. Falling back to local storage.", err)
		return NewLocalStorage(cfg.ExportDir)
	}

	log.Printf("Storage connection established (Cloudflare R2 - bucket: %s)", cfg.R2BucketName)
	return r2
}

// R2Storage implements StorageProvider for Cloudflare R2
type R2Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

// NewR2Storage creates a new R2 storage provider
func NewR2Storage(ctx context.Context, cfg *config.Config) (*R2Storage, error) {
	// R2 endpoint format: https://<account_id>.r2.cloudflarestorage.com
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)

	creds := credentials.NewStaticCredentialsProvider(
		cfg.R2AccessKeyID,
		cfg.R2SecretAccessKey,
		"",
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion("auto"), // R2 uses "auto" region
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.R2BucketName,
		publicURL: cfg.R2PublicURL,
	}, nil
}

// IsConfigured returns true if R2 is properly configured
func (r *R2Storage) IsConfigured() bool {
	return r.client != nil && r.bucket != ""
}

// UploadReader uploads content from a reader to R2
func (r *R2Storage) UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to upload to R2: %w", err)
	}

	return &StorageResult{
		Key:      key,
		FileName: filepath.Base(key),
		FileSize: size,
		MimeType: contentType,
		URL:      r.GetPublicURL(key),
	}, nil
}

// Get downloads an archive from the bucket
func (r *R2Storage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := ValidateArchiveKey(key); err != nil {
		return nil, "", err
	}
	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object from R2: %w", err)
	}

	contentType := aws.ToString(result.ContentType)
	if contentType == "" {
		contentType = XLSXContentType
	}
	return result.Body, contentType, nil
}

// GetSignedURL presigns a GET for the archive, forcing a download with its file name
func (r *R2Storage) GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if err := ValidateArchiveKey(key); err != nil {
		return "", err
	}
	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(r.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(key))),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign archive %s: %w", key, err)
	}
	return req.URL, nil
}

// GetPublicURL returns the archive URL under R2_PUBLIC_URL, or "" when the bucket is private
func (r *R2Storage) GetPublicURL(key string) string {
	if r.publicURL == "" {
		return ""
	}
	return strings.TrimSuffix(r.publicURL, "/") + "/" + key
}

// LocalStorage implements StorageProvider for local filesystem
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates a new local storage provider
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir}
}

// IsConfigured returns true (local storage is always available)
func (l *LocalStorage) IsConfigured() bool {
	return true
}

// UploadReader saves content from a reader to local filesystem
func (l *LocalStorage) UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error) {
	fullPath := filepath.Join(l.baseDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &StorageResult{
		Key:      key,
		FileName: filepath.Base(key),
		FileSize: written,
		MimeType: contentType,
	}, nil
}

// Get opens an archive under the export dir
func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := ValidateArchiveKey(key); err != nil {
		return nil, "", err
	}
	file, err := os.Open(filepath.Join(l.baseDir, filepath.FromSlash(key)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open archive: %w", err)
	}
	return file, XLSXContentType, nil
}

// GetSignedURL returns "": local archives are only reachable through Get
func (l *LocalStorage) GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return "", ValidateArchiveKey(key)
}

// GenerateArchiveKey creates a unique storage key for an inquiry export of campaign
func GenerateArchiveKey(campaign string, at time.Time) string {
	stamp := at.UTC().Format("20060102T150405Z")
	filename := fmt.Sprintf("%s_inquiries_%s_%s.xlsx", campaign, stamp, uuid.New().String()[:8])
	return path.Join(archivePrefix, campaign, filename)
}

const archivePrefix = "archives"

// ValidateArchiveKey accepts only clean keys of the form archives/<campaign>/<file>.xlsx
func ValidateArchiveKey(key string) error {
	parts := strings.Split(key, "/")
	if path.Clean(key) != key || len(parts) != 3 || parts[0] != archivePrefix ||
		parts[1] == ".." || !strings.HasSuffix(parts[2], ".xlsx") {
		return fmt.Errorf("%w: %q", ErrInvalidArchiveKey, key)
	}
	return nil
}
