package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxDeliverableFileSize is the upload limit for deliverable versions (200MB).
	MaxDeliverableFileSize = 200 * 1024 * 1024
	// MaxBrandAssetFileSize is the upload limit for brand assets (50MB).
	MaxBrandAssetFileSize = 50 * 1024 * 1024
	// FolderDeliverables is the S3 prefix for deliverable versions.
	FolderDeliverables = "deliverables"
	// FolderBrandAssets is the S3 prefix for brand assets.
	FolderBrandAssets = "brand-assets"
)

// extensionTypes maps accepted file extensions to MIME types.
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".zip":  "application/zip",
	".psd":  "image/vnd.adobe.photoshop",
	".ai":   "application/postscript",
	".ttf":  "font/ttf",
	".otf":  "font/otf",
	".woff": "font/woff",
	".txt":  "text/plain",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	DeliverablesBucket   string
	AssetsBucket         string
	PresignExpireMinutes int
}

// S3 provides S3 operations with validation and pre-signed URLs.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("deliverables_bucket", cfg.DeliverablesBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})
	return &S3{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ContentTypeForFilename returns the MIME type for a filename extension.
func ContentTypeForFilename(filename string) string {
	if ct, ok := extensionTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// AllowedFile reports whether a filename has an accepted extension.
func AllowedFile(filename string) bool {
	_, ok := extensionTypes[strings.ToLower(path.Ext(filename))]
	return ok
}

// sanitize keeps the base name and replaces characters S3 consoles render badly.
func sanitize(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}

// DeliverableKey returns deliverables/{client_id}/{post_id}/{object_id}-{filename}.
// The object id keeps keys unique when two uploads race for the same version.
func DeliverableKey(clientID, postID, objectID uuid.UUID, filename string) string {
	return path.Join(FolderDeliverables, clientID.String(), postID.String(), objectID.String()+"-"+sanitize(filename))
}

// BrandAssetKey returns brand-assets/{client_id}/{asset_id}-{filename}.
func BrandAssetKey(clientID, assetID uuid.UUID, filename string) string {
	return path.Join(FolderBrandAssets, clientID.String(), assetID.String()+"-"+sanitize(filename))
}

// GeneratePresignedDownloadURL returns a pre-signed GET URL for download.
func (s *S3) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// Upload streams a reader to S3 and returns the object URL.
func (s *S3) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) (string, error) {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key), nil
}

// DeleteObject removes an object from S3.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PutDeliverable uploads a deliverable version file.
func (s *S3) PutDeliverable(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	return s.Upload(ctx, s.cfg.DeliverablesBucket, key, contentType, body, size)
}

// DeleteDeliverable removes a deliverable version file.
func (s *S3) DeleteDeliverable(ctx context.Context, key string) error {
	return s.DeleteObject(ctx, s.cfg.DeliverablesBucket, key)
}

// DeliverableDownloadURL presigns a deliverable version for download.
func (s *S3) DeliverableDownloadURL(ctx context.Context, key string) (string, error) {
	return s.GeneratePresignedDownloadURL(ctx, s.cfg.DeliverablesBucket, key, s.PresignExpire())
}

// PutBrandAsset uploads a brand asset file.
func (s *S3) PutBrandAsset(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	return s.Upload(ctx, s.cfg.AssetsBucket, key, contentType, body, size)
}

// DeleteBrandAsset removes a brand asset file.
func (s *S3) DeleteBrandAsset(ctx context.Context, key string) error {
	return s.DeleteObject(ctx, s.cfg.AssetsBucket, key)
}

// BrandAssetDownloadURL presigns a brand asset for download.
func (s *S3) BrandAssetDownloadURL(ctx context.Context, key string) (string, error) {
	return s.GeneratePresignedDownloadURL(ctx, s.cfg.AssetsBucket, key, s.PresignExpire())
}
