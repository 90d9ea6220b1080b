package blueprints

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/blueline/blueline/pkg/storage"
)

const (
	defaultUploadTTL   = 15 * time.Minute
	defaultDownloadTTL = 1 * time.Hour
	keyPrefix          = "blueprints"
)

// allowedContentTypes maps accepted upload content types to key extensions.
var allowedContentTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// presigner is the subset of s3.PresignClient the service uses.
type presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// UploadRequest describes the file a client wants to upload.
type UploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

// Upload holds a presigned PUT the client can use directly against S3.
type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrUnsupportedContentType is returned for upload types outside the
// allow-list.
var ErrUnsupportedContentType = fmt.Errorf("unsupported content type")

// Service issues presigned upload and download URLs.
type Service struct {
	presign presigner
	bucket  string
	newID   func() string
	now     func() time.Time
}

// NewService creates a blueprint service backed by S3.
func NewService(cfg storage.Config) (*Service, error) {
	ctx := context.Background()

	var awsConfig aws.Config
	var err error

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Service{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
		newID:   func() string { return uuid.New().String() },
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateUpload validates the request and returns a presigned PUT URL under a
// fresh object key.
func (s *Service) CreateUpload(ctx context.Context, req UploadRequest) (*Upload, error) {
	ext, ok := allowedContentTypes[strings.ToLower(req.ContentType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, req.ContentType)
	}

	key := path.Join(keyPrefix, s.newID()+ext)

	presigned, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = defaultUploadTTL
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &Upload{
		Key:       key,
		URL:       presigned.URL,
		Method:    presigned.Method,
		ExpiresAt: s.now().Add(defaultUploadTTL),
	}, nil
}

// DownloadURL returns a presigned GET URL for an existing blueprint key.
func (s *Service) DownloadURL(ctx context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, keyPrefix+"/") {
		return "", fmt.Errorf("invalid blueprint key: %s", key)
	}

	presigned, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = defaultDownloadTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}

	return presigned.URL, nil
}
