// Package photos issues presigned S3 upload URLs for fund and booking photos.
// The returned URI is stored on the profile record as an opaque handle.
package photos

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"entrypass/internal/platform/config"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// Kind is what the photo documents.
type Kind string

const (
	KindFund    Kind = "fund"
	KindBooking Kind = "booking"
)

var extensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/heic":      "heic",
	"application/pdf": "pdf",
}

// Presigner is the subset of *s3.PresignClient used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is a single-use upload target.
type Upload struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	URI       string            `json:"uri"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Service presigns uploads into one bucket.
type Service struct {
	presigner Presigner
	bucket    string
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
	newKey    func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// New builds a Service from configuration. Static credentials are used when
// both keys are set; otherwise the default AWS chain applies.
func New(ctx context.Context, cfg config.PhotoConfig, opts ...Option) (*Service, error) {
	if cfg.Bucket == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "photo bucket is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewWithPresigner(s3.NewPresignClient(client), cfg.Bucket, cfg.PresignTTL, opts...), nil
}

// NewWithPresigner builds a Service around an existing presigner.
func NewWithPresigner(p Presigner, bucket string, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	s := &Service{
		presigner: p,
		bucket:    bucket,
		ttl:       ttl,
		logger:    slog.Default(),
		now:       time.Now,
		newKey:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadURL presigns a PUT for a new object under users/{user}/{kind}/.
func (s *Service) UploadURL(ctx context.Context, userID id.UserID, kind Kind, contentType string) (*Upload, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user is required")
	}
	if kind != KindFund && kind != KindBooking {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported photo kind")
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := extensions[contentType]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported content type")
	}

	key := fmt.Sprintf("users/%s/%s/%s.%s", userID, kind, s.newKey(), ext)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		s.logger.ErrorContext(ctx, "presign upload failed",
			"user_id", userID.String(),
			"kind", string(kind),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "photo storage unavailable")
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for name, values := range req.SignedHeader {
		if len(values) > 0 && !strings.EqualFold(name, "host") {
			headers[name] = values[0]
		}
	}
	return &Upload{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   headers,
		URI:       "s3://" + s.bucket + "/" + key,
		ExpiresAt: s.now().Add(s.ttl),
	}, nil
}

// Owns reports whether uri is a handle this service issued for userID.
func (s *Service) Owns(userID id.UserID, uri string) bool {
	prefix := "s3://" + s.bucket + "/users/" + userID.String() + "/"
	return strings.HasPrefix(uri, prefix)
}
