// AngelaMos | 2026
// s3.go

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/carterperez-dev/tfg-registry/internal/config"
	"github.com/carterperez-dev/tfg-registry/internal/core"
)

const backendS3 = "s3"

// ObjectAPI is the slice of the S3 client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Config   config.S3Config
	Timeout  time.Duration
	MaxBytes int64
	Logger   *slog.Logger
	Recorder Recorder
	// Client overrides the SDK client built from Config.
	Client ObjectAPI
}

// S3Store keeps files in an S3-compatible bucket (AWS, MinIO, R2).
type S3Store struct {
	client   ObjectAPI
	bucket   string
	prefix   string
	baseURL  string
	timeout  time.Duration
	maxBytes int64
	logger   *slog.Logger
	rec      Recorder
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	cfg := opts.Config
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxRead
	}

	client := opts.Client
	if client == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}

	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.KeyPrefix,
		baseURL:  publicBase(cfg),
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		logger:   opts.Logger,
		rec:      opts.Recorder,
	}, nil
}

func publicBase(cfg config.S3Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

func (s *S3Store) Backend() string {
	return backendS3
}

func (s *S3Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// keyFor maps a public URL back to the object key.
func (s *S3Store) keyFor(fileURL string) (string, error) {
	if fileURL == "" {
		return "", core.E(core.CodeFileURLInvalid)
	}
	key, ok := strings.CutPrefix(fileURL, s.baseURL+"/")
	if !ok || key == "" {
		return "", core.E(core.CodeFileURLInvalid)
	}
	return key, nil
}

func (s *S3Store) Upload(
	ctx context.Context,
	data []byte,
	filename string,
) (_ string, err error) {
	start := time.Now()
	defer func() { s.rec.ObserveStorage(backendS3, opUpload, start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.prefix + uuid.New().String() + strings.ToLower(path.Ext(filename))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(data),
		ContentLength:      aws.Int64(int64(len(data))),
		ContentType:        aws.String("application/pdf"),
		ContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", filename)),
	})
	if err != nil {
		s.logger.Error("s3 upload failed", "key", key, "error", err)
		return "", core.E(core.CodeUploadFailed).Wrap(err)
	}

	return s.baseURL + "/" + key, nil
}

func (s *S3Store) Fetch(ctx context.Context, fileURL string) (_ []byte, err error) {
	start := time.Now()
	defer func() { s.rec.ObserveStorage(backendS3, opFetch, start, err) }()

	key, err := s.keyFor(fileURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("s3 fetch failed", "key", key, "error", err)
		return nil, core.E(core.CodeFileFetch).Wrap(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, s.maxBytes))
	if err != nil {
		return nil, core.E(core.CodeFileFetch).Wrap(err)
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, fileURL string) (err error) {
	start := time.Now()
	defer func() { s.rec.ObserveStorage(backendS3, opDelete, start, err) }()

	key, err := s.keyFor(fileURL)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		s.logger.Error("s3 delete failed", "key", key, "error", err)
		return core.E(core.CodeDeleteFailed).Wrap(err)
	}
	return nil
}
