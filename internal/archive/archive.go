// Package archive copies rendered workbooks to object storage.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/leapstack-labs/leapreport/pkg/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Archiver stores a copy of a finished report and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, path string) (string, error)
}

// S3Config locates the archive bucket.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the S3 endpoint for S3-compatible stores; path-style
	// addressing is used when it is set.
	Endpoint string
}

type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver uploads reports to an S3 bucket.
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader uploadAPI
	logger   *slog.Logger
}

// NewS3Archiver loads the default AWS credential chain and builds an
// uploader for cfg.Bucket.
func NewS3Archiver(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket not specified")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(cfg, manager.NewUploader(client), logger), nil
}

func newS3Archiver(cfg S3Config, up uploadAPI, logger *slog.Logger) *S3Archiver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &S3Archiver{
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		uploader: up,
		logger:   logger,
	}
}

// Key returns the object key a file is stored under.
func (a *S3Archiver) Key(file string) string {
	return path.Join(a.prefix, filepath.Base(file))
}

// Archive uploads the file at p and returns its s3:// URI.
func (a *S3Archiver) Archive(ctx context.Context, p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", &core.IOError{Op: "archive", Path: p, Err: err}
	}
	defer func() { _ = f.Close() }()

	key := a.Key(p)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(xlsxContentType),
	})
	if err != nil {
		return "", &core.IOError{Op: "archive", Path: p, Err: err}
	}

	uri := "s3://" + a.bucket + "/" + key
	a.logger.Info("report archived", slog.String("uri", uri))
	return uri, nil
}

var _ Archiver = (*S3Archiver)(nil)
