package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/config"
)

// ObjectPutter is the subset of the minio client used by S3Sink.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Sink uploads each batch as one object.
type S3Sink struct {
	Bucket  string
	Prefix  string
	Encoder Encoder

	client ObjectPutter
	now    func() time.Time
}

// NewS3Sink creates a sink for "s3://bucket/prefix" using the connection
// settings in cfg.
func NewS3Sink(rawURL string, cfg config.S3Config, enc Encoder) (*S3Sink, error) {
	bucket, prefix, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("archive.s3.endpoint is required for %s", rawURL)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return newS3Sink(client, bucket, prefix, enc), nil
}

func newS3Sink(client ObjectPutter, bucket, prefix string, enc Encoder) *S3Sink {
	return &S3Sink{
		Bucket:  bucket,
		Prefix:  prefix,
		Encoder: enc,
		client:  client,
		now:     time.Now,
	}
}

// WriteRows uploads the encoded batch.
func (s *S3Sink) WriteRows(ctx context.Context, batch cleaner.RowBatch) error {
	if len(batch.Rows) == 0 {
		return nil
	}
	data, err := s.Encoder.Bytes(batch)
	if err != nil {
		return fmt.Errorf("failed to encode %s rows: %w", batch.Table, err)
	}

	name := path.Join(s.Prefix, objectName(batch, s.now(), s.Encoder.Extension()))
	_, err = s.client.PutObject(ctx, s.Bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: s.Encoder.ContentType(),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.Bucket, name, err)
	}
	return nil
}

func parseS3URL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid archive path %q: %w", raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid archive path %q: expected s3://bucket/prefix", raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
