// Package s3 stores uploaded media in any S3-compatible bucket, including the
// S3 endpoint of the hosted storage API.
package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"

	"github.com/DammyCodes-all/framez-socials/internal/store"
)

const defaultMaxSize = 10 << 20

// Config describes the bucket and how to reach it.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL prefixes keys to form public URLs.
	PublicBaseURL string
	// MaxSize rejects larger uploads. Default: 10MiB
	MaxSize int64
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.PublicBaseURL == "" {
		return fmt.Errorf("public base URL is required")
	}
	return nil
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectStore implements store.ObjectStore.
type ObjectStore struct {
	api putObjectAPI
	cfg Config
}

var _ store.ObjectStore = (*ObjectStore)(nil)

// New builds an S3 client from cfg. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(api putObjectAPI, cfg Config) *ObjectStore {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultMaxSize
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return &ObjectStore{api: api, cfg: cfg}
}

// Upload buffers obj to checksum it and writes it only if the key is unused.
func (o *ObjectStore) Upload(ctx context.Context, obj store.Object) error {
	if obj.Key == "" || obj.Body == nil {
		return store.ErrInvalidInput
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(obj.Body, o.cfg.MaxSize+1))
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if n > o.cfg.MaxSize {
		return fmt.Errorf("%w: object exceeds %d bytes", store.ErrInvalidInput, o.cfg.MaxSize)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	checksum := checksumCRC64NVME(buf.Bytes())

	_, err = o.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(o.cfg.Bucket),
		Key:               aws.String(obj.Key),
		Body:              bytes.NewReader(buf.Bytes()),
		ContentLength:     aws.Int64(n),
		ContentType:       aws.String(contentType),
		CacheControl:      aws.String("max-age=3600"),
		IfNoneMatch:       aws.String("*"),
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc64nvme,
		ChecksumCRC64NVME: aws.String(checksum),
	})
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusPreconditionFailed {
			return store.ErrObjectExists
		}
		return fmt.Errorf("failed to put object %s: %w", obj.Key, err)
	}

	log.Debug().Str("key", obj.Key).Int64("bytes", n).Str("crc64nvme", checksum).Msg("object uploaded")

	return nil
}

func (o *ObjectStore) PublicURL(key string) string {
	return o.cfg.PublicBaseURL + "/" + key
}

func checksumCRC64NVME(data []byte) string {
	h := crc64nvme.New()
	_, _ = h.Write(data)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
