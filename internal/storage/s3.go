package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Config holds connection details for any S3-compatible provider.
type S3Config struct {
	Endpoint  string // empty for AWS proper
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Backend stores files in an S3-compatible bucket. Download references are
// provider presigned GET URLs with their own expiry semantics.
type S3Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expires time.Duration
}

func NewS3Backend(ctx context.Context, cfg S3Config, expires time.Duration) (*S3Backend, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("s3: Bucket, AccessKey and SecretKey are required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expires: expires,
	}, nil
}

func (b *S3Backend) Kind() Kind { return KindS3 }

// Store spools the stream to a scratch file first so the size limit and
// content hash are settled before any bytes reach the bucket. Nothing is
// written remotely for an oversized upload.
func (b *S3Backend) Store(ctx context.Context, fileID, filename string, r io.Reader, limit int64) (int64, string, error) {
	tmp, err := os.CreateTemp("", "s3upload-*")
	if err != nil {
		return 0, "", fmt.Errorf("s3: create scratch file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	sha := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, sha), io.LimitReader(r, limit+1))
	if err != nil {
		return 0, "", fmt.Errorf("s3: spool upload: %w", err)
	}
	if size > limit {
		return 0, "", ErrFileTooLarge
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return 0, "", fmt.Errorf("s3: rewind scratch file: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(ObjectKey(fileID, filename)),
		Body:          tmp,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return 0, "", mapS3Error(err)
	}
	return size, hex.EncodeToString(sha.Sum(nil)), nil
}

func (b *S3Backend) Open(ctx context.Context, fileID, filename string) (io.ReadCloser, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ObjectKey(fileID, filename)),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}
	return resp.Body, nil
}

func (b *S3Backend) DownloadURL(ctx context.Context, fileID, filename string, inline bool, _ string) (string, error) {
	disposition := fmt.Sprintf("attachment; filename=%q", SanitizeFilename(filename))
	if inline {
		disposition = fmt.Sprintf("inline; filename=%q", SanitizeFilename(filename))
	}

	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.bucket),
		Key:                        aws.String(ObjectKey(fileID, filename)),
		ResponseContentDisposition: aws.String(disposition),
	}, s3.WithPresignExpires(b.expires))
	if err != nil {
		return "", fmt.Errorf("s3: presign: %w", err)
	}
	return req.URL, nil
}

func (b *S3Backend) MaterializeLocal(ctx context.Context, fileID, filename string) (string, func(), error) {
	body, err := b.Open(ctx, fileID, filename)
	if err != nil {
		return "", nil, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "s3dl-*")
	if err != nil {
		return "", nil, fmt.Errorf("s3: create scratch file: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("s3: download object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}

	path := tmp.Name()
	return path, func() { os.Remove(path) }, nil
}

func (b *S3Backend) Delete(ctx context.Context, fileID, filename string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ObjectKey(fileID, filename)),
	})
	if err := mapS3Error(err); err != nil && err != ErrNotFound {
		return err
	}
	return nil
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch strings.ToLower(apiErr.ErrorCode()) {
		case "nosuchkey", "notfound", "404":
			return ErrNotFound
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return ErrNotFound
	}

	return err
}
