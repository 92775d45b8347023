package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fleetpeer-io/fleetpeer/pkg/log"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

type minioArchiver struct {
	client     *minio.Client
	bucketName string
	region     string
	logger     log.Logger
}

// NewMinIOArchiver creates an S3 archiver. No request is made until the
// first call.
func NewMinIOArchiver(opts *options.S3Options) (Archiver, error) {
	if !opts.Enabled() {
		return nil, fmt.Errorf("s3 endpoint is not configured")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &minioArchiver{
		client:     client,
		bucketName: opts.BucketName,
		region:     opts.Region,
		logger:     log.WithName("storage").WithValues("bucket", opts.BucketName),
	}, nil
}

func (a *minioArchiver) CheckBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	a.logger.Info("Bucket does not exist, creating")
	if err := a.client.MakeBucket(ctx, a.bucketName, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (a *minioArchiver) Put(ctx context.Context, key string, data []byte) error {
	info, err := a.client.PutObject(ctx, a.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	a.logger.Debug("Snapshot uploaded", "key", key, "size", info.Size)
	return nil
}
