package store

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"speech-coach-go/internal/config"
)

// Client is the temporary object store adapter backed by an S3-compatible
// service. References handed out by Put are plain object keys within one
// bucket.
type Client struct {
	mc     *minio.Client
	bucket string
}

func New(ctx context.Context, cfg config.StoreConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := c.mc.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func (c *Client) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	// GetObject is lazy; stat now so a missing key fails here, not mid-read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat %s: %w", ref, err)
	}
	return obj, nil
}

func (c *Client) Stat(ctx context.Context, ref string) (int64, error) {
	info, err := c.mc.StatObject(ctx, c.bucket, ref, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", ref, err)
	}
	return info.Size, nil
}

func (c *Client) Delete(ctx context.Context, ref string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}
