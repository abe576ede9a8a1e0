// Package backup ships database snapshots to S3-compatible object storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vigilator/vigil/pkg/core"
)

// ErrNotConfigured is returned when the backup target lacks required settings.
var ErrNotConfigured = errors.New("backup target not configured")

// Target describes the bucket snapshots are written to.
type Target struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Validate reports missing settings.
func (t Target) Validate() error {
	switch {
	case t.Endpoint == "":
		return fmt.Errorf("%w: endpoint is required", ErrNotConfigured)
	case t.Bucket == "":
		return fmt.Errorf("%w: bucket is required", ErrNotConfigured)
	case t.AccessKeyID == "" || t.SecretAccessKey == "":
		return fmt.Errorf("%w: credentials are required", ErrNotConfigured)
	}
	return nil
}

// endpoint splits a URL-style endpoint into host and TLS setting.
func (t Target) endpoint() (string, bool, error) {
	u, err := url.Parse(t.Endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	host := u.Host
	if host == "" {
		host = t.Endpoint
	}
	return host, t.UseSSL || u.Scheme == "https", nil
}

// Uploader writes snapshot files to a bucket.
type Uploader struct {
	client *minio.Client
	target Target
	logger core.Logger
}

// NewUploader creates a client for target.
func NewUploader(target Target, logger core.Logger) (*Uploader, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = core.NopLogger()
	}

	host, secure, err := target.endpoint()
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(target.AccessKeyID, target.SecretAccessKey, ""),
		Secure: secure,
		Region: target.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return &Uploader{client: client, target: target, logger: logger}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.target.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", u.target.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.target.Bucket, minio.MakeBucketOptions{Region: u.target.Region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", u.target.Bucket, err)
	}
	u.logger.Info("bucket created", "bucket", u.target.Bucket)
	return nil
}

// Upload copies the file at path to key.
func (u *Uploader) Upload(ctx context.Context, key, path string) (int64, error) {
	info, err := u.client.FPutObject(ctx, u.target.Bucket, key, path, minio.PutObjectOptions{
		ContentType: "application/vnd.sqlite3",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	u.logger.Info("snapshot uploaded", "bucket", u.target.Bucket, "key", key, "size", info.Size)
	return info.Size, nil
}

// SnapshotKey names a snapshot object for table taken at t.
func SnapshotKey(table string, t time.Time) string {
	return fmt.Sprintf("%s/%s.db", table, t.UTC().Format("20060102T150405Z"))
}

// Snapshot writes a consistent copy of store to a temporary file and
// uploads it. It returns the object key.
func Snapshot(ctx context.Context, store *core.SQLiteStore, u *Uploader) (string, error) {
	dir, err := os.MkdirTemp("", "vigil-snapshot-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if err := store.Backup(ctx, path); err != nil {
		return "", err
	}
	if err := u.EnsureBucket(ctx); err != nil {
		return "", err
	}

	key := SnapshotKey(store.Config().Table, time.Now())
	if _, err := u.Upload(ctx, key, path); err != nil {
		return "", err
	}
	return key, nil
}
