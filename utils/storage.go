package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MediaURLPrefix is where LocalStorage files are served from.
const MediaURLPrefix = "/media/"

// LocalStorage implements StorageService on local disk under MediaDir.
type LocalStorage struct {
	MediaDir string
}

func NewLocalStorage(mediaDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStorage{MediaDir: mediaDir}, nil
}

// resolve maps a storage key to a file under MediaDir, refusing anything
// that would escape it.
func (ls *LocalStorage) resolve(key string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if clean == "/" {
		return "", fmt.Errorf("empty storage key")
	}
	return filepath.Join(ls.MediaDir, filepath.FromSlash(clean)), nil
}

func (ls *LocalStorage) SaveFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	fullPath, err := ls.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, readerWithContext(ctx, r))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("short write for %s: %d of %d bytes", key, written, size)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", err
	}
	return MediaURLPrefix + strings.TrimPrefix(path.Clean("/"+key), "/"), nil
}

func (ls *LocalStorage) DeleteFile(ctx context.Context, p string) error {
	fullPath, err := ls.resolve(strings.TrimPrefix(p, MediaURLPrefix))
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// S3Storage implements StorageService for S3-compatible object storage.
type S3Storage struct {
	Client     *minio.Client
	BucketName string
	PublicURL  string
}

func NewS3Storage(ctx context.Context, endpoint, accessKey, secretKey, bucket, region, publicURL string, useSSL bool) (*S3Storage, error) {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	var creds *credentials.Credentials
	if accessKey == "" || secretKey == "" {
		// Fall back to instance role credentials.
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(accessKey, secretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	if publicURL == "" {
		protocol := "http"
		if useSSL {
			protocol = "https"
		}
		publicURL = fmt.Sprintf("%s://%s.%s", protocol, bucket, endpoint)
	}

	return &S3Storage{
		Client:     client,
		BucketName: bucket,
		PublicURL:  strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s3 *S3Storage) SaveFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s3.Client.PutObject(ctx, s3.BucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return s3.PublicURL + "/" + key, nil
}

// DeleteFile removes the object behind a public URL returned by SaveFile.
func (s3 *S3Storage) DeleteFile(ctx context.Context, p string) error {
	key := strings.TrimPrefix(strings.TrimPrefix(p, s3.PublicURL), "/")
	if key == "" {
		return nil
	}
	return s3.Client.RemoveObject(ctx, s3.BucketName, key, minio.RemoveObjectOptions{})
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// readerWithContext stops a copy once ctx is cancelled.
func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
