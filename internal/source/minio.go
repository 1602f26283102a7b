package source

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioObject struct {
	ctx    context.Context
	client *minio.Client
	bucket string
	key    string
	size   int64
}

// NewMinioClient builds a client for endpoint. Without keys requests are
// anonymous.
func NewMinioClient(endpoint string, cfg MinioConfig) (*minio.Client, error) {
	opts := &minio.Options{Secure: cfg.Secure, Region: "us-east-1"}
	if cfg.AccessKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("source: minio client for %s: %w", endpoint, err)
	}
	return client, nil
}

func openMinio(ctx context.Context, loc Location, o options) (Source, error) {
	endpoint := loc.Host
	if o.minio.Endpoint != "" {
		endpoint = o.minio.Endpoint
	}
	client, err := NewMinioClient(endpoint, o.minio)
	if err != nil {
		return nil, err
	}
	info, err := client.StatObject(ctx, loc.Bucket, loc.Key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == 404 {
			return nil, fmt.Errorf("%s: %w", loc, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	return &minioObject{
		ctx:    context.WithoutCancel(ctx),
		client: client,
		bucket: loc.Bucket,
		key:    loc.Key,
		size:   info.Size,
	}, nil
}

func (b *minioObject) Size() int64 { return b.size }

func (b *minioObject) Close() error { return nil }

func (b *minioObject) ReadAt(p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := min(off+int64(len(p)), b.size) - 1
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return 0, err
	}
	obj, err := b.client.GetObject(b.ctx, b.bucket, b.key, opts)
	if err != nil {
		return 0, fmt.Errorf("minio %s/%s: %w", b.bucket, b.key, err)
	}
	defer obj.Close()

	want := int(end - off + 1)
	n, err := io.ReadFull(obj, p[:want])
	if err != nil {
		return n, fmt.Errorf("minio %s/%s: %w", b.bucket, b.key, err)
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}
