package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/natefinch/atomic"
)

// StagePartSize is the size of each concurrent part Stage downloads.
const StagePartSize = 8 << 20

// Stage downloads the s3:// object uri names to the local file dst and
// returns its size. dst is replaced atomically, so an interrupted
// download leaves any previous file in place.
func Stage(ctx context.Context, uri, dst string, opts ...Option) (int64, error) {
	loc, err := Parse(uri)
	if err != nil {
		return 0, err
	}
	if loc.Scheme != "s3" {
		return 0, fmt.Errorf("%w: staging needs an s3:// URI, got %q", ErrScheme, uri)
	}
	o := buildOptions(opts)
	client, err := s3Client(ctx, o)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	d := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = StagePartSize
	})
	n, err := d.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("staging %s: %w", loc, err)
	}
	if err := atomic.ReplaceFile(tmp.Name(), dst); err != nil {
		return 0, fmt.Errorf("staging %s: %w", loc, err)
	}
	o.logger.Info("staged", slog.String("uri", loc.String()), slog.String("path", dst), slog.Int64("bytes", n))
	return n, nil
}
