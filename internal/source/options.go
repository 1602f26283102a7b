package source

import (
	"log/slog"
)

// DefaultBlockSize is the cache block size used when none is given.
const DefaultBlockSize = 256 << 10

// S3Config configures the S3 client.
type S3Config struct {
	Region string `json:"region"`
	// Endpoint overrides the service endpoint, for S3-compatible stores.
	// Requests then use path-style addressing.
	Endpoint string `json:"endpoint"`
}

// MinioConfig configures the MinIO client. Endpoint overrides the host
// in minio:// URIs.
type MinioConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Secure    bool   `json:"secure"`
}

type options struct {
	mmap       bool
	cacheBytes int64
	blockSize  int64
	rateLimit  int64
	inflight   int64
	s3         S3Config
	s3Client   S3API
	minio      MinioConfig
	logger     *slog.Logger
}

// Option configures Open.
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{
		blockSize: DefaultBlockSize,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMmap maps local files into memory instead of reading them.
func WithMmap(on bool) Option {
	return func(o *options) { o.mmap = on }
}

// WithCache puts a block cache of at most budget bytes in front of remote
// sources. blockSize <= 0 means DefaultBlockSize.
func WithCache(budget, blockSize int64) Option {
	return func(o *options) {
		o.cacheBytes = budget
		if blockSize > 0 {
			o.blockSize = blockSize
		}
	}
}

// WithRateLimit caps remote reads at bytesPerSec. Zero means unlimited.
func WithRateLimit(bytesPerSec int64) Option {
	return func(o *options) { o.rateLimit = bytesPerSec }
}

// WithMaxInflight caps the number of concurrent remote requests.
func WithMaxInflight(n int64) Option {
	return func(o *options) { o.inflight = n }
}

// WithS3 configures the S3 client built for s3:// URIs.
func WithS3(cfg S3Config) Option {
	return func(o *options) { o.s3 = cfg }
}

// WithS3Client uses client for s3:// URIs instead of building one.
func WithS3Client(client S3API) Option {
	return func(o *options) { o.s3Client = client }
}

// WithMinio configures the client built for minio:// URIs.
func WithMinio(cfg MinioConfig) Option {
	return func(o *options) { o.minio = cfg }
}

// WithLogger sets the logger for open events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
