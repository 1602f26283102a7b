// Package source provides the random-access byte sources HDF5 files are
// read from: local files, memory mappings, S3 objects and MinIO objects,
// with optional block caching and throttling in front of remote ones.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
)

// Source is a read-only, random-access byte source.
type Source interface {
	io.ReaderAt
	io.Closer
	// Size returns the length of the source in bytes.
	Size() int64
}

// Mappable is implemented by sources whose bytes are in memory.
type Mappable interface {
	// Bytes returns the underlying bytes, valid until Close.
	Bytes() []byte
}

var (
	// ErrNotFound is returned for a missing object. It matches
	// os.ErrNotExist.
	ErrNotFound = os.ErrNotExist
	// ErrScheme is returned for URIs this package cannot open.
	ErrScheme = errors.New("source: unsupported URI")
	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("source: closed")
)

// Location is a parsed source URI.
type Location struct {
	Scheme string // "file", "s3" or "minio"
	Host   string // minio only
	Bucket string
	Key    string
	Path   string // file only
}

// String formats the location back into a URI. Files come back as plain
// paths.
func (l Location) String() string {
	switch l.Scheme {
	case "s3":
		return "s3://" + l.Bucket + "/" + l.Key
	case "minio":
		return "minio://" + l.Host + "/" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Sibling returns the location of name relative to the directory l is
// in. Absolute file names are returned unchanged.
func (l Location) Sibling(name string) Location {
	if l.Scheme == "file" {
		if !path.IsAbs(name) {
			name = path.Join(path.Dir(l.Path), name)
		}
		return Location{Scheme: "file", Path: name}
	}
	n := l
	n.Key = strings.TrimPrefix(path.Join(path.Dir(l.Key), name), "/")
	return n
}

// Remote reports whether the location is an object store.
func (l Location) Remote() bool { return l.Scheme == "s3" || l.Scheme == "minio" }

// Parse parses a plain path, file://path, s3://bucket/key or
// minio://host[:port]/bucket/key.
func Parse(uri string) (Location, error) {
	if !strings.Contains(uri, "://") {
		if uri == "" {
			return Location{}, fmt.Errorf("%w: empty path", ErrScheme)
		}
		return Location{Scheme: "file", Path: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrScheme, err)
	}
	switch u.Scheme {
	case "file":
		p := u.Path
		if u.Host != "" && u.Host != "localhost" {
			p = u.Host + p
		}
		return Location{Scheme: "file", Path: p}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("%w: %q needs a bucket and a key", ErrScheme, uri)
		}
		return Location{Scheme: "s3", Bucket: u.Host, Key: key}, nil
	case "minio":
		bucket, key, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" || key == "" {
			return Location{}, fmt.Errorf("%w: %q needs a host, a bucket and a key", ErrScheme, uri)
		}
		return Location{Scheme: "minio", Host: u.Host, Bucket: bucket, Key: key}, nil
	}
	return Location{}, fmt.Errorf("%w: scheme %q", ErrScheme, u.Scheme)
}

// Open opens the source uri names. Remote sources are throttled and
// cached when the options ask for it.
func Open(ctx context.Context, uri string, opts ...Option) (Source, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	return OpenLocation(ctx, loc, opts...)
}

// OpenLocation opens a parsed location.
func OpenLocation(ctx context.Context, loc Location, opts ...Option) (Source, error) {
	o := buildOptions(opts)
	var (
		src Source
		err error
	)
	switch loc.Scheme {
	case "file":
		if o.mmap {
			src, err = OpenMapped(loc.Path)
		} else {
			src, err = OpenFile(loc.Path)
		}
	case "s3":
		src, err = openS3(ctx, loc, o)
	case "minio":
		src, err = openMinio(ctx, loc, o)
	default:
		err = fmt.Errorf("%w: scheme %q", ErrScheme, loc.Scheme)
	}
	if err != nil {
		return nil, err
	}
	o.logger.Debug("source opened",
		slog.String("uri", loc.String()),
		slog.Int64("size", src.Size()),
		slog.Bool("mmap", o.mmap && loc.Scheme == "file"))

	if !loc.Remote() {
		return src, nil
	}
	if o.rateLimit > 0 || o.inflight > 0 {
		src = Throttled(src, o.rateLimit, o.inflight)
	}
	if o.cacheBytes > 0 {
		src = Cached(src, o.cacheBytes, o.blockSize)
	}
	return src, nil
}
