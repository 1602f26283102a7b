package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

// fakeS3 serves objects from memory, honouring Range headers.
type fakeS3 struct {
	objects map[string][]byte
	gets    atomic.Int64
}

func (f *fakeS3) object(bucket, key *string) ([]byte, error) {
	b, ok := f.objects[aws.ToString(bucket)+"/"+aws.ToString(key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return b, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b, err := f.object(in.Bucket, in.Key)
	if err != nil {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(b)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets.Add(1)
	b, err := f.object(in.Bucket, in.Key)
	if err != nil {
		return nil, err
	}
	out := &s3.GetObjectOutput{}
	lo, hi := int64(0), int64(len(b))-1
	if in.Range != nil {
		if _, err := fmt.Sscanf(*in.Range, "bytes=%d-%d", &lo, &hi); err != nil {
			return nil, err
		}
		hi = min(hi, int64(len(b))-1)
		out.ContentRange = aws.String(fmt.Sprintf("bytes %d-%d/%d", lo, hi, len(b)))
	}
	out.Body = io.NopCloser(bytes.NewReader(b[lo : hi+1]))
	out.ContentLength = aws.Int64(hi - lo + 1)
	return out, nil
}

// counting records reads of the bytes it serves.
type counting struct {
	data   []byte
	reads  atomic.Int64
	active atomic.Int64
	peak   atomic.Int64
	hold   chan struct{}
}

func (c *counting) ReadAt(p []byte, off int64) (int, error) {
	c.reads.Add(1)
	now := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		old := c.peak.Load()
		if now <= old || c.peak.CompareAndSwap(old, now) {
			break
		}
	}
	if c.hold != nil {
		<-c.hold
	}
	return bytes.NewReader(c.data).ReadAt(p, off)
}

func (c *counting) Size() int64  { return int64(len(c.data)) }
func (c *counting) Close() error { return nil }

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Location
		bad  bool
	}{
		{in: "data/x.h5", want: Location{Scheme: "file", Path: "data/x.h5"}},
		{in: "file:///tmp/x.h5", want: Location{Scheme: "file", Path: "/tmp/x.h5"}},
		{in: "s3://bucket/dir/x.h5", want: Location{Scheme: "s3", Bucket: "bucket", Key: "dir/x.h5"}},
		{in: "minio://localhost:9000/b/k.h5", want: Location{Scheme: "minio", Host: "localhost:9000", Bucket: "b", Key: "k.h5"}},
		{in: "", bad: true},
		{in: "s3://bucket", bad: true},
		{in: "minio://host/bucket", bad: true},
		{in: "gs://bucket/key", bad: true},
	} {
		got, err := Parse(tc.in)
		if tc.bad {
			assert.ErrorIs(t, err, ErrScheme, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestSibling(t *testing.T) {
	loc, err := Parse("s3://b/runs/7/main.h5")
	require.NoError(t, err)
	assert.Equal(t, "s3://b/runs/7/other.h5", loc.Sibling("other.h5").String())
	assert.Equal(t, "s3://b/runs/shared.h5", loc.Sibling("../shared.h5").String())

	loc, err = Parse("/data/main.h5")
	require.NoError(t, err)
	assert.Equal(t, "/data/ext/a.h5", loc.Sibling("ext/a.h5").String())
	assert.Equal(t, "/abs.h5", loc.Sibling("/abs.h5").String())
	assert.False(t, loc.Remote())
}

func TestOpenLocal(t *testing.T) {
	data := pattern(10000)
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	for _, mmap := range []bool{false, true} {
		src, err := Open(context.Background(), path, WithMmap(mmap))
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), src.Size())

		buf := make([]byte, 100)
		n, err := src.ReadAt(buf, 500)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
		assert.Equal(t, data[500:600], buf)

		n, err = src.ReadAt(buf, int64(len(data)-40))
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 40, n)

		if m, ok := src.(Mappable); ok {
			assert.True(t, mmap)
			assert.Equal(t, data, m.Bytes())
		}
		require.NoError(t, src.Close())
	}

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = OpenFile(t.TempDir())
	assert.Error(t, err)
}

func TestOpenS3(t *testing.T) {
	data := pattern(5000)
	fake := &fakeS3{objects: map[string][]byte{"b/k.h5": data}}
	ctx := context.Background()

	src, err := Open(ctx, "s3://b/k.h5", WithS3Client(fake))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, int64(5000), src.Size())

	buf := make([]byte, 300)
	n, err := src.ReadAt(buf, 4800)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 200, n)
	assert.Equal(t, data[4800:], buf[:200])

	_, err = Open(ctx, "s3://b/missing.h5", WithS3Client(fake))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenS3Cached(t *testing.T) {
	data := pattern(64 << 10)
	fake := &fakeS3{objects: map[string][]byte{"b/k": data}}
	src, err := Open(context.Background(), "s3://b/k",
		WithS3Client(fake), WithCache(1<<20, 4096), WithRateLimit(64<<20), WithMaxInflight(4))
	require.NoError(t, err)
	c, ok := src.(*CachedSource)
	require.True(t, ok)

	buf := make([]byte, 10000)
	_, err = src.ReadAt(buf, 1000)
	require.NoError(t, err)
	assert.Equal(t, data[1000:11000], buf)
	gets := fake.gets.Load()

	_, err = src.ReadAt(buf, 1000)
	require.NoError(t, err)
	assert.Equal(t, gets, fake.gets.Load())
	assert.Equal(t, int64(3), c.Stats().Hits)
}

func TestCached(t *testing.T) {
	inner := &counting{data: pattern(1000)}
	c := Cached(inner, 400, 100)

	buf := make([]byte, 250)
	n, err := c.ReadAt(buf, 50)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, inner.data[50:300], buf)
	assert.Equal(t, int64(1), inner.reads.Load(), "one run for three missing blocks")

	_, err = c.ReadAt(buf[:40], 120)
	require.NoError(t, err)
	assert.Equal(t, inner.data[120:160], buf[:40])
	assert.Equal(t, int64(1), inner.reads.Load())

	// Reading blocks 5 through 7 overflows the 4-block budget.
	_, err = c.ReadAt(buf, 500)
	require.NoError(t, err)
	st := c.Stats()
	assert.Equal(t, int64(2), st.Evictions)
	assert.Equal(t, int64(400), st.Bytes)
	assert.Equal(t, int64(2), st.Fetches)

	n, err = c.ReadAt(buf, 900)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 100, n)
	assert.Equal(t, inner.data[900:], buf[:100])

	_, err = c.ReadAt(buf, 1000)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCachedConcurrent(t *testing.T) {
	inner := &counting{data: pattern(1 << 16)}
	c := Cached(inner, 1<<20, 1024)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			off := int64(i*1777) % (1<<16 - 3000)
			buf := make([]byte, 3000)
			if _, err := c.ReadAt(buf, off); err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(buf, inner.data[off:off+3000]) {
				errs <- fmt.Errorf("read at %d returned wrong bytes", off)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestThrottledInflight(t *testing.T) {
	inner := &counting{data: pattern(100), hold: make(chan struct{})}
	th := Throttled(inner, 0, 2)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 10)
			_, _ = th.ReadAt(buf, 0)
		}()
	}
	for range 6 {
		inner.hold <- struct{}{}
	}
	wg.Wait()
	assert.LessOrEqual(t, inner.peak.Load(), int64(2))
	assert.Equal(t, int64(6), inner.reads.Load())
}

func TestThrottledRate(t *testing.T) {
	inner := &counting{data: pattern(4096)}
	th := Throttled(inner, 1<<30, 0)
	buf := make([]byte, 4096)
	n, err := th.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, inner.data, buf)
	assert.Equal(t, int64(4096), th.Size())
}

func TestStage(t *testing.T) {
	data := pattern(3 << 20)
	fake := &fakeS3{objects: map[string][]byte{"b/big.h5": data}}
	dst := filepath.Join(t.TempDir(), "big.h5")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	n, err := Stage(context.Background(), "s3://b/big.h5", dst, WithS3Client(fake))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))

	_, err = Stage(context.Background(), "s3://b/none.h5", dst, WithS3Client(fake))
	assert.Error(t, err)
	got, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, len(data), len(got), "failed stage keeps the previous file")

	_, err = Stage(context.Background(), "/local/file", dst)
	assert.ErrorIs(t, err, ErrScheme)

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are removed")
}
