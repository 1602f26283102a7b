package source

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// objectServer answers path-style HEAD and ranged GET requests for a
// single bucket.
func objectServer(t *testing.T, bucket string, objects map[string][]byte) *httptest.Server {
	t.Helper()
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
		data, ok := objects[key]
		if b != bucket || !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeContent(w, r, key, modified, bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenMinio(t *testing.T) {
	data := pattern(20000)
	srv := objectServer(t, "b", map[string][]byte{"dir/k.h5": data})
	host := strings.TrimPrefix(srv.URL, "http://")
	ctx := context.Background()

	src, err := Open(ctx, "minio://"+host+"/b/dir/k.h5")
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, int64(len(data)), src.Size())

	buf := make([]byte, 1000)
	n, err := src.ReadAt(buf, 12345)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
	assert.Equal(t, data[12345:13345], buf)

	n, err = src.ReadAt(buf, int64(len(data)-10))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 10, n)
	assert.Equal(t, data[len(data)-10:], buf[:10])

	_, err = Open(ctx, "minio://"+host+"/b/missing.h5")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenMinioEndpointOverride(t *testing.T) {
	data := pattern(512)
	srv := objectServer(t, "b", map[string][]byte{"k": data})
	host := strings.TrimPrefix(srv.URL, "http://")

	src, err := Open(context.Background(), "minio://ignored:9000/b/k",
		WithMinio(MinioConfig{Endpoint: host}), WithCache(1<<16, 128))
	require.NoError(t, err)
	defer src.Close()

	got, err := io.ReadAll(io.NewSectionReader(src, 0, src.Size()))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
