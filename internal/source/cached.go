package source

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// maxFetches bounds the concurrent backend reads of one ReadAt.
const maxFetches = 16

// CacheStats counts block cache activity.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Fetches   int64 // backend reads
	Evictions int64
	Bytes     int64 // currently cached
}

// CachedSource keeps recently read blocks of another source in memory.
// It is safe for concurrent use.
type CachedSource struct {
	inner     Source
	blockSize int64
	budget    int64

	mu    sync.Mutex
	lru   *list.List // of *block, most recent first
	index map[int64]*list.Element
	bytes int64

	flight singleflight.Group

	hits, misses, fetches, evictions atomic.Int64
}

type block struct {
	n    int64
	data []byte
}

// Cached wraps src with a block cache holding at most budget bytes.
// Missing blocks of one read are fetched in contiguous runs, several runs
// at once; concurrent reads of the same run share one fetch.
func Cached(src Source, budget, blockSize int64) *CachedSource {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachedSource{
		inner:     src,
		blockSize: blockSize,
		budget:    budget,
		lru:       list.New(),
		index:     make(map[int64]*list.Element),
	}
}

func (c *CachedSource) Size() int64 { return c.inner.Size() }

func (c *CachedSource) Close() error {
	c.mu.Lock()
	c.lru.Init()
	clear(c.index)
	c.bytes = 0
	c.mu.Unlock()
	return c.inner.Close()
}

// Stats returns a snapshot of the cache counters.
func (c *CachedSource) Stats() CacheStats {
	c.mu.Lock()
	n := c.bytes
	c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Fetches:   c.fetches.Load(),
		Evictions: c.evictions.Load(),
		Bytes:     n,
	}
}

func (c *CachedSource) ReadAt(p []byte, off int64) (int, error) {
	size := c.inner.Size()
	if off < 0 {
		return 0, fmt.Errorf("source: negative offset %d", off)
	}
	if off >= size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := min(off+int64(len(p)), size)
	first, last := off/c.blockSize, (end-1)/c.blockSize

	blocks, err := c.blocks(first, last)
	if err != nil {
		return 0, err
	}
	n := 0
	for b := first; b <= last; b++ {
		data := blocks[b-first]
		start := b * c.blockSize
		lo := max(off, start) - start
		hi := min(end, start+int64(len(data))) - start
		if lo >= hi {
			break
		}
		n += copy(p[max(off, start)-off:], data[lo:hi])
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// blocks returns the data of blocks first through last, reading the
// missing ones from the inner source.
func (c *CachedSource) blocks(first, last int64) ([][]byte, error) {
	out := make([][]byte, last-first+1)
	type run struct{ start, count int64 }
	var missing []run

	c.mu.Lock()
	for b := first; b <= last; b++ {
		if e, ok := c.index[b]; ok {
			c.lru.MoveToFront(e)
			out[b-first] = e.Value.(*block).data
			c.hits.Add(1)
			continue
		}
		c.misses.Add(1)
		if k := len(missing) - 1; k >= 0 && missing[k].start+missing[k].count == b {
			missing[k].count++
		} else {
			missing = append(missing, run{b, 1})
		}
	}
	c.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(maxFetches)
	for _, r := range missing {
		g.Go(func() error {
			key := strconv.FormatInt(r.start, 10) + "+" + strconv.FormatInt(r.count, 10)
			v, err, _ := c.flight.Do(key, func() (any, error) {
				return c.fetch(r.start, r.count)
			})
			if err != nil {
				return err
			}
			for i, data := range v.([][]byte) {
				out[r.start-first+int64(i)] = data
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetch reads count blocks from start in one request and caches them.
func (c *CachedSource) fetch(start, count int64) ([][]byte, error) {
	c.fetches.Add(1)
	off := start * c.blockSize
	n := min(count*c.blockSize, c.inner.Size()-off)
	buf := make([]byte, n)
	got, err := c.inner.ReadAt(buf, off)
	if err != nil && !(errors.Is(err, io.EOF) && int64(got) == n) {
		return nil, err
	}
	out := make([][]byte, count)
	for i := range out {
		lo := int64(i) * c.blockSize
		if lo >= n {
			break
		}
		out[i] = buf[lo:min(lo+c.blockSize, n):min(lo+c.blockSize, n)]
		c.put(start+int64(i), out[i])
	}
	return out, nil
}

func (c *CachedSource) put(n int64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[n]; ok || int64(len(data)) > c.budget {
		return
	}
	c.index[n] = c.lru.PushFront(&block{n: n, data: data})
	c.bytes += int64(len(data))
	for c.bytes > c.budget {
		e := c.lru.Back()
		b := e.Value.(*block)
		c.lru.Remove(e)
		delete(c.index, b.n)
		c.bytes -= int64(len(b.data))
		c.evictions.Add(1)
	}
}
