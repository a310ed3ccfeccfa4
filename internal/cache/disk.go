package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/spf13/afero"
	"github.com/vmihailenco/msgpack/v5"
)

// DiskOptions configures a Disk cache.
type DiskOptions struct {
	// Fs is the filesystem entries are written to. Defaults to the OS.
	Fs afero.Fs
	// Root is the cache directory.
	Root string
	// TTL is stamped on every entry; zero disables expiry.
	TTL time.Duration
	Now func() time.Time
}

// Disk stores msgpack-encoded entries under Root, sharded by the first two
// hex characters of the key's sha256 digest. It never returns I/O errors:
// failures count as misses and are tallied in Stats.Errors.
type Disk[V any] struct {
	fs   afero.Fs
	root string
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	stats Stats
}

var _ Cache[string] = (*Disk[string])(nil)

// NewDisk creates a disk cache rooted at opts.Root.
func NewDisk[V any](opts DiskOptions) *Disk[V] {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Disk[V]{fs: opts.Fs, root: opts.Root, ttl: opts.TTL, now: opts.Now}
}

// Path returns the file an entry for key is stored in.
func (d *Disk[V]) Path(key string) string {
	hex := digest.FromString(key).Encoded()
	return filepath.Join(d.root, hex[:2], hex)
}

func (d *Disk[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	logger := ctxlog.FromContext(ctx)
	path := d.Path(key)

	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
			logger.Warn("Failed to read disk cache entry.", "key", key, "path", path, "error", err)
			d.count(func(s *Stats) { s.Errors++ })
		}
		d.count(func(s *Stats) { s.Misses++ })
		return zero, false
	}

	var e Entry[V]
	if err := msgpack.Unmarshal(data, &e); err != nil {
		logger.Warn("Failed to decode disk cache entry.", "key", key, "path", path, "error", err)
		d.count(func(s *Stats) { s.Errors++; s.Misses++ })
		return zero, false
	}
	if e.Key != key {
		// Digest collision or a foreign file in the cache directory.
		d.count(func(s *Stats) { s.Misses++ })
		return zero, false
	}
	if e.Expired(d.now()) {
		_ = d.fs.Remove(path)
		d.count(func(s *Stats) { s.Expirations++; s.Misses++ })
		return zero, false
	}

	d.count(func(s *Stats) { s.Hits++ })
	return e.Value, true
}

func (d *Disk[V]) Put(ctx context.Context, key string, v V) {
	logger := ctxlog.FromContext(ctx)
	path := d.Path(key)

	data, err := msgpack.Marshal(&Entry[V]{Key: key, Value: v, Timestamp: d.now(), TTL: d.ttl})
	if err != nil {
		logger.Warn("Failed to encode disk cache entry.", "key", key, "error", err)
		d.count(func(s *Stats) { s.Errors++ })
		return
	}
	if err := d.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("Failed to create disk cache shard.", "path", path, "error", err)
		d.count(func(s *Stats) { s.Errors++ })
		return
	}
	if err := afero.WriteFile(d.fs, path, data, 0o644); err != nil {
		logger.Warn("Failed to write disk cache entry.", "path", path, "error", err)
		d.count(func(s *Stats) { s.Errors++ })
	}
}

func (d *Disk[V]) Invalidate(ctx context.Context, key string) {
	path := d.Path(key)
	if err := d.fs.Remove(path); err != nil && !os.IsNotExist(err) && !errors.Is(err, fs.ErrNotExist) {
		ctxlog.FromContext(ctx).Warn("Failed to remove disk cache entry.", "path", path, "error", err)
		d.count(func(s *Stats) { s.Errors++ })
	}
}

func (d *Disk[V]) Clear(ctx context.Context) {
	if err := d.fs.RemoveAll(d.root); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to clear disk cache.", "root", d.root, "error", err)
		d.count(func(s *Stats) { s.Errors++ })
	}
}

// Stats walks the cache directory to report the current entry count.
func (d *Disk[V]) Stats() Stats {
	size := 0
	_ = afero.Walk(d.fs, d.root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size++
		}
		return nil
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Size = size
	return s
}

func (d *Disk[V]) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}
