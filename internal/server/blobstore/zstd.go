package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Compressed stores blobs zstd-compressed in an inner Store and decompresses
// them on Get. Keys are passed through unchanged. Compressed output is staged
// in a temp file under dir so the inner store gets a seekable body of known
// length.
type Compressed struct {
	inner Store
	dir   string
	level zstd.EncoderLevel
}

// NewCompressed wraps inner with zstd compression at the default level.
// An empty dir means os.TempDir.
func NewCompressed(inner Store, dir string) *Compressed {
	return &Compressed{inner: inner, dir: dir, level: zstd.SpeedDefault}
}

func (c *Compressed) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	tmp, err := os.CreateTemp(c.dir, "zstd-*")
	if err != nil {
		return fmt.Errorf("compress spool: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return fmt.Errorf("compress %s: %w", key, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}

	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	return c.inner.Put(ctx, key, tmp, size)
}

func (c *Compressed) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &decompressingReader{dec: dec, src: rc}, nil
}

func (c *Compressed) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}

type decompressingReader struct {
	dec *zstd.Decoder
	src io.Closer
}

func (d *decompressingReader) Read(p []byte) (int, error) {
	return d.dec.Read(p)
}

func (d *decompressingReader) Close() error {
	d.dec.Close()
	return d.src.Close()
}
