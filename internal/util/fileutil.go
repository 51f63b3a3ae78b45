package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TempPattern names the partial files written before an atomic rename.
const TempPattern = ".dailysync-*.tmp"

// AtomicWrite writes r to dst through a temp file in the same directory, so
// readers never observe a partially written file.
func AtomicWrite(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dst), TempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = RemoveIfExists(tmp)
		return fmt.Errorf("failed to write: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = RemoveIfExists(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = RemoveIfExists(tmp)
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}

// CopyFile copies src to dst, overwriting dst unconditionally. Permission bits
// and the modification time of src are carried over. The copy is aborted when
// ctx is done.
func CopyFile(ctx context.Context, src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open src: %w", err)
	}

	defer func(in *os.File) {
		_ = in.Close()
	}(in)

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat src: %w", err)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create parent dir: %w", err)
	}

	out, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	tmp := out.Name()
	defer func() {
		if tmp != "" {
			_ = RemoveIfExists(tmp)
		}
	}()

	n, err := io.Copy(out, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("failed to copy: %w", err)
	}

	if err := out.Chmod(info.Mode().Perm()); err != nil {
		_ = out.Close()
		return n, fmt.Errorf("failed to set permissions: %w", err)
	}

	// Close before Chtimes, flushing may touch the modification time.
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chtimes(tmp, info.ModTime(), info.ModTime()); err != nil {
		return n, fmt.Errorf("failed to set timestamps: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		return n, fmt.Errorf("failed to rename: %w", err)
	}
	tmp = ""

	return n, nil
}

// RemoveIfExists deletes path. A path that does not exist is not an error.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
