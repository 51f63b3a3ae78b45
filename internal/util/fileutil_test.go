package util

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "nested", "settings.json")

	require.NoError(t, AtomicWrite(dst, bytes.NewBufferString("first")))
	require.NoError(t, AtomicWrite(dst, bytes.NewBufferString("second")))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCopyFilePreservesContentAndModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "out", "deep", "dst.txt")

	require.NoError(t, os.WriteFile(src, []byte("hello world"), 0640))
	mtime := time.Date(2020, 5, 17, 10, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	n, err := CopyFile(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), "mtime %v", info.ModTime())
}

func TestCopyFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	require.NoError(t, os.WriteFile(src, []byte("new"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("old and longer"), 0644))

	_, err := CopyFile(context.Background(), src, dst)
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()

	_, err := CopyFile(context.Background(), filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopyFileCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CopyFile(ctx, src, dst)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unit.service")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	require.NoError(t, RemoveIfExists(path))
	assert.NoFileExists(t, path)

	require.NoError(t, RemoveIfExists(path))

	full := filepath.Join(dir, "full")
	require.NoError(t, os.MkdirAll(filepath.Join(full, "child"), 0755))
	err := RemoveIfExists(full)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove")
}

func TestCopyFileLeavesNoTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	dstDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(dstDir, "taken", "child"), 0755))

	_, err := CopyFile(context.Background(), src, filepath.Join(dstDir, "taken"))
	require.Error(t, err)

	tmps, err := filepath.Glob(filepath.Join(dstDir, TempPattern))
	require.NoError(t, err)
	assert.Empty(t, tmps)
}
