package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	p, err := ls.SaveFile(ctx, "uploads/code/2025/07/27/ab_x.py", strings.NewReader("print(1)"), 8, "text/x-python")
	require.NoError(t, err)
	assert.Equal(t, "/media/uploads/code/2025/07/27/ab_x.py", p)

	data, err := os.ReadFile(filepath.Join(dir, "uploads", "code", "2025", "07", "27", "ab_x.py"))
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))

	require.NoError(t, ls.DeleteFile(ctx, p))
	_, err = os.Stat(filepath.Join(dir, "uploads", "code", "2025", "07", "27", "ab_x.py"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, ls.DeleteFile(ctx, p), "deleting twice is fine")
}

func TestLocalStorageStaysInsideMediaDir(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "media")
	ls, err := NewLocalStorage(dir)
	require.NoError(t, err)

	p, err := ls.SaveFile(context.Background(), "../../escape.txt", strings.NewReader("x"), 1, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/media/escape.txt", p)
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(parent, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageShortWrite(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = ls.SaveFile(context.Background(), "a.bin", strings.NewReader("abc"), 10, "")
	assert.Error(t, err)
}

func TestLocalStorageCancelled(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ls.SaveFile(ctx, "a.bin", strings.NewReader("abc"), 3, "")
	assert.ErrorIs(t, err, context.Canceled)
}
