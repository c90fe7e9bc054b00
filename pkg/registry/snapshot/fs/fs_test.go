package fs_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/media-registry/pkg/registry/snapshot"
	"github.com/tendant/media-registry/pkg/registry/snapshot/fs"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	b, err := fs.New(fs.Config{BaseDir: tmp})
	require.NoError(t, err)

	ctx := context.Background()
	key := "registry/latest.json"

	require.NoError(t, b.Upload(ctx, key, bytes.NewReader([]byte("hello fs"))))

	rc, err := b.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello fs", string(got))

	// no temporary files left behind
	entries, err := os.ReadDir(filepath.Join(tmp, "registry"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, b.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(tmp, key))
	assert.True(t, os.IsNotExist(err))

	_, err = b.Download(ctx, key)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, key), snapshot.ErrNotFound)
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	b, err := fs.New(fs.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, b.Upload(ctx, "../outside.json", bytes.NewReader(nil)))
	_, err = b.Download(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}
