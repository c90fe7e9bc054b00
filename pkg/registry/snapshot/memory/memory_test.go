package memory_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/media-registry/pkg/registry/snapshot"
	"github.com/tendant/media-registry/pkg/registry/snapshot/memory"
)

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	_, err := b.Download(ctx, "missing")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	require.NoError(t, b.Upload(ctx, "snap.json", bytes.NewReader([]byte("v1"))))
	require.NoError(t, b.Upload(ctx, "snap.json", bytes.NewReader([]byte("v2"))))

	rc, err := b.Download(ctx, "snap.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "v2", string(data))

	require.NoError(t, b.Delete(ctx, "snap.json"))
	assert.ErrorIs(t, b.Delete(ctx, "snap.json"), snapshot.ErrNotFound)
}
