package snapshot_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/media-registry/pkg/registry"
	regmemory "github.com/tendant/media-registry/pkg/registry/repo/memory"
	"github.com/tendant/media-registry/pkg/registry/snapshot"
	"github.com/tendant/media-registry/pkg/registry/snapshot/memory"
)

func TestAutosave_SavesAfterEachMutation(t *testing.T) {
	ctx := context.Background()
	store := regmemory.New()
	archive := snapshot.NewArchive(memory.New(), nil)

	reg, err := registry.New(
		registry.WithStore(store),
		registry.WithMasterAuthority("root"),
		registry.WithEventSink(snapshot.NewAutosave(archive, store, "auto.json")),
	)
	require.NoError(t, err)

	id, err := reg.Register(ctx, "alice", registry.RegisterRequest{
		Title: "Sunset", SizeBytes: 10, Description: "Beach", Tags: []string{"nature"},
	})
	require.NoError(t, err)

	snap, err := archive.Read(ctx, "auto.json")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Sequence)
	require.Len(t, snap.Records, 1)

	require.NoError(t, reg.Delete(ctx, "alice", id))

	snap, err = archive.Read(ctx, "auto.json")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Sequence)
	assert.Empty(t, snap.Records)

	// a restart from the saved state does not hand out id 1 again
	restored := regmemory.New()
	loaded, err := archive.Load(ctx, "auto.json", restored)
	require.NoError(t, err)
	require.True(t, loaded)

	again, err := registry.New(registry.WithStore(restored), registry.WithMasterAuthority("root"))
	require.NoError(t, err)
	next, err := again.Register(ctx, "bob", registry.RegisterRequest{
		Title: "Dawn", SizeBytes: 5, Description: "Hills", Tags: []string{"sky"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next)
}

func TestAutosave_IgnoresCancelledContext(t *testing.T) {
	store := regmemory.New()
	_, err := store.Bootstrap(context.Background(), "root")
	require.NoError(t, err)
	archive := snapshot.NewArchive(memory.New(), nil)
	sink := snapshot.NewAutosave(archive, store, "auto.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sink.PermissionSet(ctx, 1, "bob", true))

	_, err = archive.Read(context.Background(), "auto.json")
	assert.NoError(t, err)
}
