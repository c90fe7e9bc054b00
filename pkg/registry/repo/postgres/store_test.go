package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tendant/media-registry/pkg/registry"
	"github.com/tendant/media-registry/pkg/registry/repo/memory"
	"github.com/tendant/media-registry/pkg/registry/repo/postgres"
)

// setupTestDB starts PostgreSQL in a container, applies migrations and
// returns a pool. Skipped unless TEST_INTEGRATION is set.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("registry_test"),
		tcpostgres.WithUsername("registry"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://registry:test-password@%s:%s/registry_test?sslmode=disable", host, port.Port())
	require.NoError(t, postgres.Migrate(dsn, "", nil))
	// second run is a no-op
	require.NoError(t, postgres.Migrate(dsn, "", nil))

	pool, err := postgres.Connect(ctx, dsn, "")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newRecord(id uint64, owner registry.Principal) *registry.ContentRecord {
	return &registry.ContentRecord{
		ID:          id,
		Title:       fmt.Sprintf("clip %d", id),
		Owner:       owner,
		SizeBytes:   1024 * id,
		CreatedAt:   100 + id,
		Description: "sample clip",
		Tags:        []string{"video", "sample"},
	}
}

func TestPostgresStore(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := postgres.NewWithPool(pool)

	t.Run("Bootstrap", func(t *testing.T) {
		authority, err := store.Bootstrap(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, registry.Principal("root"), authority)

		authority, err = store.Bootstrap(ctx, "mallory")
		require.NoError(t, err)
		assert.Equal(t, registry.Principal("root"), authority)
	})

	t.Run("VaultAndSequence", func(t *testing.T) {
		err := store.Update(ctx, func(tx registry.Tx) error {
			id, err := tx.AdvanceSequence(ctx)
			if err != nil {
				return err
			}
			assert.Equal(t, uint64(1), id)
			if err := tx.InsertContent(ctx, newRecord(id, "alice")); err != nil {
				return err
			}
			return tx.SetGrant(ctx, id, "alice", true)
		})
		require.NoError(t, err)

		err = store.View(ctx, func(tx registry.Tx) error {
			got, err := tx.GetContent(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, newRecord(1, "alice"), got)

			_, err = tx.GetContent(ctx, 2)
			assert.ErrorIs(t, err, registry.ErrContentMissing)

			seq, err := tx.PeekSequence(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), seq)

			granted, err := tx.CheckGrant(ctx, 1, "alice")
			require.NoError(t, err)
			assert.True(t, granted)
			granted, err = tx.CheckGrant(ctx, 1, "bob")
			require.NoError(t, err)
			assert.False(t, granted)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("DuplicateInsert", func(t *testing.T) {
		err := store.Update(ctx, func(tx registry.Tx) error {
			return tx.InsertContent(ctx, newRecord(1, "bob"))
		})
		assert.ErrorIs(t, err, registry.ErrContentAlreadyExists)
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		err := store.Update(ctx, func(tx registry.Tx) error {
			if _, err := tx.AdvanceSequence(ctx); err != nil {
				return err
			}
			if err := tx.InsertContent(ctx, newRecord(2, "bob")); err != nil {
				return err
			}
			return registry.ErrOwnershipMismatch
		})
		assert.ErrorIs(t, err, registry.ErrOwnershipMismatch)

		err = store.View(ctx, func(tx registry.Tx) error {
			seq, err := tx.PeekSequence(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), seq)
			_, err = tx.GetContent(ctx, 2)
			assert.ErrorIs(t, err, registry.ErrContentMissing)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("RegistryOverPostgres", func(t *testing.T) {
		reg, err := registry.New(
			registry.WithStore(store),
			registry.WithMasterAuthority("root"),
			registry.WithClock(registry.NewManualClock(500)),
		)
		require.NoError(t, err)

		id, err := reg.Register(ctx, "carol", registry.RegisterRequest{
			Title: "poster", SizeBytes: 10, Description: "print", Tags: []string{"image"},
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), id)

		require.NoError(t, reg.SetPermission(ctx, "carol", id, "dave", true))
		require.NoError(t, reg.TransferOwnership(ctx, "carol", id, "dave"))

		report, err := reg.CheckPermissions(ctx, id, "dave")
		require.NoError(t, err)
		assert.Equal(t, registry.PermissionReport{HasExplicitPermission: true, IsOwner: true, CanAccess: true}, report)

		require.NoError(t, reg.Delete(ctx, "dave", id))
		_, err = reg.Retrieve(ctx, "dave", id)
		assert.ErrorIs(t, err, registry.ErrContentMissing)

		stats, err := reg.VaultStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, registry.Statistics{TotalRegistered: 2, MasterAuthority: "root"}, stats)
	})

	t.Run("ExportImport", func(t *testing.T) {
		snap, err := store.Export(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), snap.Sequence)
		assert.Equal(t, registry.Principal("root"), snap.MasterAuthority)
		require.Len(t, snap.Records, 1)
		// grants of the deleted record survive
		assert.Len(t, snap.Grants, 3)

		mem := memory.New()
		require.NoError(t, mem.Import(ctx, snap))
		again, err := mem.Export(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap, again)

		require.NoError(t, store.Import(ctx, snap))
		reimported, err := store.Export(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap, reimported)
	})
	t.Run("ConcurrentWritersQueueOnRecord", func(t *testing.T) {
		transferred := make(chan error, 1)

		err := store.Update(ctx, func(tx registry.Tx) error {
			record, err := tx.GetContent(ctx, 1)
			if err != nil {
				return err
			}

			// A second writer, as another replica would issue it.
			go func() {
				transferred <- store.Update(ctx, func(tx registry.Tx) error {
					current, err := tx.GetContent(ctx, 1)
					if err != nil {
						return err
					}
					current.Owner = "bob"
					return tx.ReplaceContent(ctx, current)
				})
			}()

			select {
			case err := <-transferred:
				return fmt.Errorf("second writer finished while the record was locked: %v", err)
			case <-time.After(300 * time.Millisecond):
			}

			record.Title = "edited clip"
			return tx.ReplaceContent(ctx, record)
		})
		require.NoError(t, err)
		require.NoError(t, <-transferred)

		err = store.View(ctx, func(tx registry.Tx) error {
			got, err := tx.GetContent(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "edited clip", got.Title)
			assert.Equal(t, registry.Principal("bob"), got.Owner)
			return nil
		})
		require.NoError(t, err)
	})
}
