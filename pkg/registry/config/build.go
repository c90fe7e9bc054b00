package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/media-registry/pkg/registry"
	"github.com/tendant/media-registry/pkg/registry/metrics"
	"github.com/tendant/media-registry/pkg/registry/repo/memory"
	repopg "github.com/tendant/media-registry/pkg/registry/repo/postgres"
	"github.com/tendant/media-registry/pkg/registry/snapshot"
)

// Components holds everything BuildRegistry wires together.
type Components struct {
	Registry registry.Registry
	Store    registry.Store

	// Archive is nil when no snapshot URL is configured.
	Archive *snapshot.Archive
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Metrics
	// Pool is nil for the memory store.
	Pool *pgxpool.Pool
}

// Close releases the database pool, if any.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// SaveSnapshot writes the store state to the archive. It is a no-op when
// no archive is configured or the store cannot export.
func (c *Components) SaveSnapshot(ctx context.Context, key string) error {
	exporter, ok := c.Store.(registry.Exporter)
	if c.Archive == nil || !ok {
		return nil
	}
	return c.Archive.Save(ctx, key, exporter)
}

// BuildRegistry creates the store, event sinks and registry described by
// the configuration. A memory store is seeded from the snapshot archive
// before the registry bootstraps it. promReg may be nil when metrics are
// disabled.
func (c *ServerConfig) BuildRegistry(ctx context.Context, logger *slog.Logger, promReg prometheus.Registerer) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	comps := &Components{}

	blobs, err := c.BuildSnapshotStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot store: %w", err)
	}
	if blobs != nil {
		comps.Archive = snapshot.NewArchive(blobs, logger)
	}

	switch c.DatabaseType {
	case "memory":
		store := memory.New()
		if comps.Archive != nil {
			if _, err := comps.Archive.Load(ctx, c.SnapshotKey, store); err != nil {
				return nil, fmt.Errorf("failed to restore snapshot: %w", err)
			}
		}
		comps.Store = store
	case "postgres":
		pool, err := repopg.Connect(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		comps.Pool = pool
		comps.Store = repopg.NewWithPool(pool)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	var sinks registry.MultiEventSink
	if c.EnableAuditLog {
		sinks = append(sinks, registry.NewLogEventSink(logger))
	}
	if c.EnableMetrics && promReg != nil {
		comps.Metrics = metrics.New(promReg)
		sinks = append(sinks, comps.Metrics.EventSink())
	}
	if c.DatabaseType == "memory" && comps.Archive != nil && c.SnapshotOnWrite {
		sinks = append(sinks, snapshot.NewAutosave(comps.Archive, comps.Store.(registry.Exporter), c.SnapshotKey))
	}

	options := []registry.Option{
		registry.WithStore(comps.Store),
		registry.WithMasterAuthority(registry.Principal(c.MasterAuthority)),
		registry.WithGrantCascade(c.GrantCascade),
		registry.WithLogger(logger),
	}
	if len(sinks) > 0 {
		options = append(options, registry.WithEventSink(sinks))
	}

	reg, err := registry.New(options...)
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	comps.Registry = reg

	logger.Info("registry ready",
		"database", c.DatabaseType,
		"snapshot", c.SnapshotURL != "",
		"snapshot_on_write", c.DatabaseType == "memory" && comps.Archive != nil && c.SnapshotOnWrite,
		"grant_cascade", c.GrantCascade,
		"metrics", comps.Metrics != nil)
	return comps, nil
}
