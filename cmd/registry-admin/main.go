package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/media-registry/pkg/registry"
	"github.com/tendant/media-registry/pkg/registry/config"
	repopg "github.com/tendant/media-registry/pkg/registry/repo/postgres"
	"github.com/tendant/media-registry/pkg/registry/snapshot"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "registry-admin: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	masterAuthority string
	useJSON         bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "registry-admin",
		Short: "Media registry admin CLI",
		Long: `Administrative tool for the media registry. It talks to the configured store
directly, so it only needs database (or snapshot) access.

Configuration comes from REGISTRY_* environment variables; a .env file in the
current directory is loaded first.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.masterAuthority, "master-authority", "",
		"Master authority used if the store has not been initialized (overrides REGISTRY_MASTER_AUTHORITY)")
	cmd.PersistentFlags().BoolVar(&opts.useJSON, "json", false, "Output as JSON")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newStatsCmd(opts),
		newOwnerCmd(opts),
		newPermissionsCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newDeleteSnapshotCmd(opts),
	)
	return cmd
}

func loadConfig(opts *rootOptions) (*config.ServerConfig, error) {
	options := []config.Option{config.WithEnv()}
	if opts.masterAuthority != "" {
		options = append(options, config.WithMasterAuthority(opts.masterAuthority))
	}
	return config.Load(options...)
}

// withComponents builds the store and registry without metrics or audit
// logging, runs fn and releases the store.
func withComponents(cmd *cobra.Command, opts *rootOptions, fn func(cfg *config.ServerConfig, comps *config.Components) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	cfg.EnableMetrics = false
	cfg.EnableAuditLog = false

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	comps, err := cfg.BuildRegistry(cmd.Context(), logger, nil)
	if err != nil {
		return err
	}
	defer comps.Close()

	return fn(cfg, comps)
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.DatabaseType != "postgres" {
				return errors.New("migrate requires REGISTRY_DATABASE_URL to point at PostgreSQL")
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			if err := repopg.Migrate(cfg.DatabaseURL, cfg.DBSchema, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show registry statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(cfg *config.ServerConfig, comps *config.Components) error {
				stats, err := comps.Registry.VaultStatistics(cmd.Context())
				if err != nil {
					return err
				}
				if opts.useJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "TOTAL REGISTERED\t%d\n", stats.TotalRegistered)
				fmt.Fprintf(w, "MASTER AUTHORITY\t%s\n", stats.MasterAuthority)
				fmt.Fprintf(w, "DATABASE\t%s\n", cfg.DatabaseType)
				return w.Flush()
			})
		},
	}
}

func newOwnerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "owner <content-id>",
		Short: "Show the owner of a content record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseContentID(args[0])
			if err != nil {
				return err
			}
			return withComponents(cmd, opts, func(cfg *config.ServerConfig, comps *config.Components) error {
				owner, err := comps.Registry.OwnerOf(cmd.Context(), id)
				if err != nil {
					return err
				}
				if opts.useJSON {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"content_id": id, "owner": owner})
				}
				fmt.Fprintln(cmd.OutOrStdout(), owner)
				return nil
			})
		},
	}
}

func newPermissionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "permissions <content-id> <principal>",
		Short: "Show how a principal relates to a content record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseContentID(args[0])
			if err != nil {
				return err
			}
			principal := registry.Principal(args[1])
			return withComponents(cmd, opts, func(cfg *config.ServerConfig, comps *config.Components) error {
				report, err := comps.Registry.CheckPermissions(cmd.Context(), id, principal)
				if err != nil {
					return err
				}
				if opts.useJSON {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "EXPLICIT PERMISSION\t%t\n", report.HasExplicitPermission)
				fmt.Fprintf(w, "OWNER\t%t\n", report.IsOwner)
				fmt.Fprintf(w, "CAN ACCESS\t%t\n", report.CanAccess)
				return w.Flush()
			})
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [key]",
		Short: "Write a snapshot of the store to the snapshot archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(cfg *config.ServerConfig, comps *config.Components) error {
				if comps.Archive == nil {
					return errors.New("export requires REGISTRY_SNAPSHOT_URL")
				}
				key := cfg.SnapshotKey
				if len(args) == 1 {
					key = args[0]
				}
				if err := comps.SaveSnapshot(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot written to %s\n", key)
				return nil
			})
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <key>",
		Short: "Replace the PostgreSQL store state with a snapshot from the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(cfg *config.ServerConfig, comps *config.Components) error {
				if cfg.DatabaseType != "postgres" {
					return errors.New("import requires REGISTRY_DATABASE_URL to point at PostgreSQL")
				}
				if comps.Archive == nil {
					return errors.New("import requires REGISTRY_SNAPSHOT_URL")
				}
				importer, ok := comps.Store.(registry.Importer)
				if !ok {
					return errors.New("store does not support import")
				}
				loaded, err := comps.Archive.Load(cmd.Context(), args[0], importer)
				if err != nil {
					return err
				}
				if !loaded {
					return fmt.Errorf("no snapshot found at %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s imported\n", args[0])
				return nil
			})
		},
	}
}

func newDeleteSnapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-snapshot <key>",
		Short: "Remove a snapshot from the snapshot archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			blobs, err := cfg.BuildSnapshotStore(cmd.Context())
			if err != nil {
				return err
			}
			if blobs == nil {
				return errors.New("delete-snapshot requires REGISTRY_SNAPSHOT_URL")
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			if err := snapshot.NewArchive(blobs, logger).Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, snapshot.ErrNotFound) {
					return fmt.Errorf("no snapshot found at %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s deleted\n", args[0])
			return nil
		},
	}
}

func parseContentID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content id %q", raw)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
