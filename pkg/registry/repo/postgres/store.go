package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/media-registry/pkg/registry"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

var (
	_ registry.Store    = (*Store)(nil)
	_ registry.Exporter = (*Store)(nil)
	_ registry.Importer = (*Store)(nil)
)

// Store implements registry.Store using PostgreSQL
type Store struct {
	pool *pgxpool.Pool
}

// NewWithPool creates a new PostgreSQL store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", operation, registry.ErrContentAlreadyExists)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: required field %s is missing", operation, pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (s *Store) Bootstrap(ctx context.Context, authority registry.Principal) (registry.Principal, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO registry_state (id, sequence, master_authority)
		VALUES (1, 0, $1)
		ON CONFLICT (id) DO NOTHING`, authority.String())
	if err != nil {
		return "", handlePostgresError("bootstrap", err)
	}

	var recorded string
	if err := s.pool.QueryRow(ctx, `SELECT master_authority FROM registry_state WHERE id = 1`).Scan(&recorded); err != nil {
		return "", handlePostgresError("bootstrap", err)
	}
	return registry.Principal(recorded), nil
}

// Update runs fn in a read-write transaction, committing only when fn
// succeeds. Records read inside fn are locked until the transaction ends,
// so concurrent writers from other processes queue on the same row.
func (s *Store) Update(ctx context.Context, fn func(tx registry.Tx) error) error {
	return s.runInTx(ctx, pgx.TxOptions{}, true, fn)
}

// View runs fn in a read-only repeatable-read transaction.
func (s *Store) View(ctx context.Context, fn func(tx registry.Tx) error) error {
	return s.runInTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, false, fn)
}

func (s *Store) runInTx(ctx context.Context, opts pgx.TxOptions, forUpdate bool, fn func(tx registry.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&storeTx{db: tx, forUpdate: forUpdate}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return handlePostgresError("commit", err)
	}
	return nil
}

// storeTx implements registry.Tx over any DBTX
type storeTx struct {
	db DBTX
	// forUpdate locks rows returned by GetContent
	forUpdate bool
}

// Content vault operations

func (t *storeTx) GetContent(ctx context.Context, id uint64) (*registry.ContentRecord, error) {
	query := `
		SELECT id, title, owner, size_bytes, created_at, description, tags
		FROM content_records WHERE id = $1`
	if t.forUpdate {
		query += ` FOR UPDATE`
	}

	record, err := scanRecord(t.db.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrContentMissing
		}
		return nil, handlePostgresError("get content", err)
	}
	return record, nil
}

func (t *storeTx) InsertContent(ctx context.Context, record *registry.ContentRecord) error {
	query := `
		INSERT INTO content_records (
			id, title, owner, size_bytes, created_at, description, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := t.db.Exec(ctx, query,
		int64(record.ID), record.Title, record.Owner.String(), int64(record.SizeBytes),
		int64(record.CreatedAt), record.Description, tagsOrEmpty(record.Tags))
	if err != nil {
		return handlePostgresError("insert content", err)
	}
	return nil
}

func (t *storeTx) ReplaceContent(ctx context.Context, record *registry.ContentRecord) error {
	query := `
		UPDATE content_records SET
			title = $2, owner = $3, size_bytes = $4, created_at = $5,
			description = $6, tags = $7
		WHERE id = $1`

	tag, err := t.db.Exec(ctx, query,
		int64(record.ID), record.Title, record.Owner.String(), int64(record.SizeBytes),
		int64(record.CreatedAt), record.Description, tagsOrEmpty(record.Tags))
	if err != nil {
		return handlePostgresError("replace content", err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrContentMissing
	}
	return nil
}

func (t *storeTx) RemoveContent(ctx context.Context, id uint64) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM content_records WHERE id = $1`, int64(id))
	if err != nil {
		return handlePostgresError("remove content", err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrContentMissing
	}
	return nil
}

// Sequence counter operations

func (t *storeTx) PeekSequence(ctx context.Context) (uint64, error) {
	var seq int64
	if err := t.db.QueryRow(ctx, `SELECT sequence FROM registry_state WHERE id = 1`).Scan(&seq); err != nil {
		return 0, handlePostgresError("peek sequence", err)
	}
	return uint64(seq), nil
}

func (t *storeTx) AdvanceSequence(ctx context.Context) (uint64, error) {
	var seq int64
	err := t.db.QueryRow(ctx,
		`UPDATE registry_state SET sequence = sequence + 1 WHERE id = 1 RETURNING sequence`).Scan(&seq)
	if err != nil {
		return 0, handlePostgresError("advance sequence", err)
	}
	return uint64(seq), nil
}

// Access matrix operations

func (t *storeTx) SetGrant(ctx context.Context, id uint64, principal registry.Principal, allowed bool) error {
	query := `
		INSERT INTO access_grants (content_id, principal, allowed)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_id, principal) DO UPDATE SET allowed = EXCLUDED.allowed`

	if _, err := t.db.Exec(ctx, query, int64(id), principal.String(), allowed); err != nil {
		return handlePostgresError("set grant", err)
	}
	return nil
}

func (t *storeTx) CheckGrant(ctx context.Context, id uint64, principal registry.Principal) (bool, error) {
	var allowed bool
	err := t.db.QueryRow(ctx,
		`SELECT allowed FROM access_grants WHERE content_id = $1 AND principal = $2`,
		int64(id), principal.String()).Scan(&allowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, handlePostgresError("check grant", err)
	}
	return allowed, nil
}

func (t *storeTx) RevokeGrants(ctx context.Context, id uint64) error {
	if _, err := t.db.Exec(ctx, `DELETE FROM access_grants WHERE content_id = $1`, int64(id)); err != nil {
		return handlePostgresError("revoke grants", err)
	}
	return nil
}

// Snapshot operations

// Export reads the full registry state in one read-only transaction.
func (s *Store) Export(ctx context.Context) (*registry.Snapshot, error) {
	snap := &registry.Snapshot{
		Version: registry.SnapshotVersion,
		Records: []*registry.ContentRecord{},
		Grants:  []registry.AccessGrant{},
	}

	err := s.View(ctx, func(rtx registry.Tx) error {
		tx := rtx.(*storeTx)

		var seq int64
		var authority string
		err := tx.db.QueryRow(ctx,
			`SELECT sequence, master_authority FROM registry_state WHERE id = 1`).Scan(&seq, &authority)
		if err != nil {
			return handlePostgresError("export state", err)
		}
		snap.Sequence = uint64(seq)
		snap.MasterAuthority = registry.Principal(authority)

		rows, err := tx.db.Query(ctx, `
			SELECT id, title, owner, size_bytes, created_at, description, tags
			FROM content_records ORDER BY id`)
		if err != nil {
			return handlePostgresError("export records", err)
		}
		for rows.Next() {
			record, err := scanRecord(rows)
			if err != nil {
				rows.Close()
				return handlePostgresError("export records", err)
			}
			snap.Records = append(snap.Records, record)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return handlePostgresError("export records", err)
		}

		rows, err = tx.db.Query(ctx,
			`SELECT content_id, principal, allowed FROM access_grants ORDER BY content_id, principal`)
		if err != nil {
			return handlePostgresError("export grants", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var principal string
			var allowed bool
			if err := rows.Scan(&id, &principal, &allowed); err != nil {
				return handlePostgresError("export grants", err)
			}
			snap.Grants = append(snap.Grants, registry.AccessGrant{
				ContentID: uint64(id),
				Principal: registry.Principal(principal),
				Allowed:   allowed,
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Import replaces the full registry state with snapshot.
func (s *Store) Import(ctx context.Context, snapshot *registry.Snapshot) error {
	if err := registry.CheckSnapshot(snapshot); err != nil {
		return err
	}

	return s.Update(ctx, func(rtx registry.Tx) error {
		tx := rtx.(*storeTx)

		if _, err := tx.db.Exec(ctx, `DELETE FROM access_grants`); err != nil {
			return handlePostgresError("import", err)
		}
		if _, err := tx.db.Exec(ctx, `DELETE FROM content_records`); err != nil {
			return handlePostgresError("import", err)
		}
		_, err := tx.db.Exec(ctx, `
			INSERT INTO registry_state (id, sequence, master_authority)
			VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET sequence = EXCLUDED.sequence,
				master_authority = EXCLUDED.master_authority`,
			int64(snapshot.Sequence), snapshot.MasterAuthority.String())
		if err != nil {
			return handlePostgresError("import", err)
		}

		for _, record := range snapshot.Records {
			if err := tx.InsertContent(ctx, record); err != nil {
				return err
			}
		}
		for _, grant := range snapshot.Grants {
			if err := tx.SetGrant(ctx, grant.ContentID, grant.Principal, grant.Allowed); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanRecord(row pgx.Row) (*registry.ContentRecord, error) {
	var (
		id, size, createdAt int64
		owner               string
		record              registry.ContentRecord
	)
	err := row.Scan(&id, &record.Title, &owner, &size, &createdAt, &record.Description, &record.Tags)
	if err != nil {
		return nil, err
	}
	record.ID = uint64(id)
	record.Owner = registry.Principal(owner)
	record.SizeBytes = uint64(size)
	record.CreatedAt = uint64(createdAt)
	return &record, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
