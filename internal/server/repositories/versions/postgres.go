// Package versions provides the PostgreSQL repository for file versions.
//
// Only completed versions are visible to readers (Latest, ByNumber,
// ListByNode) and to numbering. Dedup lookups see pending rows too, so an
// in-flight upload still reserves its hash; its number is guarded by the
// unique (node_id, version) index.
package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

const columns = `id, node_id, owner_id, version, hash, storage_key, size, status, created_at`

// PostgresRepository implements version storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(s scanner) (*models.FileVersion, error) {
	var v models.FileVersion
	if err := s.Scan(&v.ID, &v.NodeID, &v.OwnerID, &v.Version, &v.Hash, &v.StorageKey, &v.Size, &v.Status, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts v and fills its ID and CreatedAt. A taken (node, version)
// pair or an owner already holding the hash yields common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, v *models.FileVersion) (*models.FileVersion, error) {
	query := `
		INSERT INTO file_versions (node_id, owner_id, version, hash, storage_key, size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		v.NodeID, v.OwnerID, v.Version, v.Hash, v.StorageKey, v.Size, v.Status,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

// HighestNumber returns the node's highest completed version number, or 0
// when the node has none.
func (r *PostgresRepository) HighestNumber(ctx context.Context, nodeID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM file_versions WHERE node_id = $1 AND status = 'completed'`, nodeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.FileVersion, error) {
	v, err := scanVersion(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, nodeID string) (*models.FileVersion, error) {
	query := `SELECT ` + columns + ` FROM file_versions
		WHERE node_id = $1 AND status = 'completed'
		ORDER BY version DESC
		LIMIT 1`
	return r.getOne(ctx, query, nodeID)
}

func (r *PostgresRepository) ByNumber(ctx context.Context, nodeID string, number int64) (*models.FileVersion, error) {
	query := `SELECT ` + columns + ` FROM file_versions
		WHERE node_id = $1 AND version = $2 AND status = 'completed'`
	return r.getOne(ctx, query, nodeID, number)
}

// FindByHash returns a version of any of the owner's files carrying hash.
func (r *PostgresRepository) FindByHash(ctx context.Context, ownerID, hash string) (*models.FileVersion, error) {
	query := `SELECT ` + columns + ` FROM file_versions
		WHERE owner_id = $1 AND hash = $2
		LIMIT 1`
	return r.getOne(ctx, query, ownerID, hash)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.FileVersion, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	var result []*models.FileVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByNode returns the node's completed versions in ascending order.
func (r *PostgresRepository) ListByNode(ctx context.Context, nodeID string) ([]*models.FileVersion, error) {
	query := `SELECT ` + columns + ` FROM file_versions
		WHERE node_id = $1 AND status = 'completed'
		ORDER BY version`
	return r.list(ctx, query, nodeID)
}

// ListStalePending returns up to limit pending versions created before olderThan.
func (r *PostgresRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.FileVersion, error) {
	query := `SELECT ` + columns + ` FROM file_versions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`
	return r.list(ctx, query, olderThan, limit)
}

func (r *PostgresRepository) execOne(ctx context.Context, query, id string) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// MarkCompleted flips a pending version to completed.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE file_versions SET status = 'completed' WHERE id = $1 AND status = 'pending'`, id)
}

// DeletePending removes a version that never completed. Completed versions
// are permanent and are not matched.
func (r *PostgresRepository) DeletePending(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM file_versions WHERE id = $1 AND status = 'pending'`, id)
}

// DeleteStalePending removes the owner's pending versions created before
// olderThan and returns them.
func (r *PostgresRepository) DeleteStalePending(ctx context.Context, ownerID string, olderThan time.Time) ([]*models.FileVersion, error) {
	query := `DELETE FROM file_versions
		WHERE owner_id = $1 AND status = 'pending' AND created_at < $2
		RETURNING ` + columns
	return r.list(ctx, query, ownerID, olderThan)
}
