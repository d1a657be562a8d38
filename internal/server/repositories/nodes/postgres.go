// Package nodes provides the PostgreSQL repository for the folder/file tree.
package nodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

const columns = `id, name, is_directory, owner_id, parent_id, content_type, created_at`

// PostgresRepository implements node storage over a dbx.DBTX (*sql.DB or *sql.Tx).
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

func scanNode(s scanner) (*models.Node, error) {
	var (
		n      models.Node
		parent sql.NullString
	)
	if err := s.Scan(&n.ID, &n.Name, &n.IsDirectory, &n.OwnerID, &parent, &n.ContentType, &n.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		n.ParentID = &parent.String
	}
	return &n, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts node and fills its ID and CreatedAt. A sibling with the same
// name, or a second root for the owner, yields common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, node *models.Node) (*models.Node, error) {
	query := `
		INSERT INTO nodes (name, is_directory, owner_id, parent_id, content_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		node.Name, node.IsDirectory, node.OwnerID, nullable(node.ParentID), node.ContentType,
	).Scan(&node.ID, &node.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return node, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Node, error) {
	n, err := scanNode(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Node, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM nodes WHERE id = $1`, id)
}

// GetRoot returns the owner's root folder.
func (r *PostgresRepository) GetRoot(ctx context.Context, ownerID string) (*models.Node, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM nodes WHERE owner_id = $1 AND parent_id IS NULL`, ownerID)
}

// GetDirectoryByName looks a folder up by name anywhere in the owner's tree.
// When several folders share the name the oldest one wins.
func (r *PostgresRepository) GetDirectoryByName(ctx context.Context, ownerID, name string) (*models.Node, error) {
	query := `SELECT ` + columns + ` FROM nodes
		WHERE owner_id = $1 AND name = $2 AND is_directory
		ORDER BY created_at, id
		LIMIT 1`
	return r.getOne(ctx, query, ownerID, name)
}

// FindDirectoryByName looks a non-root folder up by name across all owners,
// oldest first.
func (r *PostgresRepository) FindDirectoryByName(ctx context.Context, name string) (*models.Node, error) {
	query := `SELECT ` + columns + ` FROM nodes
		WHERE name = $1 AND is_directory AND parent_id IS NOT NULL
		ORDER BY created_at, id
		LIMIT 1`
	return r.getOne(ctx, query, name)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Node, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select nodes: %w", err)
	}
	defer rows.Close()

	var result []*models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByOwner returns every node of the owner ordered by name.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Node, error) {
	return r.list(ctx, `SELECT `+columns+` FROM nodes WHERE owner_id = $1 ORDER BY name, id`, ownerID)
}

// ListChildren returns the direct children of a folder, folders first.
func (r *PostgresRepository) ListChildren(ctx context.Context, parentID string) ([]*models.Node, error) {
	query := `SELECT ` + columns + ` FROM nodes
		WHERE parent_id = $1
		ORDER BY is_directory DESC, name`
	return r.list(ctx, query, parentID)
}

// DeleteFileWithoutVersions removes a file node that has no versions left.
// It reports whether a row was removed.
func (r *PostgresRepository) DeleteFileWithoutVersions(ctx context.Context, id string) (bool, error) {
	query := `
		DELETE FROM nodes
		WHERE id = $1 AND NOT is_directory
		  AND NOT EXISTS (SELECT 1 FROM file_versions WHERE node_id = $1)
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}
