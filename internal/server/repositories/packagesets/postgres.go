// Package packagesets provides PostgreSQL-backed storage for package
// set rows.
package packagesets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/dbx"
	"github.com/editorial-eng/packsync/internal/server/models"
)

// PostgresRepository implements package set storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, set *models.PackageSet) error {
	metadata, err := json.Marshal(set.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO package_sets (id, slug, metadata, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at;
	`
	err = r.db.QueryRowContext(ctx, query, set.ID, set.Slug, metadata, set.CreatedBy).
		Scan(&set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*models.PackageSet, error) {
	query := `
		SELECT id, slug, metadata, created_by, created_at, updated_at FROM package_sets
		WHERE slug=$1;
	`
	row := r.db.QueryRowContext(ctx, query, slug)
	set, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	return set, err
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.PackageSet, error) {
	query := `
		SELECT id, slug, metadata, created_by, created_at, updated_at FROM package_sets
		ORDER BY slug;
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select package sets: %w", err)
	}
	defer rows.Close()

	var result []*models.PackageSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		UPDATE package_sets SET metadata=$2, updated_at=now()
		WHERE id=$1;
	`
	res, err := r.db.ExecContext(ctx, query, id, raw)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSet(row rowScanner) (*models.PackageSet, error) {
	var set models.PackageSet
	var metadata []byte
	if err := row.Scan(&set.ID, &set.Slug, &metadata, &set.CreatedBy, &set.CreatedAt, &set.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &set.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &set, nil
}
