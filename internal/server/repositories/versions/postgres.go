// Package versions provides PostgreSQL-backed storage for immutable
// package version rows and their item links.
package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/dbx"
	"github.com/editorial-eng/packsync/internal/server/models"
)

// PostgresRepository implements version storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, version *models.PackageVersion) error {
	query := `
		INSERT INTO package_versions (id, package_id, id_num, title, version_description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at;
	`
	err := r.db.QueryRowContext(ctx, query,
		version.ID, version.PackageID, version.IDNum, version.Title, version.VersionDescription, version.CreatedBy).
		Scan(&version.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MaxIDNum(ctx context.Context, packageID string) (int, error) {
	query := `
		SELECT COALESCE(MAX(id_num), 0) FROM package_versions
		WHERE package_id=$1;
	`
	var max int
	if err := r.db.QueryRowContext(ctx, query, packageID).Scan(&max); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return max, nil
}

func (r *PostgresRepository) GetByIDNum(ctx context.Context, packageID string, idNum int) (*models.PackageVersion, error) {
	query := `
		SELECT id, package_id, id_num, title, version_description, created_by, created_at FROM package_versions
		WHERE package_id=$1 AND id_num=$2;
	`
	row := r.db.QueryRowContext(ctx, query, packageID, idNum)
	version, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	return version, err
}

func (r *PostgresRepository) ListByPackage(ctx context.Context, packageID string) ([]*models.PackageVersion, error) {
	query := `
		SELECT id, package_id, id_num, title, version_description, created_by, created_at FROM package_versions
		WHERE package_id=$1
		ORDER BY id_num DESC;
	`
	rows, err := r.db.QueryContext(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	var result []*models.PackageVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LinkItem attaches an existing item to a version. Items carried over
// from an earlier version are linked, never copied.
func (r *PostgresRepository) LinkItem(ctx context.Context, versionID, itemID string) error {
	query := `
		INSERT INTO package_version_items (version_id, item_id)
		VALUES ($1, $2);
	`
	if _, err := r.db.ExecContext(ctx, query, versionID, itemID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*models.PackageVersion, error) {
	var v models.PackageVersion
	err := row.Scan(&v.ID, &v.PackageID, &v.IDNum, &v.Title, &v.VersionDescription, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
