// Package packages provides PostgreSQL-backed storage for package rows,
// including the cached working copy of their external source.
package packages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/dbx"
	"github.com/editorial-eng/packsync/internal/server/models"
)

const selectColumns = `id, package_set_id, slug, metadata, cached, last_fetched_date, state, tags, latest_version_id, created_by, created_at, updated_at`

// PostgresRepository implements package storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, pkg *models.Package) error {
	metadata, cached, tags, err := encodeJSONColumns(pkg)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO packages (id, package_set_id, slug, metadata, cached, state, tags, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at;
	`
	err = r.db.QueryRowContext(ctx, query,
		pkg.ID, pkg.PackageSetID, pkg.Slug, metadata, cached, pkg.State, tags, pkg.CreatedBy).
		Scan(&pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetBySetAndSlug(ctx context.Context, setID, slug string) (*models.Package, error) {
	query := `
		SELECT ` + selectColumns + ` FROM packages
		WHERE package_set_id=$1 AND slug=$2;
	`
	return r.getOne(ctx, query, setID, slug)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Package, error) {
	query := `
		SELECT ` + selectColumns + ` FROM packages
		WHERE id=$1
		FOR UPDATE;
	`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Package, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	return pkg, err
}

func (r *PostgresRepository) ListBySet(ctx context.Context, setID string) ([]*models.Package, error) {
	query := `
		SELECT ` + selectColumns + ` FROM packages
		WHERE package_set_id=$1
		ORDER BY slug;
	`
	rows, err := r.db.QueryContext(ctx, query, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to select packages: %w", err)
	}
	defer rows.Close()

	var result []*models.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateCache replaces the cached working copy wholesale and stamps
// the fetch time. Previous cache contents are discarded, not merged.
func (r *PostgresRepository) UpdateCache(ctx context.Context, id string, cached []map[string]any, fetchedAt time.Time) error {
	if cached == nil {
		cached = []map[string]any{}
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal cached: %w", err)
	}

	query := `
		UPDATE packages SET cached=$2, last_fetched_date=$3, updated_at=now()
		WHERE id=$1;
	`
	return r.execExpectingRow(ctx, query, id, raw, fetchedAt)
}

func (r *PostgresRepository) Update(ctx context.Context, pkg *models.Package) error {
	metadata, _, tags, err := encodeJSONColumns(pkg)
	if err != nil {
		return err
	}

	query := `
		UPDATE packages SET metadata=$2, state=$3, tags=$4, updated_at=now()
		WHERE id=$1;
	`
	return r.execExpectingRow(ctx, query, pkg.ID, metadata, pkg.State, tags)
}

func (r *PostgresRepository) SetLatestVersion(ctx context.Context, id, versionID string) error {
	query := `
		UPDATE packages SET latest_version_id=$2, updated_at=now()
		WHERE id=$1;
	`
	return r.execExpectingRow(ctx, query, id, versionID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM packages WHERE id=$1;`
	return r.execExpectingRow(ctx, query, id)
}

func (r *PostgresRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func encodeJSONColumns(pkg *models.Package) (metadata, cached, tags []byte, err error) {
	if metadata, err = json.Marshal(pkg.Metadata); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	c := pkg.Cached
	if c == nil {
		c = []map[string]any{}
	}
	if cached, err = json.Marshal(c); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal cached: %w", err)
	}
	t := pkg.Tags
	if t == nil {
		t = []string{}
	}
	if tags, err = json.Marshal(t); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal tags: %w", err)
	}
	return metadata, cached, tags, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (*models.Package, error) {
	var pkg models.Package
	var metadata, cached, tags []byte
	var lastFetched sql.NullTime
	var latestVersion sql.NullString

	err := row.Scan(&pkg.ID, &pkg.PackageSetID, &pkg.Slug, &metadata, &cached, &lastFetched,
		&pkg.State, &tags, &latestVersion, &pkg.CreatedBy, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metadata, &pkg.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(cached, &pkg.Cached); err != nil {
		return nil, fmt.Errorf("unmarshal cached: %w", err)
	}
	if err := json.Unmarshal(tags, &pkg.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if lastFetched.Valid {
		t := lastFetched.Time
		pkg.LastFetchedDate = &t
	}
	if latestVersion.Valid {
		v := latestVersion.String
		pkg.LatestVersionID = &v
	}
	return &pkg, nil
}
