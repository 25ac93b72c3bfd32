// Package cmsids provides PostgreSQL-backed storage for the cache of
// author and category ids on the target CMS.
package cmsids

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/dbx"
	"github.com/editorial-eng/packsync/internal/server/models"
)

// PostgresRepository implements the id cache over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Lookup matches the name case-insensitively within a kind.
func (r *PostgresRepository) Lookup(ctx context.Context, kind, name string) (*models.CMSID, error) {
	query := `
		SELECT id, kind, name, external_id FROM cms_ids
		WHERE kind=$1 AND lower(name)=lower($2);
	`
	var cms models.CMSID
	err := r.db.QueryRowContext(ctx, query, kind, name).
		Scan(&cms.ID, &cms.Kind, &cms.Name, &cms.ExternalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &cms, nil
}

func (r *PostgresRepository) Save(ctx context.Context, cms *models.CMSID) (*models.CMSID, error) {
	query := `
		INSERT INTO cms_ids (id, kind, name, external_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, lower(name)) DO NOTHING;
	`
	if _, err := r.db.ExecContext(ctx, query, cms.ID, cms.Kind, cms.Name, cms.ExternalID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	// Reselect so a lost insert race still hands back the winning row.
	return r.Lookup(ctx, cms.Kind, cms.Name)
}
