// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/editorial-eng/packsync/internal/dbx"
	"github.com/editorial-eng/packsync/internal/server/migrations"
	"github.com/editorial-eng/packsync/internal/server/repositories/cmsids"
	"github.com/editorial-eng/packsync/internal/server/repositories/items"
	"github.com/editorial-eng/packsync/internal/server/repositories/packages"
	"github.com/editorial-eng/packsync/internal/server/repositories/packagesets"
	"github.com/editorial-eng/packsync/internal/server/repositories/versions"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// PackageSets returns a packagesets.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) PackageSets(db dbx.DBTX) packagesets.Repository {
	return packagesets.NewPostgresRepository(db)
}

// Packages returns a packages.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Packages(db dbx.DBTX) packages.Repository {
	return packages.NewPostgresRepository(db)
}

// Versions returns a versions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Versions(db dbx.DBTX) versions.Repository {
	return versions.NewPostgresRepository(db)
}

// Items returns an items.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Items(db dbx.DBTX) items.Repository {
	return items.NewPostgresRepository(db)
}

// CMSIDs returns a cmsids.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) CMSIDs(db dbx.DBTX) cmsids.Repository {
	return cmsids.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
