package repomanager

import (
	"context"
	"database/sql"

	"github.com/editorial-eng/packsync/internal/dbx"
	"github.com/editorial-eng/packsync/internal/server/repositories/cmsids"
	"github.com/editorial-eng/packsync/internal/server/repositories/items"
	"github.com/editorial-eng/packsync/internal/server/repositories/packages"
	"github.com/editorial-eng/packsync/internal/server/repositories/packagesets"
	"github.com/editorial-eng/packsync/internal/server/repositories/versions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	PackageSets(db dbx.DBTX) packagesets.Repository
	Packages(db dbx.DBTX) packages.Repository
	Versions(db dbx.DBTX) versions.Repository
	Items(db dbx.DBTX) items.Repository
	CMSIDs(db dbx.DBTX) cmsids.Repository
}
