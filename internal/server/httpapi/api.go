// Package httpapi exposes the REST surface: package sets, packages,
// versions, publishing, and background task polling.
package httpapi

import (
	"context"

	"github.com/editorial-eng/packsync/internal/server/models"
	"github.com/editorial-eng/packsync/internal/server/services"
)

// PackageSetAPI is the package-set surface the handlers consume.
type PackageSetAPI interface {
	Create(ctx context.Context, slug string, metadata map[string]any, user string) (*models.PackageSet, error)
	Get(ctx context.Context, slug string) (*models.PackageSet, error)
	List(ctx context.Context) ([]*models.PackageSet, error)
	UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error
	SyncFromSource(ctx context.Context, set *models.PackageSet, user string) ([]string, error)
}

// PackageAPI is the package surface the handlers consume.
type PackageAPI interface {
	Create(ctx context.Context, setID, slug string, metadata map[string]any, user string) (*models.Package, error)
	Get(ctx context.Context, setSlug, pkgSlug string) (*models.Package, error)
	List(ctx context.Context, setSlug string) ([]*models.Package, error)
	Update(ctx context.Context, pkg *models.Package) error
	FetchCache(ctx context.Context, pkg *models.Package) error
	CreateVersion(ctx context.Context, pkg *models.Package, user string, stub services.VersionStub, includedTitles []string) (*models.PackageVersion, error)
	ListVersions(ctx context.Context, packageID string) ([]*models.PackageVersion, error)
	VersionItems(ctx context.Context, versionID string) ([]*models.PackageItem, error)
}

// PublishAPI runs the CMS publish pipeline.
type PublishAPI interface {
	PublishPackage(ctx context.Context, pkg *models.Package) (*services.PublishResult, error)
}

// TaskAPI queues work and reports task status.
type TaskAPI interface {
	Submit(name string, fn services.TaskFunc) string
	Status(id string) (*services.Task, error)
}
