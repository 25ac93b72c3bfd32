package packages

import (
	"context"
	"time"

	"github.com/editorial-eng/packsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, pkg *models.Package) error
	GetBySetAndSlug(ctx context.Context, setID, slug string) (*models.Package, error)
	// GetForUpdate locks the package row for the rest of the
	// transaction. Version numbering serializes on this lock.
	GetForUpdate(ctx context.Context, id string) (*models.Package, error)
	ListBySet(ctx context.Context, setID string) ([]*models.Package, error)
	UpdateCache(ctx context.Context, id string, cached []map[string]any, fetchedAt time.Time) error
	Update(ctx context.Context, pkg *models.Package) error
	SetLatestVersion(ctx context.Context, id, versionID string) error
	Delete(ctx context.Context, id string) error
}
