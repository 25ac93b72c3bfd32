package packagesets

import (
	"context"

	"github.com/editorial-eng/packsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, set *models.PackageSet) error
	GetBySlug(ctx context.Context, slug string) (*models.PackageSet, error)
	List(ctx context.Context) ([]*models.PackageSet, error)
	UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error
}
