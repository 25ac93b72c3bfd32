package items

import (
	"context"

	"github.com/editorial-eng/packsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, item *models.PackageItem) error
	ListByVersion(ctx context.Context, versionID string) ([]*models.PackageItem, error)
	// UpdateData rewrites the frozen payload in place. The only
	// legitimate caller is storage link refresh.
	UpdateData(ctx context.Context, id string, data map[string]any) error
}
