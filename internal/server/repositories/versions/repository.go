package versions

import (
	"context"

	"github.com/editorial-eng/packsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, version *models.PackageVersion) error
	// MaxIDNum returns the highest id_num assigned to the package, 0
	// when no version exists yet. Callers must hold the package row
	// lock so the next number cannot be assigned twice.
	MaxIDNum(ctx context.Context, packageID string) (int, error)
	GetByIDNum(ctx context.Context, packageID string, idNum int) (*models.PackageVersion, error)
	ListByPackage(ctx context.Context, packageID string) ([]*models.PackageVersion, error)
	LinkItem(ctx context.Context, versionID, itemID string) error
}
