package cmsids

import (
	"context"

	"github.com/editorial-eng/packsync/internal/server/models"
)

type Repository interface {
	Lookup(ctx context.Context, kind, name string) (*models.CMSID, error)
	// Save records a resolved mapping. When a concurrent writer got
	// there first, the row that won is returned instead of an error.
	Save(ctx context.Context, cms *models.CMSID) (*models.CMSID, error)
}
