package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/logging"
	"github.com/editorial-eng/packsync/internal/server/drive"
	"github.com/editorial-eng/packsync/internal/server/models"
	"github.com/editorial-eng/packsync/internal/server/repositories/repomanager"
)

type PackageSetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	drive       drive.Client
	packages    *PackageService
	log         logging.Logger
}

func NewPackageSetService(db *sql.DB, rm repomanager.RepositoryManager, dc drive.Client, packages *PackageService, log logging.Logger) *PackageSetService {
	return &PackageSetService{
		db:          db,
		repomanager: rm,
		drive:       dc,
		packages:    packages,
		log:         log,
	}
}

func (s *PackageSetService) Create(ctx context.Context, slug string, metadata map[string]any, user string) (*models.PackageSet, error) {
	if slug == "" {
		return nil, common.ValidationError("package set slug must not be empty")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	set := &models.PackageSet{
		ID:        uuid.NewString(),
		Slug:      slug,
		Metadata:  metadata,
		CreatedBy: user,
	}
	if err := s.repomanager.PackageSets(s.db).Create(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *PackageSetService) Get(ctx context.Context, slug string) (*models.PackageSet, error) {
	return s.repomanager.PackageSets(s.db).GetBySlug(ctx, slug)
}

func (s *PackageSetService) List(ctx context.Context) ([]*models.PackageSet, error) {
	return s.repomanager.PackageSets(s.db).List(ctx)
}

func (s *PackageSetService) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	return s.repomanager.PackageSets(s.db).UpdateMetadata(ctx, id, metadata)
}

// SyncFromSource mirrors the set's Drive folder: every subfolder
// without a matching package gets one, slug taken from the folder
// title, and its cache is refreshed right away. Existing packages are
// left alone. A refresh failure skips that package instead of failing
// the sync. Returns the slugs of the packages it created.
func (s *PackageSetService) SyncFromSource(ctx context.Context, set *models.PackageSet, user string) ([]string, error) {
	folderID := set.DriveFolderID()
	if folderID == "" {
		return nil, common.ConfigurationError("Google Drive is not yet configured for %s", set.Slug)
	}

	items, _, err := s.drive.ListFolder(ctx, folderID, true, "")
	if err != nil {
		return nil, err
	}
	folders := drive.FilterItems(items, drive.FilterFolder)

	existing, err := s.repomanager.Packages(s.db).ListBySet(ctx, set.ID)
	if err != nil {
		return nil, err
	}
	known := map[string]bool{}
	for _, pkg := range existing {
		known[pkg.Slug] = true
	}

	var created []string
	for _, folder := range folders {
		if known[folder.Title] {
			continue
		}

		metadata := map[string]any{
			"google_drive": map[string]any{
				"folder_id":  folder.ID,
				"folder_url": folder.AltLink,
			},
		}
		pkg, err := s.packages.Create(ctx, set.ID, folder.Title, metadata, user)
		if err != nil {
			return created, err
		}
		created = append(created, pkg.Slug)

		if err := s.packages.FetchCache(ctx, pkg); err != nil {
			s.log.Warn(ctx, "initial cache refresh failed, skipping",
				"package", pkg.Slug, "error", err)
		}
	}

	s.log.Info(ctx, "drive sync finished", "set", set.Slug, "created", len(created))
	return created, nil
}
