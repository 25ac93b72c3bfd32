// Package services implements the application operations on top of the
// repositories: cache refresh from Drive, version snapshots, Drive
// folder sync, and publishing to the CMS.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/content"
	"github.com/editorial-eng/packsync/internal/content/gdoc"
	"github.com/editorial-eng/packsync/internal/dbx"
	"github.com/editorial-eng/packsync/internal/logging"
	"github.com/editorial-eng/packsync/internal/server/drive"
	"github.com/editorial-eng/packsync/internal/server/models"
	"github.com/editorial-eng/packsync/internal/server/repositories/repomanager"
)

// ImageStore snapshots Drive images into durable storage and signs
// public links for stored objects.
type ImageStore interface {
	Snapshot(ctx context.Context, img *content.ImageFile) error
	content.LinkSigner
}

// VersionStub carries the caller-supplied fields of a new version.
type VersionStub struct {
	Title       string
	Description string
}

type PackageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	drive       drive.Client
	images      ImageStore
	parser      *content.Parser
	cleaner     *gdoc.Cleaner
	log         logging.Logger
}

func NewPackageService(db *sql.DB, rm repomanager.RepositoryManager, dc drive.Client, images ImageStore, log logging.Logger) *PackageService {
	return &PackageService{
		db:          db,
		repomanager: rm,
		drive:       dc,
		images:      images,
		parser:      content.NewParser(),
		cleaner:     gdoc.NewCleaner(),
		log:         log,
	}
}

func (s *PackageService) Create(ctx context.Context, setID, slug string, metadata map[string]any, user string) (*models.Package, error) {
	if slug == "" {
		return nil, common.ValidationError("package slug must not be empty")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	pkg := &models.Package{
		ID:           uuid.NewString(),
		PackageSetID: setID,
		Slug:         slug,
		Metadata:     metadata,
		State:        models.StateInProgress,
		CreatedBy:    user,
	}
	if err := s.repomanager.Packages(s.db).Create(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *PackageService) Get(ctx context.Context, setSlug, pkgSlug string) (*models.Package, error) {
	set, err := s.repomanager.PackageSets(s.db).GetBySlug(ctx, setSlug)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Packages(s.db).GetBySetAndSlug(ctx, set.ID, pkgSlug)
}

func (s *PackageService) List(ctx context.Context, setSlug string) ([]*models.Package, error) {
	set, err := s.repomanager.PackageSets(s.db).GetBySlug(ctx, setSlug)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Packages(s.db).ListBySet(ctx, set.ID)
}

func (s *PackageService) Update(ctx context.Context, pkg *models.Package) error {
	return s.repomanager.Packages(s.db).Update(ctx, pkg)
}

func (s *PackageService) Delete(ctx context.Context, id string) error {
	return s.repomanager.Packages(s.db).Delete(ctx, id)
}

// FetchCache pulls the package's Drive folder and replaces the cached
// working copy wholesale. The folder listing must succeed; individual
// documents that fail to download or parse are stored with an error
// envelope instead of aborting the whole refresh.
func (s *PackageService) FetchCache(ctx context.Context, pkg *models.Package) error {
	folderID := pkg.DriveFolderID()
	if folderID == "" {
		return common.ConfigurationError("Google Drive is not yet configured for %s", pkg.Slug)
	}

	items, _, err := s.drive.ListFolder(ctx, folderID, true, "")
	if err != nil {
		return err
	}

	var cached []map[string]any
	for _, item := range contentItems(items) {
		snap := content.NewSnapshot(item)
		if tf, ok := snap.(*content.TextFile); ok {
			s.fetchText(ctx, tf)
		}
		encoded, err := snap.ToJSON()
		if err != nil {
			return err
		}
		cached = append(cached, encoded)
	}

	now := time.Now()
	if err := s.repomanager.Packages(s.db).UpdateCache(ctx, pkg.ID, cached, now); err != nil {
		return err
	}
	pkg.Cached = cached
	pkg.LastFetchedDate = &now

	s.log.Info(ctx, "package cache refreshed", "package", pkg.Slug, "items", len(cached))
	return nil
}

// contentItems selects the images and text documents of a folder
// listing: anything with an image mime type, plus files carrying a
// known content extension or exported as a Google Doc.
func contentItems(items []content.DriveItem) []content.DriveItem {
	seen := map[string]bool{}
	var out []content.DriveItem

	add := func(selected []content.DriveItem) {
		for _, item := range selected {
			if !seen[item.ID] {
				seen[item.ID] = true
				out = append(out, item)
			}
		}
	}

	add(drive.FilterItems(items, drive.FilterImages))
	add(drive.FilterItems(items, drive.FilterExtension, content.ContentExtensions...))
	add(drive.FilterItems(items, drive.FilterDocument))

	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// fetchText downloads and parses both representations of a text
// document. Markdown has no rich export; everything else also gets the
// cleaned HTML flavour.
func (s *PackageService) fetchText(ctx context.Context, tf *content.TextFile) {
	raw, err := s.drive.Fetch(ctx, tf.DriveID, tf.MimeType, false)
	if err != nil {
		s.log.Warn(ctx, "plain content fetch failed", "file", tf.Title, "error", err)
		pc := content.Failed(err)
		tf.ContentPlain = &pc
	} else {
		tf.ParseContent(s.parser, raw, false)
	}

	if tf.Format == content.FormatMD {
		return
	}

	rich, err := s.drive.Fetch(ctx, tf.DriveID, tf.MimeType, true)
	if err != nil {
		s.log.Warn(ctx, "rich content fetch failed", "file", tf.Title, "error", err)
		pc := content.Failed(err)
		tf.ContentRich = &pc
		return
	}
	tf.ParseContent(s.parser, []byte(s.cleaner.Clean(string(rich))), true)
}

// CreateVersion freezes the currently cached items named in
// includedTitles into a new immutable version. Items of the previous
// latest version that were not re-included are carried over by linking
// the same rows. The whole operation runs in one transaction with the
// package row locked, which serialises version numbering.
func (s *PackageService) CreateVersion(ctx context.Context, pkg *models.Package, user string, stub VersionStub, includedTitles []string) (*models.PackageVersion, error) {
	if len(includedTitles) == 0 {
		return nil, common.ValidationError("must include at least one item")
	}

	cachedByTitle := map[string]map[string]any{}
	for _, raw := range pkg.Cached {
		if title, ok := raw["title"].(string); ok {
			cachedByTitle[title] = raw
		}
	}

	var missing []string
	included := map[string]bool{}
	for _, title := range includedTitles {
		included[title] = true
		if _, ok := cachedByTitle[title]; !ok {
			missing = append(missing, title)
		}
	}
	if len(missing) > 0 {
		return nil, common.ValidationError("items not found in the package cache: %s", strings.Join(missing, ", "))
	}

	var version *models.PackageVersion
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pkgRepo := s.repomanager.Packages(tx)
		verRepo := s.repomanager.Versions(tx)
		itemRepo := s.repomanager.Items(tx)

		locked, err := pkgRepo.GetForUpdate(ctx, pkg.ID)
		if err != nil {
			return err
		}

		max, err := verRepo.MaxIDNum(ctx, locked.ID)
		if err != nil {
			return err
		}

		version = &models.PackageVersion{
			ID:                 uuid.NewString(),
			PackageID:          locked.ID,
			IDNum:              max + 1,
			Title:              stub.Title,
			VersionDescription: stub.Description,
			CreatedBy:          user,
		}
		if err := verRepo.Create(ctx, version); err != nil {
			return err
		}

		for _, title := range includedTitles {
			item, err := s.materializeItem(ctx, cachedByTitle[title])
			if err != nil {
				return err
			}
			if err := itemRepo.Create(ctx, item); err != nil {
				return err
			}
			if err := verRepo.LinkItem(ctx, version.ID, item.ID); err != nil {
				return err
			}
		}

		if locked.LatestVersionID != nil {
			previous, err := itemRepo.ListByVersion(ctx, *locked.LatestVersionID)
			if err != nil {
				return err
			}
			for _, item := range previous {
				if included[item.FileName] {
					continue
				}
				if err := verRepo.LinkItem(ctx, version.ID, item.ID); err != nil {
					return err
				}
			}
		}

		return pkgRepo.SetLatestVersion(ctx, locked.ID, version.ID)
	})
	if err != nil {
		return nil, err
	}

	latest := version.ID
	pkg.LatestVersionID = &latest

	s.log.Info(ctx, "version created", "package", pkg.Slug, "id_num", version.IDNum)
	return version, nil
}

// materializeItem freezes one cached snapshot into an item row. Images
// that have not reached durable storage yet are snapshotted first so
// the frozen payload carries stable coordinates.
func (s *PackageService) materializeItem(ctx context.Context, raw map[string]any) (*models.PackageItem, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	snap, err := content.FromJSON(encoded)
	if err != nil {
		return nil, err
	}

	if img, ok := snap.(*content.ImageFile); ok && !img.Stored() {
		if err := s.images.Snapshot(ctx, img); err != nil {
			return nil, err
		}
	}

	data, err := snap.ToJSON()
	if err != nil {
		return nil, err
	}

	file := snap.File()
	return &models.PackageItem{
		ID:       uuid.NewString(),
		DataType: snap.DataType(),
		Data:     data,
		FileName: file.Title,
		MimeType: file.MimeType,
	}, nil
}

func (s *PackageService) ListVersions(ctx context.Context, packageID string) ([]*models.PackageVersion, error) {
	return s.repomanager.Versions(s.db).ListByPackage(ctx, packageID)
}

func (s *PackageService) GetVersion(ctx context.Context, packageID string, idNum int) (*models.PackageVersion, error) {
	return s.repomanager.Versions(s.db).GetByIDNum(ctx, packageID, idNum)
}

// VersionItems loads a version's items and re-signs expired storage
// links on stored images, persisting the refreshed payloads. Link
// refresh is the one mutation a frozen item allows.
func (s *PackageService) VersionItems(ctx context.Context, versionID string) ([]*models.PackageItem, error) {
	itemRepo := s.repomanager.Items(s.db)

	items, err := itemRepo.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.DataType != content.DataTypeImage {
			continue
		}
		encoded, err := json.Marshal(item.Data)
		if err != nil {
			return nil, err
		}
		snap, err := content.FromJSON(encoded)
		if err != nil {
			return nil, err
		}
		img, ok := snap.(*content.ImageFile)
		if !ok || !img.Stored() {
			continue
		}
		if err := img.RefreshLink(ctx, s.images, 0); err != nil {
			return nil, err
		}
		data, err := img.ToJSON()
		if err != nil {
			return nil, err
		}
		item.Data = data
		if err := itemRepo.UpdateData(ctx, item.ID, data); err != nil {
			return nil, err
		}
	}
	return items, nil
}
