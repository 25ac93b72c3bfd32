package services

import (
	"context"
	"errors"
	"testing"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/content"
	"github.com/editorial-eng/packsync/internal/server/models"
)

const folderMime = "application/vnd.google-apps.folder"

func newSetService(t *testing.T, rm *fakeRepoManager, dc *fakeDriveClient) (*PackageSetService, *PackageService) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	pkgSvc := newPackageService(t, db, rm, dc, &fakeImageStore{})
	return NewPackageSetService(db, rm, dc, pkgSvc, quietLogger()), pkgSvc
}

func testSet(id, slug, folderID string) *models.PackageSet {
	return &models.PackageSet{
		ID:   id,
		Slug: slug,
		Metadata: map[string]any{
			"google_drive": map[string]any{"folder_id": folderID},
		},
	}
}

func TestSyncFromSource_NotConfigured(t *testing.T) {
	svc, _ := newSetService(t, newFakeRepoManager(), newFakeDriveClient())

	set := &models.PackageSet{ID: "s1", Slug: "prime", Metadata: map[string]any{}}
	_, err := svc.SyncFromSource(context.Background(), set, "editor")
	if common.KindOf(err) != common.KindConfiguration {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestSyncFromSource_CreatesOnlyMissingPackages(t *testing.T) {
	rm := newFakeRepoManager()
	dc := newFakeDriveClient()
	dc.listings["root"] = []content.DriveItem{
		{ID: "fa", Title: "campus.reopens", MimeType: folderMime, AltLink: "https://drive/fa"},
		{ID: "fb", Title: "budget.vote", MimeType: folderMime, AltLink: "https://drive/fb"},
		{ID: "doc", Title: "readme.txt", MimeType: gdocMime},
	}
	dc.listings["fb"] = []content.DriveItem{
		{ID: "d1", Title: "article.aml", MimeType: gdocMime},
	}
	dc.plain["d1"] = []byte("headline: Budget vote\n")
	dc.rich["d1"] = []byte("headline: Budget vote\n")

	svc, _ := newSetService(t, rm, dc)

	set := testSet("s1", "prime", "root")
	existing := testPackage("p0", "campus.reopens", "fa")
	existing.PackageSetID = "s1"
	rm.pkgs.bySet["s1"] = []*models.Package{existing}
	rm.pkgs.byID["p0"] = existing

	created, err := svc.SyncFromSource(context.Background(), set, "editor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0] != "budget.vote" {
		t.Fatalf("want only budget.vote created, got %v", created)
	}

	var pkg *models.Package
	for _, p := range rm.pkgs.created {
		if p.Slug == "budget.vote" {
			pkg = p
		}
	}
	if pkg == nil {
		t.Fatal("package row not created")
	}
	if pkg.DriveFolderID() != "fb" {
		t.Fatalf("folder id not recorded: %v", pkg.Metadata)
	}
	if len(rm.pkgs.cached[pkg.ID]) != 1 {
		t.Fatalf("new package cache not refreshed: %v", rm.pkgs.cached)
	}
}

func TestSyncFromSource_RefreshFailureSkipsPackage(t *testing.T) {
	rm := newFakeRepoManager()
	dc := newFakeDriveClient()
	dc.listings["root"] = []content.DriveItem{
		{ID: "fa", Title: "broken.folder", MimeType: folderMime},
		{ID: "fb", Title: "fine.folder", MimeType: folderMime},
	}
	dc.listErr["fa"] = errors.New("permission denied")

	svc, _ := newSetService(t, rm, dc)

	created, err := svc.SyncFromSource(context.Background(), testSet("s1", "prime", "root"), "editor")
	if err != nil {
		t.Fatalf("refresh failures must not fail the sync: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("both packages should be created, got %v", created)
	}
}

func TestSyncFromSource_ListingFailure(t *testing.T) {
	rm := newFakeRepoManager()
	dc := newFakeDriveClient()
	dc.listErr["root"] = common.NotFoundError("Google Drive folder not found, URL may be invalid")

	svc, _ := newSetService(t, rm, dc)

	_, err := svc.SyncFromSource(context.Background(), testSet("s1", "prime", "root"), "editor")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not-found error, got %v", err)
	}
	if len(rm.pkgs.created) != 0 {
		t.Fatal("no packages may be created when the listing fails")
	}
}
