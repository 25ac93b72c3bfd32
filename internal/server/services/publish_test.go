package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/content"
	"github.com/editorial-eng/packsync/internal/server/models"
	"github.com/editorial-eng/packsync/internal/server/wordpress"
)

// -------- fakes --------

type fakeCMS struct {
	createFields map[string]string
	createID     int
	createErr    error

	uploads   []string
	uploadErr map[string]error
	nextMedia int

	patched map[int]string

	users      map[string][]wordpress.SearchResult
	categories map[string][]wordpress.SearchResult
	searches   []string
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		createID:   42,
		uploadErr:  map[string]error{},
		patched:    map[int]string{},
		users:      map[string][]wordpress.SearchResult{},
		categories: map[string][]wordpress.SearchResult{},
	}
}

func (f *fakeCMS) CreatePost(ctx context.Context, fields map[string]string) (int, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.createFields = fields
	return f.createID, nil
}

func (f *fakeCMS) UploadMediaFromURL(ctx context.Context, srcURL, fileName, mimeType string) (*wordpress.MediaUpload, error) {
	if err := f.uploadErr[fileName]; err != nil {
		return nil, err
	}
	f.uploads = append(f.uploads, fileName)
	f.nextMedia++
	return &wordpress.MediaUpload{ID: f.nextMedia, HTML: "<img/>"}, nil
}

func (f *fakeCMS) PatchMediaCaption(ctx context.Context, mediaID int, caption string) error {
	f.patched[mediaID] = caption
	return nil
}

func (f *fakeCMS) SearchUsers(ctx context.Context, name string) ([]wordpress.SearchResult, error) {
	f.searches = append(f.searches, "users:"+name)
	return f.users[name], nil
}

func (f *fakeCMS) SearchCategories(ctx context.Context, name string) ([]wordpress.SearchResult, error) {
	f.searches = append(f.searches, "categories:"+name)
	return f.categories[name], nil
}

type fakeRenderer struct {
	html string
	err  error

	blocks []any
	media  map[string]*wordpress.MediaUpload
}

func (f *fakeRenderer) RenderHTML(ctx context.Context, blocks []any, media map[string]*wordpress.MediaUpload) (string, error) {
	f.blocks = blocks
	f.media = media
	return f.html, f.err
}

// -------- helpers --------

func newPublishService(t *testing.T, rm *fakeRepoManager, cms *fakeCMS, renderer *fakeRenderer) *PublishService {
	t.Helper()
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	pkgSvc := newPackageService(t, db, rm, newFakeDriveClient(), &fakeImageStore{})
	return NewPublishService(db, rm, cms, renderer, pkgSvc, quietLogger())
}

func publishableArticle() map[string]any {
	return map[string]any{
		"author":     "Jane Doe",
		"headline":   "Campus reopens",
		"slug":       "campus-reopens",
		"excerpt":    "The quad is open again.",
		"content":    []any{map[string]any{"type": "p", "value": "Hello."}},
		"categories": "News",
	}
}

func seedResolved(rm *fakeRepoManager) {
	rm.cms.rows[cmsKey(models.CMSKindAuthor, "Jane Doe")] = &models.CMSID{
		Kind: models.CMSKindAuthor, Name: "Jane Doe", ExternalID: 3,
	}
	rm.cms.rows[cmsKey(models.CMSKindCategory, "News")] = &models.CMSID{
		Kind: models.CMSKindCategory, Name: "News", ExternalID: 11,
	}
}

// -------- tests --------

func TestPublish_MissingTopLevelField(t *testing.T) {
	svc := newPublishService(t, newFakeRepoManager(), newFakeCMS(), &fakeRenderer{})

	article := publishableArticle()
	delete(article, "excerpt")

	_, err := svc.Publish(context.Background(), article, nil)
	if common.KindOf(err) != common.KindValidation {
		t.Fatalf("want validation error, got %v", err)
	}
	if got := err.Error(); got != "Missing top-level AML field: 'excerpt'" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestPublish_ValidatesBeforeAnyNetworkCall(t *testing.T) {
	cms := newFakeCMS()
	svc := newPublishService(t, newFakeRepoManager(), cms, &fakeRenderer{})

	_, err := svc.Publish(context.Background(), map[string]any{}, []PublishImage{
		{FileName: "cover.jpg", URL: "https://signed/x"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(cms.uploads) != 0 || len(cms.searches) != 0 || cms.createFields != nil {
		t.Fatal("nothing may reach the CMS before validation passes")
	}
}

func TestPublish_Success(t *testing.T) {
	rm := newFakeRepoManager()
	seedResolved(rm)
	cms := newFakeCMS()
	renderer := &fakeRenderer{html: "<p>Hello.</p>"}
	svc := newPublishService(t, rm, cms, renderer)

	result, err := svc.Publish(context.Background(), publishableArticle(), []PublishImage{
		{FileName: "cover.jpg", MimeType: "image/jpeg", URL: "https://signed/k1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.PostID != 42 {
		t.Fatalf("want post id 42, got %d", result.PostID)
	}
	if len(result.MediaIDs) != 1 {
		t.Fatalf("uploaded media ids not reported: %v", result.MediaIDs)
	}
	if cms.createFields["title"] != "Campus reopens" ||
		cms.createFields["author"] != "3" ||
		cms.createFields["categories"] != "11" ||
		cms.createFields["content"] != "<p>Hello.</p>" ||
		cms.createFields["status"] != "publish" {
		t.Fatalf("unexpected post fields: %v", cms.createFields)
	}
	if renderer.media["cover.jpg"] == nil {
		t.Fatal("uploaded media not offered to the renderer")
	}
}

func TestPublish_EmptyAuthorName(t *testing.T) {
	svc := newPublishService(t, newFakeRepoManager(), newFakeCMS(), &fakeRenderer{})

	article := publishableArticle()
	article["author"] = "   "

	_, err := svc.Publish(context.Background(), article, nil)
	if err == nil || !strings.Contains(err.Error(), "no author name provided") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPublish_AuthorSearchMissAndAmbiguity(t *testing.T) {
	rm := newFakeRepoManager()
	rm.cms.rows[cmsKey(models.CMSKindCategory, "News")] = &models.CMSID{
		Kind: models.CMSKindCategory, Name: "News", ExternalID: 11,
	}
	cms := newFakeCMS()
	svc := newPublishService(t, rm, cms, &fakeRenderer{})

	_, err := svc.Publish(context.Background(), publishableArticle(), nil)
	if err == nil || !strings.Contains(err.Error(), "no WordPress author found matching 'Jane Doe'") {
		t.Fatalf("unexpected zero-match error: %v", err)
	}

	cms.users["Jane Doe"] = []wordpress.SearchResult{{ID: 3}, {ID: 4}}
	_, err = svc.Publish(context.Background(), publishableArticle(), nil)
	if err == nil || !strings.Contains(err.Error(), "ambiguous WordPress author 'Jane Doe': 2 matches") {
		t.Fatalf("unexpected ambiguity error: %v", err)
	}
}

func TestPublish_SearchHitIsCached(t *testing.T) {
	rm := newFakeRepoManager()
	rm.cms.rows[cmsKey(models.CMSKindCategory, "News")] = &models.CMSID{
		Kind: models.CMSKindCategory, Name: "News", ExternalID: 11,
	}
	cms := newFakeCMS()
	cms.users["Jane Doe"] = []wordpress.SearchResult{{ID: 3, Name: "Jane Doe"}}
	svc := newPublishService(t, rm, cms, &fakeRenderer{html: "x"})

	if _, err := svc.Publish(context.Background(), publishableArticle(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rm.cms.saved) != 1 || rm.cms.saved[0].ExternalID != 3 {
		t.Fatalf("resolved author not cached: %+v", rm.cms.saved)
	}

	// Second publish resolves from the cache without searching again.
	searches := len(cms.searches)
	if _, err := svc.Publish(context.Background(), publishableArticle(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cms.searches) != searches {
		t.Fatal("cache hit must not hit the search endpoint")
	}
}

func TestPublish_UploadFailureReportsPartialMedia(t *testing.T) {
	rm := newFakeRepoManager()
	seedResolved(rm)
	cms := newFakeCMS()
	cms.uploadErr["second.jpg"] = errors.New("payload too large")
	svc := newPublishService(t, rm, cms, &fakeRenderer{})

	result, err := svc.Publish(context.Background(), publishableArticle(), []PublishImage{
		{FileName: "first.jpg", URL: "https://signed/1"},
		{FileName: "second.jpg", URL: "https://signed/2"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(result.MediaIDs) != 1 {
		t.Fatalf("partial uploads must be reported for cleanup: %v", result.MediaIDs)
	}
}

func TestPublish_CoverBecomesFeaturedMedia(t *testing.T) {
	rm := newFakeRepoManager()
	seedResolved(rm)
	cms := newFakeCMS()
	svc := newPublishService(t, rm, cms, &fakeRenderer{html: "x"})

	article := publishableArticle()
	article["coverimg"] = "cover.jpg"
	article["covercaption"] = "The quad."

	_, err := svc.Publish(context.Background(), article, []PublishImage{
		{FileName: "cover.jpg", URL: "https://signed/1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cms.createFields["featured_media"] != "1" {
		t.Fatalf("featured media not set: %v", cms.createFields)
	}
	if cms.patched[1] != "The quad." {
		t.Fatalf("cover caption not patched: %v", cms.patched)
	}
}

func TestPublish_CoverFromParsedAML(t *testing.T) {
	rm := newFakeRepoManager()
	seedResolved(rm)
	cms := newFakeCMS()
	svc := newPublishService(t, rm, cms, &fakeRenderer{html: "x"})

	raw := "author: Jane Doe\n" +
		"headline: Campus reopens\n" +
		"slug: campus-reopens\n" +
		"excerpt: A short one.\n" +
		"categories: News\n" +
		"coverimg: cover.jpg\n" +
		"covercaption: The quad.\n" +
		"[content]\n" +
		"text: hello\n" +
		"[]\n"
	pc := content.NewParser().Parse([]byte(raw), content.FormatAML)
	if _, failed := pc.Data["status"]; failed {
		t.Fatalf("article did not parse: %v", pc.Data)
	}

	_, err := svc.Publish(context.Background(), pc.Data, []PublishImage{
		{FileName: "cover.jpg", URL: "https://signed/1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cms.createFields["featured_media"] != "1" {
		t.Fatalf("featured media not set: %v", cms.createFields)
	}
	if cms.patched[1] != "The quad." {
		t.Fatalf("cover caption not patched: %v", cms.patched)
	}
}

func TestPublishPackage_NoVersion(t *testing.T) {
	svc := newPublishService(t, newFakeRepoManager(), newFakeCMS(), &fakeRenderer{})

	_, err := svc.PublishPackage(context.Background(), testPackage("p1", "campus.reopens", "f1"))
	if common.KindOf(err) != common.KindValidation {
		t.Fatalf("want validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "has no version to publish") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestPublishPackage_PublishesLatestVersion(t *testing.T) {
	rm := newFakeRepoManager()
	seedResolved(rm)
	cms := newFakeCMS()
	renderer := &fakeRenderer{html: "<p>body</p>"}
	svc := newPublishService(t, rm, cms, renderer)

	latest := "v1"
	pkg := testPackage("p1", "campus.reopens", "f1")
	pkg.LatestVersionID = &latest
	rm.itms.byVersion["v1"] = []*models.PackageItem{
		{ID: "i1", DataType: "aml", FileName: "article.aml", MimeType: "text/plain", Data: map[string]any{
			"_code": "GDRIVE_TXT", "drive_id": "d1", "title": "article.aml", "mimeType": gdocMime,
			"content_plain": map[string]any{"data": map[string]any{
				"author":     "Jane Doe",
				"headline":   "Campus reopens",
				"slug":       "campus-reopens",
				"excerpt":    "x",
				"content":    []any{},
				"categories": "News",
			}},
		}},
		{ID: "i2", DataType: "img", FileName: "cover.jpg", MimeType: "image/jpeg", Data: map[string]any{
			"_code": "GDRIVE_IMG", "drive_id": "d2", "title": "cover.jpg", "mimeType": "image/jpeg",
			"s3_key": "k1", "s3_bucket": "b1",
		}},
	}

	result, err := svc.PublishPackage(context.Background(), pkg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PostID != 42 {
		t.Fatalf("unexpected post id: %d", result.PostID)
	}
	if len(cms.uploads) != 1 || cms.uploads[0] != "cover.jpg" {
		t.Fatalf("image item not uploaded: %v", cms.uploads)
	}
	if pkg.State != models.StatePublished {
		t.Fatalf("package state not advanced: %s", pkg.State)
	}
	if len(rm.pkgs.updated) != 1 {
		t.Fatal("published state not persisted")
	}
}
