package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/content"
	"github.com/editorial-eng/packsync/internal/logging"
	"github.com/editorial-eng/packsync/internal/server/models"
	"github.com/editorial-eng/packsync/internal/server/repositories/repomanager"
	"github.com/editorial-eng/packsync/internal/server/wordpress"
)

// CMSClient is the WordPress surface the publisher needs.
type CMSClient interface {
	CreatePost(ctx context.Context, fields map[string]string) (int, error)
	UploadMediaFromURL(ctx context.Context, srcURL, fileName, mimeType string) (*wordpress.MediaUpload, error)
	PatchMediaCaption(ctx context.Context, mediaID int, caption string) error
	SearchUsers(ctx context.Context, name string) ([]wordpress.SearchResult, error)
	SearchCategories(ctx context.Context, name string) ([]wordpress.SearchResult, error)
}

// HTMLRenderer renders parsed content blocks against uploaded media.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, blocks []any, media map[string]*wordpress.MediaUpload) (string, error)
}

// PublishImage is one stored image offered alongside an article.
type PublishImage struct {
	FileName string
	MimeType string
	URL      string
}

// PublishResult reports what reached the CMS. MediaIDs is populated
// even on failure so callers can clean up uploads that made it.
type PublishResult struct {
	PostID   int
	MediaIDs []int
}

// Top-level fields an article must carry before anything is sent.
var requiredArticleFields = []string{"author", "headline", "slug", "excerpt", "content", "categories"}

type PublishService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cms         CMSClient
	renderer    HTMLRenderer
	packages    *PackageService
	log         logging.Logger
}

func NewPublishService(db *sql.DB, rm repomanager.RepositoryManager, cms CMSClient, renderer HTMLRenderer, packages *PackageService, log logging.Logger) *PublishService {
	return &PublishService{
		db:          db,
		repomanager: rm,
		cms:         cms,
		renderer:    renderer,
		packages:    packages,
		log:         log,
	}
}

// PublishPackage publishes the latest version of a package: the AML
// article item becomes the post, image items are uploaded as media.
// On success the package moves to the published state.
func (s *PublishService) PublishPackage(ctx context.Context, pkg *models.Package) (*PublishResult, error) {
	if pkg.LatestVersionID == nil {
		return nil, common.ValidationError("package %s has no version to publish", pkg.Slug)
	}

	items, err := s.packages.VersionItems(ctx, *pkg.LatestVersionID)
	if err != nil {
		return nil, err
	}

	var article map[string]any
	var images []PublishImage
	for _, item := range items {
		switch item.DataType {
		case content.DataTypeAML:
			if article == nil {
				article = articleData(item)
			}
		case content.DataTypeImage:
			url, _ := item.Data["src_large"].(string)
			images = append(images, PublishImage{
				FileName: item.FileName,
				MimeType: item.MimeType,
				URL:      url,
			})
		}
	}
	if article == nil {
		return nil, common.ValidationError("package %s has no parsed article to publish", pkg.Slug)
	}

	result, err := s.Publish(ctx, article, images)
	if err != nil {
		return result, err
	}

	pkg.State = models.StatePublished
	if err := s.repomanager.Packages(s.db).Update(ctx, pkg); err != nil {
		return result, err
	}

	s.log.Info(ctx, "package published", "package", pkg.Slug, "post_id", result.PostID)
	return result, nil
}

// Publish validates the article, resolves author and category ids,
// uploads the images, renders the body, and creates the post. Media
// uploaded before a failure stays on the CMS; the returned result
// names those ids.
func (s *PublishService) Publish(ctx context.Context, article map[string]any, images []PublishImage) (*PublishResult, error) {
	for _, name := range requiredArticleFields {
		if _, ok := article[name]; !ok {
			return nil, common.ValidationError("Missing top-level AML field: '%s'", name)
		}
	}

	authorName, _ := article["author"].(string)
	authorID, err := s.resolveID(ctx, models.CMSKindAuthor, authorName)
	if err != nil {
		return nil, err
	}

	categoryName, _ := article["categories"].(string)
	categoryID, err := s.resolveID(ctx, models.CMSKindCategory, categoryName)
	if err != nil {
		return nil, err
	}

	result := &PublishResult{}
	media := map[string]*wordpress.MediaUpload{}
	for _, img := range images {
		upload, err := s.cms.UploadMediaFromURL(ctx, img.URL, img.FileName, img.MimeType)
		if err != nil {
			return result, err
		}
		media[img.FileName] = upload
		result.MediaIDs = append(result.MediaIDs, upload.ID)
	}

	blocks, ok := article["content"].([]any)
	if !ok {
		return result, common.ValidationError("top-level AML field 'content' must be a block array")
	}
	body, err := s.renderer.RenderHTML(ctx, blocks, media)
	if err != nil {
		return result, err
	}

	headline, _ := article["headline"].(string)
	slug, _ := article["slug"].(string)
	excerpt, _ := article["excerpt"].(string)

	fields := map[string]string{
		"title":      headline,
		"slug":       slug,
		"excerpt":    excerpt,
		"content":    body,
		"author":     strconv.Itoa(authorID),
		"categories": strconv.Itoa(categoryID),
		"status":     "publish",
	}

	if err := s.applyCover(ctx, article, media, fields); err != nil {
		return result, err
	}

	postID, err := s.cms.CreatePost(ctx, fields)
	if err != nil {
		return result, err
	}
	result.PostID = postID
	return result, nil
}

// applyCover wires the optional cover image. AML carries the cover as
// top-level scalar fields: 'coverimg' names the uploaded file and
// 'covercaption' holds its caption, patched onto the media item.
func (s *PublishService) applyCover(ctx context.Context, article map[string]any, media map[string]*wordpress.MediaUpload, fields map[string]string) error {
	coverimg, _ := article["coverimg"].(string)
	if coverimg == "" {
		return nil
	}
	upload, ok := media[coverimg]
	if !ok {
		return common.ValidationError("no uploaded media found for cover '%s'", coverimg)
	}

	if caption, _ := article["covercaption"].(string); caption != "" {
		if err := s.cms.PatchMediaCaption(ctx, upload.ID, caption); err != nil {
			return err
		}
	}
	fields["featured_media"] = strconv.Itoa(upload.ID)
	return nil
}

// resolveID maps an author or category name to its CMS id through the
// cms_ids cache. A miss falls through to the CMS search endpoint and
// persists the answer; the insert tolerates concurrent first lookups.
func (s *PublishService) resolveID(ctx context.Context, kind, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, common.ValidationError("no %s name provided", kind)
	}

	repo := s.repomanager.CMSIDs(s.db)
	cms, err := repo.Lookup(ctx, kind, name)
	if err == nil {
		return cms.ExternalID, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return 0, err
	}

	var results []wordpress.SearchResult
	switch kind {
	case models.CMSKindAuthor:
		results, err = s.cms.SearchUsers(ctx, name)
	default:
		results, err = s.cms.SearchCategories(ctx, name)
	}
	if err != nil {
		return 0, err
	}
	switch {
	case len(results) == 0:
		return 0, common.ValidationError("no WordPress %s found matching '%s'", kind, name)
	case len(results) > 1:
		return 0, common.ValidationError("ambiguous WordPress %s '%s': %d matches", kind, name, len(results))
	}

	saved, err := repo.Save(ctx, &models.CMSID{
		ID:         uuid.NewString(),
		Kind:       kind,
		Name:       name,
		ExternalID: results[0].ID,
	})
	if err != nil {
		return 0, err
	}
	return saved.ExternalID, nil
}

// articleData pulls the parsed article structure from an AML item,
// preferring the rich representation. Error envelopes are skipped so a
// failed parse never publishes.
func articleData(item *models.PackageItem) map[string]any {
	for _, key := range []string{"content_rich", "content_plain"} {
		pc, ok := item.Data[key].(map[string]any)
		if !ok {
			continue
		}
		data, ok := pc["data"].(map[string]any)
		if !ok {
			continue
		}
		if _, failed := data["status"]; failed {
			continue
		}
		return data
	}
	return nil
}
