// Package drive wraps the Google Drive API surface the sync pipeline
// depends on: folder listing with pagination, media download, and rich
// vs plain export of Google Docs.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/content"
)

// Drive MIME type sentinels.
const (
	MimeTypeGoogleDoc = "application/vnd.google-apps.document"
	MimeTypeFolder    = "application/vnd.google-apps.folder"
)

// Export content types for rich and plain representations of a Doc.
const (
	ExportMimeHTML = "text/html"
	ExportMimeText = "text/plain"
)

// MaxFetchSize caps downloaded/exported content (10MB).
const MaxFetchSize = 10 * 1024 * 1024

const listPageSize = 100

const fileFields = "id, name, mimeType, webViewLink, thumbnailLink, modifiedTime, lastModifyingUser(displayName, emailAddress)"

// Client is the listing/download contract consumed by the services.
type Client interface {
	// ListFolder lists a Drive folder's direct children. With all set
	// it follows page tokens until exhausted; otherwise it returns the
	// first page and the next page token.
	ListFolder(ctx context.Context, folderID string, all bool, pageToken string) ([]content.DriveItem, string, error)

	// Fetch retrieves file bytes: Docs are exported (rich selects the
	// HTML flavour), everything else is downloaded as media.
	Fetch(ctx context.Context, fileID, mimeType string, rich bool) ([]byte, error)
}

// GoogleClient implements Client over the Drive v3 API.
type GoogleClient struct {
	svc *drive.Service
}

// NewGoogleClient builds a Drive service from an OAuth token source.
func NewGoogleClient(ctx context.Context, ts oauth2.TokenSource) (*GoogleClient, error) {
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &GoogleClient{svc: svc}, nil
}

func (c *GoogleClient) ListFolder(ctx context.Context, folderID string, all bool, pageToken string) ([]content.DriveItem, string, error) {
	var items []content.DriveItem

	for {
		call := c.svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed=false", folderID)).
			OrderBy("name").
			PageSize(listPageSize).
			Fields(googleapi.Field("nextPageToken, files(" + fileFields + ")")).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		res, err := call.Do()
		if err != nil {
			return nil, "", listError(folderID, err)
		}

		for _, f := range res.Files {
			items = append(items, toDriveItem(f))
		}

		pageToken = res.NextPageToken
		if !all || pageToken == "" {
			return items, pageToken, nil
		}
	}
}

func (c *GoogleClient) Fetch(ctx context.Context, fileID, mimeType string, rich bool) ([]byte, error) {
	var rc io.ReadCloser

	if mimeType == MimeTypeGoogleDoc {
		exportMime := ExportMimeText
		if rich {
			exportMime = ExportMimeHTML
		}
		resp, err := c.svc.Files.Export(fileID, exportMime).Context(ctx).Download()
		if err != nil {
			return nil, common.OperationFailed(err, apiBody(err))
		}
		rc = resp.Body
	} else {
		resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return nil, common.OperationFailed(err, apiBody(err))
		}
		rc = resp.Body
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("read drive content: %w", err)
	}
	return data, nil
}

func toDriveItem(f *drive.File) content.DriveItem {
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)

	modifiedBy := ""
	if f.LastModifyingUser != nil {
		modifiedBy = f.LastModifyingUser.DisplayName
		if modifiedBy == "" {
			modifiedBy = f.LastModifyingUser.EmailAddress
		}
	}

	return content.DriveItem{
		ID:            f.Id,
		Title:         f.Name,
		MimeType:      f.MimeType,
		SelfLink:      "https://www.googleapis.com/drive/v3/files/" + f.Id,
		AltLink:       f.WebViewLink,
		ThumbnailLink: f.ThumbnailLink,
		ModifiedDate:  modified,
		ModifiedBy:    modifiedBy,
	}
}

func listError(folderID string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 404 {
		return common.NotFoundError("Google Drive folder not found, URL may be invalid")
	}
	return common.OperationFailed(fmt.Errorf("list folder %s: %w", folderID, err), apiBody(err))
}

func apiBody(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Body
	}
	return ""
}
