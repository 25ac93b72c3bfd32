// Package wordpress talks to the target CMS: post creation, media
// upload, name searches, and rendering structured content blocks into
// publish-ready HTML.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/editorial-eng/packsync/internal/common"
)

// MediaUpload is the CMS metadata returned for an uploaded image.
type MediaUpload struct {
	ID int
	// HTML is the embeddable fragment rendered by the CMS.
	HTML string
	// Caption is the currently rendered caption.
	Caption string
}

// SearchResult is one hit from a users/categories search.
type SearchResult struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Client is a WordPress REST API client using Basic authentication.
type Client struct {
	baseURL  string
	user     string
	password string
	httpc    *http.Client
}

func NewClient(baseURL, user, password string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		httpc:    httpc,
	}
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/wp-json/wp/v2" + path
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, common.OperationFailed(err, "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.OperationFailed(err, "")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.OperationFailed(fmt.Errorf("wordpress returned %d", resp.StatusCode), string(body))
	}
	return body, nil
}

// CreatePost publishes a post and returns its remote id.
func (c *Client) CreatePost(ctx context.Context, fields map[string]string) (int, error) {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/posts"), strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return 0, err
	}

	var res struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, common.OperationFailed(err, string(body))
	}
	return res.ID, nil
}

// UploadMedia pushes raw image bytes to the media endpoint.
func (c *Client) UploadMedia(ctx context.Context, fileName, mimeType string, data []byte) (*MediaUpload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/media"), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Content-Disposition", fmt.Sprintf("form-data; filename=%s", fileName))

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var res struct {
		ID          int `json:"id"`
		Description struct {
			Rendered string `json:"rendered"`
		} `json:"description"`
		Caption struct {
			Rendered string `json:"rendered"`
		} `json:"caption"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, common.OperationFailed(err, string(body))
	}
	return &MediaUpload{ID: res.ID, HTML: res.Description.Rendered, Caption: res.Caption.Rendered}, nil
}

// UploadMediaFromURL downloads an image (typically a presigned storage
// link) and uploads it to the media endpoint.
func (c *Client) UploadMediaFromURL(ctx context.Context, srcURL, fileName, mimeType string) (*MediaUpload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, common.OperationFailed(err, "")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, common.NotFoundError("image source %s returned %d", srcURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.OperationFailed(err, "")
	}
	return c.UploadMedia(ctx, fileName, mimeType, data)
}

// PatchMediaCaption updates the caption on an uploaded media object.
func (c *Client) PatchMediaCaption(ctx context.Context, mediaID int, caption string) error {
	form := url.Values{}
	form.Set("caption", caption)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/media/"+strconv.Itoa(mediaID)), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err = c.do(req)
	return err
}

// DeleteMedia removes an uploaded media object. Publishing never calls
// this; it exists for callers cleaning up after partial failures.
func (c *Client) DeleteMedia(ctx context.Context, mediaID int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.endpoint("/media/"+strconv.Itoa(mediaID)+"?force=true"), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// SearchUsers queries users by display name.
func (c *Client) SearchUsers(ctx context.Context, name string) ([]SearchResult, error) {
	return c.search(ctx, "/users?search="+url.QueryEscape(name))
}

// SearchCategories queries categories by slug.
func (c *Client) SearchCategories(ctx context.Context, slug string) ([]SearchResult, error) {
	return c.search(ctx, "/categories?slug="+url.QueryEscape(slug))
}

func (c *Client) search(ctx context.Context, pathAndQuery string) ([]SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(pathAndQuery), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var res []SearchResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, common.OperationFailed(err, string(body))
	}
	return res, nil
}

var h1Re = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
var tagRe = regexp.MustCompile(`<[^>]+>`)

// FetchHeadline retrieves a page and extracts its first h1 text.
func (c *Client) FetchHeadline(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", common.OperationFailed(err, "")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", common.OperationFailed(fmt.Errorf("related link %s returned %d", pageURL, resp.StatusCode), "")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return "", common.OperationFailed(err, "")
	}

	m := h1Re.FindSubmatch(body)
	if m == nil {
		return "", common.ValidationError("no headline found at %s", pageURL)
	}
	return strings.TrimSpace(tagRe.ReplaceAllString(string(m[1]), "")), nil
}
