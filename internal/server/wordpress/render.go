package wordpress

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/editorial-eng/packsync/internal/common"
)

// HeadlineFetcher resolves a related-link URL to its page headline.
type HeadlineFetcher interface {
	FetchHeadline(ctx context.Context, pageURL string) (string, error)
}

// CaptionPatcher writes a caption onto an already uploaded media object.
type CaptionPatcher interface {
	PatchMediaCaption(ctx context.Context, mediaID int, caption string) error
}

// Renderer turns parsed content blocks into the HTML body of a post.
type Renderer struct {
	fetcher HeadlineFetcher
	patcher CaptionPatcher
	strip   *bluemonday.Policy
}

func NewRenderer(fetcher HeadlineFetcher, patcher CaptionPatcher) *Renderer {
	return &Renderer{
		fetcher: fetcher,
		patcher: patcher,
		strip:   bluemonday.StrictPolicy(),
	}
}

// RenderHTML renders the content array of a parsed article. Image
// blocks are resolved against media, keyed by their source link, and
// have their captions patched onto the uploaded object as a side
// effect. Any malformed or unrecognised block fails the whole render.
func (r *Renderer) RenderHTML(ctx context.Context, blocks []any, media map[string]*MediaUpload) (string, error) {
	var b strings.Builder

	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			return "", common.ValidationError("malformed content block: %v", raw)
		}
		blockType, _ := block["type"].(string)

		rendered, err := r.renderBlock(ctx, blockType, block["value"], media)
		if err != nil {
			return "", err
		}
		b.WriteString(rendered)
	}
	return b.String(), nil
}

func (r *Renderer) renderBlock(ctx context.Context, blockType string, value any, media map[string]*MediaUpload) (string, error) {
	switch blockType {
	case "text", "p":
		text, err := stringValue(blockType, value)
		if err != nil {
			return "", err
		}
		return "<p>" + html.UnescapeString(text) + "</p>", nil

	case "aside":
		text, err := stringValue(blockType, value)
		if err != nil {
			return "", err
		}
		return "<aside>" + html.UnescapeString(text) + "</aside>", nil

	case "embed_instagram", "embed_twitter":
		// WordPress auto-embeds a bare URL on its own line.
		text, err := stringValue(blockType, value)
		if err != nil {
			return "", err
		}
		return "\n" + r.strip.Sanitize(text) + "\n", nil

	case "image":
		return r.renderImage(ctx, value, media)

	case "related_link":
		return r.renderRelatedLink(ctx, value)

	default:
		return "", common.ValidationError("unsupported content block type: '%s'", blockType)
	}
}

func (r *Renderer) renderImage(ctx context.Context, value any, media map[string]*MediaUpload) (string, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return "", common.ValidationError("image block value must be an object, got %v", value)
	}
	src, ok := obj["src"].(string)
	if !ok || src == "" {
		return "", common.ValidationError("image block is missing its 'src' key")
	}
	caption, _ := obj["caption"].(string)

	upload, ok := media[src]
	if !ok {
		return "", common.ValidationError("no uploaded media found for image '%s'", src)
	}

	if err := r.patcher.PatchMediaCaption(ctx, upload.ID, caption); err != nil {
		return "", err
	}

	return fmt.Sprintf(`[caption id="attachment_%d" align="alignnone"]%s%s[/caption]`,
		upload.ID, strings.TrimSpace(upload.HTML), caption), nil
}

func (r *Renderer) renderRelatedLink(ctx context.Context, value any) (string, error) {
	linkURL, err := stringValue("related_link", value)
	if err != nil {
		return "", err
	}

	headline, err := r.fetcher.FetchHeadline(ctx, linkURL)
	if err != nil {
		return "", err
	}

	block := fmt.Sprintf(`<p><b>[Related link: </b><a href="%s"><b>%s</b></a><b>]</b></p>`, linkURL, headline)
	return strings.ReplaceAll(block, "\n", ""), nil
}

func stringValue(blockType string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", common.ValidationError("content block '%s' must carry a text value, got %v", blockType, value)
	}
	return s, nil
}
