package content

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/editorial-eng/packsync/internal/content/aml"
)

// ParsedContent is the ephemeral result of parsing one raw document:
// the raw text, derived HTML (empty when the format has none), and a
// structured data object.
//
// Data is a two-outcome envelope: on success it holds the
// format-specific structure; on any parse failure it degrades to
// {"status":1,"content":{"Error":<message>}} with HTML cleared. The
// error envelope is meaningful stored data, so parsing never returns
// an error to its caller.
type ParsedContent struct {
	Raw  string         `json:"raw"`
	HTML string         `json:"html"`
	Data map[string]any `json:"data"`
}

// Parser converts raw file bytes into ParsedContent. It owns the
// Markdown converter so the conversion pipeline is constructed once at
// the composition root and injected where needed.
type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	return &Parser{md: goldmark.New()}
}

// Parse dispatches on format. Input bytes are assumed UTF-8.
func (p *Parser) Parse(raw []byte, format Format) ParsedContent {
	pc := ParsedContent{Raw: string(raw)}

	var err error
	switch format {
	case FormatMD:
		err = p.parseMarkdown(&pc)
	case FormatAML:
		err = parseAML(&pc)
	default:
		pc.Data = map[string]any{"status": 0, "content": map[string]any{}}
	}

	if err != nil {
		pc.HTML = ""
		pc.Data = failureData(err)
	}
	return pc
}

// Failed wraps an upstream failure in the same envelope a parse
// failure produces, so a stored document always carries well-formed
// data even when its bytes never arrived.
func Failed(err error) ParsedContent {
	return ParsedContent{Data: failureData(err)}
}

func failureData(err error) map[string]any {
	return map[string]any{"status": 1, "content": map[string]any{"Error": err.Error()}}
}

func (p *Parser) parseMarkdown(pc *ParsedContent) error {
	meta, body, err := splitFrontMatter(pc.Raw)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := p.md.Convert([]byte(body), &buf); err != nil {
		return err
	}

	pc.HTML = buf.String()
	pc.Data = meta
	return nil
}

func parseAML(pc *ParsedContent) error {
	data, err := aml.Parse(pc.Raw)
	if err != nil {
		return err
	}
	pc.HTML = ""
	pc.Data = data
	return nil
}

const frontMatterDelim = "---"

// splitFrontMatter separates a leading YAML front-matter header from
// the markdown body. Without a header the whole input is the body.
func splitFrontMatter(raw string) (map[string]any, string, error) {
	meta := map[string]any{}

	trimmed := strings.TrimPrefix(raw, "\uFEFF")
	if !strings.HasPrefix(trimmed, frontMatterDelim+"\n") && trimmed != frontMatterDelim {
		return meta, raw, nil
	}

	rest := strings.TrimPrefix(trimmed, frontMatterDelim+"\n")
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return nil, "", fmt.Errorf("unterminated front matter header")
	}

	header := rest[:end]
	body := rest[end+len("\n"+frontMatterDelim):]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return nil, "", err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, body, nil
}
