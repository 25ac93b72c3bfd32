// Package gdoc cleans the HTML export of a Google Doc down to the
// minimal rich text kept in a package cache: an allow-list of inline
// tags, meaningful inline styles only, paragraphs collapsed to
// newlines, and link hrefs unwrapped from Google's tracking redirect.
package gdoc

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	allowedTags = []string{"a", "p", "span", "em", "strong"}

	styleDeclRe = regexp.MustCompile(`([-\w]+)\s*:\s*([^:;]*)`)

	// Styles that carry no information in a Doc export.
	boringStyles = map[string][]string{
		"font-weight":     {"400", "normal"},
		"text-decoration": {"none"},
		"font-style":      {"normal"},
	}
)

// Cleaner sanitises exported Doc HTML. Construct once and inject; the
// underlying policy is safe for concurrent use.
type Cleaner struct {
	policy *bluemonday.Policy
}

func NewCleaner() *Cleaner {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowStyles("font-weight", "font-style", "text-decoration").OnElements("span")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	return &Cleaner{policy: p}
}

// Clean applies the allow-list sanitiser and then rewrites the
// remaining tokens: spans reduced to interesting styles (dropped
// entirely when nothing interesting remains), p tags converted to
// newlines, and redirect-wrapped hrefs restored to their target.
func (c *Cleaner) Clean(raw string) string {
	return rewriteTokens(c.policy.Sanitize(raw))
}

func rewriteTokens(src string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(src))

	// Tracks, per open span, whether its close tag should be dropped.
	var spanDropped []bool

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return b.String()
		}
		tok := z.Token()

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.Data {
			case "p":
				continue
			case "span":
				styles := reduceStyles(attrValue(tok, "style"))
				if styles == "" {
					spanDropped = append(spanDropped, true)
					continue
				}
				spanDropped = append(spanDropped, false)
				b.WriteString(`<span style="` + html.EscapeString(styles) + `">`)
				continue
			case "a":
				href := unwrapRedirect(attrValue(tok, "href"))
				if href == "" {
					b.WriteString("<a>")
				} else {
					b.WriteString(`<a href="` + html.EscapeString(href) + `">`)
				}
				continue
			}
			b.WriteString("<" + tok.Data + ">")

		case html.EndTagToken:
			switch tok.Data {
			case "p":
				b.WriteString("\n")
				continue
			case "span":
				if n := len(spanDropped); n > 0 {
					dropped := spanDropped[n-1]
					spanDropped = spanDropped[:n-1]
					if dropped {
						continue
					}
				}
			}
			b.WriteString("</" + tok.Data + ">")

		case html.TextToken:
			b.WriteString(html.EscapeString(tok.Data))
		}
	}
}

func attrValue(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// reduceStyles keeps only declarations that change rendering.
func reduceStyles(styles string) string {
	if styles == "" {
		return ""
	}
	var kept strings.Builder
	for _, m := range styleDeclRe.FindAllStringSubmatch(styles, -1) {
		prop, value := m[1], strings.TrimSpace(m[2])
		if styleIsBoring(prop, value) {
			continue
		}
		kept.WriteString(prop + ":" + value + ";")
	}
	return kept.String()
}

func styleIsBoring(prop, value string) bool {
	for _, v := range boringStyles[prop] {
		if v == value {
			return true
		}
	}
	return false
}

// unwrapRedirect recovers the original target from a Google tracking
// redirect (https://www.google.com/url?q=<target>&...). Other URLs
// pass through unchanged.
func unwrapRedirect(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if q := u.Query().Get("q"); q != "" {
		return q
	}
	return href
}
