// Package content implements the normalized representation of
// externally sourced files: format inference, parsing of raw text into
// JSON-able structures, and the polymorphic snapshot model persisted
// on package caches and items.
package content

import "strings"

// Format identifies how a text file's body should be parsed.
type Format string

const (
	FormatAML   Format = "AML"
	FormatMD    Format = "MD"
	FormatPlain Format = "PLAIN"
)

// Data type discriminators stored on package items.
const (
	DataTypeText        = "txt"
	DataTypeAML         = "aml"
	DataTypeImage       = "img"
	DataTypeMarkdown    = "mdn"
	DataTypeSpreadsheet = "xls"
)

var formatTable = map[string]Format{
	"aml": FormatAML,
	"md":  FormatMD,
}

// InferFormat maps a file title's extension to its parse format,
// defaulting to plain text.
func InferFormat(title string) Format {
	parts := strings.Split(title, ".")
	ext := strings.ToLower(parts[len(parts)-1])
	if f, ok := formatTable[ext]; ok {
		return f
	}
	return FormatPlain
}

// ContentExtensions lists the file extensions treated as content files
// during a cache refresh.
var ContentExtensions = []string{".aml", ".md", ".txt"}

// IsContentFile reports whether the title carries a recognised content
// extension.
func IsContentFile(title string) bool {
	lower := strings.ToLower(title)
	for _, ext := range ContentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
