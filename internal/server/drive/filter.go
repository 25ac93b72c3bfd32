package drive

import (
	"strings"

	"github.com/editorial-eng/packsync/internal/content"
)

// FilterMethod selects a classification predicate for folder entries.
type FilterMethod int

const (
	FilterExtension FilterMethod = iota + 1
	FilterDocument
	FilterFolder
	FilterImages
)

// FilterItems returns the subset of items matching the predicate.
// FilterExtension matches case-insensitive title suffixes.
func FilterItems(items []content.DriveItem, method FilterMethod, extensions ...string) []content.DriveItem {
	var out []content.DriveItem
	for _, item := range items {
		switch method {
		case FilterDocument:
			if item.MimeType == MimeTypeGoogleDoc {
				out = append(out, item)
			}
		case FilterFolder:
			if item.MimeType == MimeTypeFolder {
				out = append(out, item)
			}
		case FilterImages:
			if strings.HasPrefix(item.MimeType, "image/") {
				out = append(out, item)
			}
		case FilterExtension:
			lower := strings.ToLower(item.Title)
			for _, ext := range extensions {
				if strings.HasSuffix(lower, ext) {
					out = append(out, item)
					break
				}
			}
		}
	}
	return out
}
