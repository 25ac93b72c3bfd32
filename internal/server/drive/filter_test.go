package drive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/editorial-eng/packsync/internal/content"
)

func listing() []content.DriveItem {
	return []content.DriveItem{
		{Title: "article.aml", MimeType: "text/plain"},
		{Title: "Notes", MimeType: MimeTypeGoogleDoc},
		{Title: "photos", MimeType: MimeTypeFolder},
		{Title: "cover.JPG", MimeType: "image/jpeg"},
		{Title: "diagram.png", MimeType: "image/png"},
		{Title: "readme.MD", MimeType: "text/plain"},
	}
}

func TestFilterItems_Documents(t *testing.T) {
	got := FilterItems(listing(), FilterDocument)
	require.Len(t, got, 1)
	require.Equal(t, "Notes", got[0].Title)
}

func TestFilterItems_Folders(t *testing.T) {
	got := FilterItems(listing(), FilterFolder)
	require.Len(t, got, 1)
	require.Equal(t, "photos", got[0].Title)
}

func TestFilterItems_Images(t *testing.T) {
	got := FilterItems(listing(), FilterImages)
	require.Len(t, got, 2)
}

func TestFilterItems_Extensions_CaseInsensitive(t *testing.T) {
	got := FilterItems(listing(), FilterExtension, ".aml", ".md")
	require.Len(t, got, 2)
	require.Equal(t, "article.aml", got[0].Title)
	require.Equal(t, "readme.MD", got[1].Title)
}

func TestFilterItems_NoMatches(t *testing.T) {
	require.Empty(t, FilterItems(listing(), FilterExtension, ".xls"))
}
