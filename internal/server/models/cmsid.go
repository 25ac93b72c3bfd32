package models

// CMSID kinds.
const (
	CMSKindAuthor   = "author"
	CMSKindCategory = "category"
)

// CMSID caches the mapping from an author/category name to its numeric
// id on the target CMS. Names are matched case-insensitively.
type CMSID struct {
	ID         string
	Kind       string
	Name       string
	ExternalID int
}
