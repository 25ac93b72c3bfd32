package models

// PackageItem is one frozen content unit. An item may be linked into
// several versions when carried over unchanged; its Data payload is
// the serialized snapshot and is never mutated after creation except
// to refresh time-limited storage links.
type PackageItem struct {
	ID       string
	DataType string
	Data     map[string]any
	FileName string
	MimeType string
	Tags     []string
}
