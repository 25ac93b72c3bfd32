package models

import "time"

// Package states.
const (
	StateInProgress = "wip"
	StateReady      = "rdy"
	StatePublished  = "pub"
)

// Package is one content item being edited. Cached holds the working
// copy of the external source as serialized snapshots; it is always
// replaced wholesale on refresh, never merged.
type Package struct {
	ID              string
	PackageSetID    string
	Slug            string
	Metadata        map[string]any
	Cached          []map[string]any
	LastFetchedDate *time.Time
	State           string
	Tags            []string
	LatestVersionID *string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DriveFolderID resolves the package's configured Drive folder id,
// empty when not linked.
func (p *Package) DriveFolderID() string {
	return driveFolderID(p.Metadata)
}
