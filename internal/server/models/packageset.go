// Package models defines the server-side rows persisted in Postgres.
package models

import "time"

// PackageSet groups packages backed by one external Drive folder.
// Metadata carries the folder link under the "google_drive" key.
type PackageSet struct {
	ID        string
	Slug      string
	Metadata  map[string]any
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DriveFolderID resolves the configured Drive folder id, empty when
// the folder has not been linked yet.
func (s *PackageSet) DriveFolderID() string {
	return driveFolderID(s.Metadata)
}

func driveFolderID(metadata map[string]any) string {
	gd, ok := metadata["google_drive"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := gd["folder_id"].(string)
	return id
}
