package models

import "time"

// PackageVersion is an immutable snapshot of a package's chosen items.
// IDNum is 1-based and monotonic per package; numbers are never reused.
type PackageVersion struct {
	ID                 string
	PackageID          string
	IDNum              int
	Title              string
	VersionDescription string
	CreatedBy          string
	CreatedAt          time.Time
}
