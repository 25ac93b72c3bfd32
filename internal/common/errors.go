// Package common defines shared sentinel errors and the error-kind
// taxonomy used across packsync components. Callers should use
// errors.Is / errors.As to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Snapshot deserialization errors.
	ErrorIncorrectSnapshot = errors.New("incorrect snapshot payload")

	// Media pipeline errors.
	ErrorImageNotFound = errors.New("image could not be downloaded")
)
