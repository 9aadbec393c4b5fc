// Package utils provides small helpers shared across the application.
//
// Go Learning Note — "pkg/" Directory Convention:
// Code under pkg/ is intended to be importable by external projects (unlike
// internal/ which is compiler-enforced private). This is a community
// convention, not a Go language feature.
package utils

import (
	"github.com/google/uuid"
)

// GenerateID creates a new UUID v4 string for use as an entity identifier.
//
// Go Learning Note — "github.com/google/uuid":
// uuid.New() creates a random (v4) UUID. IDs can be minted on any instance
// without coordination, which suits an event log written from many
// processes.
func GenerateID() string {
	return uuid.New().String()
}
