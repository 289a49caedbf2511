package id

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const runIDLayout = "20060102T150405"

// NewToken returns 32 lowercase hex characters derived from a random UUID.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewRunID returns a sortable identifier for one migration or settlement run,
// e.g. "20240131T101500-3f9a6a1b".
func NewRunID(at time.Time) string {
	return at.UTC().Format(runIDLayout) + "-" + NewToken()[:8]
}
