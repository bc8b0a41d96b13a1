package store

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns prefix-<suffix> where suffix is the first 12 hex chars of a
// random UUID.
func NewID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}
