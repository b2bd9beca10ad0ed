// Package ids generates prefixed entity identifiers.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a new identifier of the form "<prefix>_<uuid-without-dashes>".
func New(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
