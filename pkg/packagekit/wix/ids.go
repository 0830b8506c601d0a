package wix

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/serenize/snaker"
)

// maxIDLength is the longest identifier candle accepts without ICE03
// complaints.
const maxIDLength = 72

var nonIDRun = regexp.MustCompile(`[^a-z0-9]+`)

// ID builds a wix identifier from a prefix and free text. The text is
// camel cased, anything outside [A-Za-z0-9] is dropped. Overlong ids
// are truncated and suffixed with a short hash of the full id, so they
// stay unique and stable.
func ID(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		snake := strings.Trim(nonIDRun.ReplaceAllString(strings.ToLower(p), "_"), "_")
		if snake == "" {
			continue
		}
		b.WriteString(snaker.SnakeToCamel(snake))
	}

	id := b.String()
	if len(id) <= maxIDLength {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%s_%x", id[:maxIDLength-9], sum[:4])
}
