// Package requestid generates request identifiers for log correlation.
package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	maxRequestIDLength = 36
	prefixLength       = 5
	maxCustomIDLength  = maxRequestIDLength - prefixLength - 1
)

var (
	sanitizeRegex           = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	consecutiveHyphensRegex = regexp.MustCompile(`-+`)
)

// Generate creates a request ID from an optional client-supplied custom ID.
// The custom ID is sanitized to [A-Za-z0-9-] and prefixed with 5 random hex
// characters for uniqueness; an empty or fully-sanitized-away custom ID
// falls back to a UUID.
func Generate(customID string) string {
	sanitized := strings.ReplaceAll(customID, " ", "-")
	sanitized = sanitizeRegex.ReplaceAllString(sanitized, "")
	sanitized = consecutiveHyphensRegex.ReplaceAllString(sanitized, "-")
	sanitized = strings.TrimPrefix(sanitized, "-")
	sanitized = strings.TrimSuffix(sanitized, "-")

	if sanitized == "" {
		return uuid.New().String()
	}

	prefix := randomPrefix()
	if len(sanitized) > maxCustomIDLength {
		sanitized = sanitized[:maxCustomIDLength]
	}
	return prefix + "-" + sanitized
}

func randomPrefix() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String()[:prefixLength]
	}
	return hex.EncodeToString(buf)[:prefixLength]
}
