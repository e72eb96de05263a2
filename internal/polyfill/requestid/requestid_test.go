package requestid

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name       string
		customID   string
		expectUUID bool
		pattern    string
	}{
		{"empty falls back to uuid", "", true, ""},
		{"simple id", "my-request", false, `^[a-f0-9]{5}-my-request$`},
		{"special characters stripped", "my@request#123!", false, `^[a-f0-9]{5}-myrequest123$`},
		{"spaces become hyphens", "my request 123", false, `^[a-f0-9]{5}-my-request-123$`},
		{"only special characters falls back to uuid", "@#$%^&*()", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Generate(tt.customID)
			assert.LessOrEqual(t, len(result), maxRequestIDLength)

			if tt.expectUUID {
				uuidPattern := regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
				assert.True(t, uuidPattern.MatchString(result), "got %s", result)
				return
			}
			assert.Regexp(t, regexp.MustCompile(tt.pattern), result)
		})
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := Generate("test-request")
		require.False(t, seen[id], "duplicate request id: %s", id)
		seen[id] = true
	}
}

func TestGenerate_TruncatesLongCustomIDs(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	result := Generate(long)
	assert.Equal(t, maxRequestIDLength, len(result))
}
