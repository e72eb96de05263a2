package params

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polyfillsrv/service/pkg/polyfill"
)

func TestParse_Basic(t *testing.T) {
	rd := Parse(Source{
		Path: "/v3/polyfill.js",
		Query: map[string]string{
			"features": "Promise,fetch|always",
			"excludes": "Array.prototype.includes",
			"version":  "3.100.0",
			"unknown":  "ignore",
			"strict":   "1",
			"callback": "myCB",
		},
		UAHeader: "Mozilla/5.0 Chrome/120.0.0.0",
	})

	assert.False(t, rd.Minify)
	assert.Equal(t, "3.100.0", rd.Version)
	assert.Equal(t, "Mozilla/5.0 Chrome/120.0.0.0", rd.UAString)
	assert.Contains(t, rd.Features, "Promise")
	assert.Contains(t, rd.Features, "fetch")
	assert.True(t, rd.Features["fetch"].Has(polyfill.FlagAlways))
	assert.False(t, rd.Features["Promise"].Has(polyfill.FlagAlways))
	_, excluded := rd.Excludes["Array.prototype.includes"]
	assert.True(t, excluded)
	assert.Equal(t, polyfill.UnknownIgnore, rd.Unknown)
	assert.True(t, rd.Strict)
	assert.Equal(t, "myCB", rd.Callback)
}

func TestParse_MinSuffix(t *testing.T) {
	rd := Parse(Source{Path: "/v3/polyfill.min.js", Query: map[string]string{}})
	assert.True(t, rd.Minify)
}

func TestParse_UAQueryOverridesHeader(t *testing.T) {
	rd := Parse(Source{
		Path:     "/v3/polyfill.js",
		Query:    map[string]string{"ua": "chrome/120.0.0"},
		UAHeader: "Mozilla/5.0 Firefox/115.0",
	})
	assert.Equal(t, "chrome/120.0.0", rd.UAString)
}

func TestParse_DuplicateFeaturesMergeFlags(t *testing.T) {
	rd := Parse(Source{
		Path:  "/v3/polyfill.js",
		Query: map[string]string{"features": "Promise|always,Promise|gated"},
	})
	flags := rd.Features["Promise"]
	assert.True(t, flags.Has(polyfill.FlagAlways))
	assert.True(t, flags.Has(polyfill.FlagGated))
}

func TestParse_InvalidCallbackDropped(t *testing.T) {
	rd := Parse(Source{
		Path:  "/v3/polyfill.js",
		Query: map[string]string{"callback": "1invalid"},
	})
	assert.Empty(t, rd.Callback)
}

func TestParse_UnknownDefaultsToPolyfill(t *testing.T) {
	rd := Parse(Source{Path: "/v3/polyfill.js", Query: map[string]string{}})
	assert.Equal(t, polyfill.UnknownPolyfill, rd.Unknown)
}

func TestParse_StrictPresenceIsTrue(t *testing.T) {
	rd := Parse(Source{Path: "/v3/polyfill.js", Query: map[string]string{"strict": ""}})
	assert.True(t, rd.Strict)
}

func TestParse_NeverFailsOnGarbageQuery(t *testing.T) {
	rd := Parse(Source{
		Path:  "/v3/polyfill.js",
		Query: map[string]string{"bogus_key": "whatever", "features": ",,,|||,"},
	})
	assert.Empty(t, rd.Features)
}

func TestParse_RumPassthrough(t *testing.T) {
	rd := Parse(Source{Path: "/v3/polyfill.js", Query: map[string]string{"rum": "abc123"}})
	assert.Equal(t, "abc123", rd.Rum)
}
