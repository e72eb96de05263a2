// Package params parses the incoming request's path, query and headers
// into a polyfill.RequestDescriptor. It never fails: unrecognized keys
// are ignored and malformed values are dropped silently, the way the
// teacher's pattern matchers treat an unmatched rule as "no opinion"
// rather than an error.
package params

import (
	"regexp"
	"strings"

	"github.com/polyfillsrv/service/pkg/polyfill"
)

var callbackGrammar = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

// Source is the subset of an inbound HTTP request the parser needs. It is
// small and concrete so callers (fasthttp handlers, tests) can build one
// without depending on a particular HTTP library.
type Source struct {
	Path     string
	Query    map[string]string
	UAHeader string
}

// Parse builds a RequestDescriptor from a request Source.
func Parse(src Source) *polyfill.RequestDescriptor {
	rd := polyfill.NewRequestDescriptor()

	rd.Minify = HasMinSuffix(src.Path)

	if v, ok := src.Query["version"]; ok {
		rd.Version = strings.ToLower(strings.TrimSpace(v))
	}

	ua := src.UAHeader
	if v, ok := src.Query["ua"]; ok && v != "" {
		ua = v
	}
	rd.UAString = ua

	if v, ok := src.Query["features"]; ok {
		parseFeatures(rd, v)
	}

	if v, ok := src.Query["excludes"]; ok {
		for _, name := range splitNonEmpty(v, ',') {
			rd.Excludes[name] = struct{}{}
		}
	}

	rd.Unknown = polyfill.UnknownPolyfill
	if v, ok := src.Query["unknown"]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "ignore":
			rd.Unknown = polyfill.UnknownIgnore
		case "polyfill":
			rd.Unknown = polyfill.UnknownPolyfill
		}
	}

	if v, ok := src.Query["strict"]; ok {
		rd.Strict = isTruthyFlag(v)
	}

	if v, ok := src.Query["callback"]; ok && callbackGrammar.MatchString(v) {
		rd.Callback = v
	}

	if v, ok := src.Query["rum"]; ok {
		rd.Rum = v
	}

	return rd
}

// HasMinSuffix reports whether the path requests the minified variant.
func HasMinSuffix(path string) bool {
	return strings.HasSuffix(path, ".min.js")
}

// isTruthyFlag treats a bare strict query key (empty value) as true, as
// well as the explicit values "1" and "true"; any other value is false.
func isTruthyFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "1", "true":
		return true
	default:
		return false
	}
}

// parseFeatures splits the comma-separated features list into name/flag
// pairs. Feature names are kept verbatim (not case-folded): the
// catalogue directory layout and meta.json alias/dependency arrays are
// case-sensitive (e.g. "Array.prototype.includes"), and the filesystem
// backing catalogue.Reader is case-sensitive on the platforms this
// service runs on.
func parseFeatures(rd *polyfill.RequestDescriptor, raw string) {
	for _, entry := range splitNonEmpty(raw, ',') {
		parts := strings.Split(entry, "|")
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}
		flags := polyfill.NewFlagSet()
		for _, f := range parts[1:] {
			f = strings.ToLower(strings.TrimSpace(f))
			switch f {
			case string(polyfill.FlagAlways), string(polyfill.FlagGated):
				flags.Add(polyfill.FeatureFlag(f))
			}
		}
		rd.AddFeature(name, flags)
	}
}

func splitNonEmpty(s string, sep byte) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, string(sep))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
