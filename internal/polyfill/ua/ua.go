// Package ua identifies a raw User-Agent string as (family, major, minor,
// patch). It is grounded on the teacher's internal/edge/device device
// detector (ordered-pattern matching, most specific first) and on the
// mssola/useragent + Masterminds/semver pairing used by the esm.sh
// compat layer for family/version extraction and range comparison.
package ua

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mssola/useragent"

	"github.com/polyfillsrv/service/pkg/polyfill"
)

// syntheticForm matches the compact "family/major.minor.patch" shape used
// by tests and by internal URL rewriting (e.g. ua=chrome/120.0.0).
var syntheticForm = regexp.MustCompile(`^([a-z_]+)/(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)

type familyRule struct {
	family  polyfill.Family
	pattern *regexp.Regexp
}

// familyTable is order-sensitive: more specific families must be tested
// before the generic families they would otherwise be misclassified as.
// Sorting this table alphabetically would misclassify iOS Safari as
// desktop Safari, or Edge as Chrome.
var familyTable = []familyRule{
	{polyfill.FamilyEdgeMob, regexp.MustCompile(`(?i)EdgA/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyEdge, regexp.MustCompile(`(?i)Edg(?:e|iOS|A)?/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyOperaMini, regexp.MustCompile(`(?i)Opera Mini/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyOperaMob, regexp.MustCompile(`(?i)Opera Mobi.*Version/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyOpera, regexp.MustCompile(`(?i)(?:OPR|Opera)/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilySamsungMobile, regexp.MustCompile(`(?i)SamsungBrowser/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyYandex, regexp.MustCompile(`(?i)YaBrowser/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyGooglebot, regexp.MustCompile(`(?i)Googlebot/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyIOSChrome, regexp.MustCompile(`(?i)CriOS/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyIOSSafari, regexp.MustCompile(`(?i)iP(?:hone|od|ad).*Version/(\d+)(?:\.(\d+))?(?:\.(\d+))?.*Safari`)},
	{polyfill.FamilyChromeMob, regexp.MustCompile(`(?i)Android.*Chrome/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyChrome, regexp.MustCompile(`(?i)Chrome/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilySafari, regexp.MustCompile(`(?i)Version/(\d+)(?:\.(\d+))?(?:\.(\d+))?.*Safari`)},
	{polyfill.FamilyFirefoxMob, regexp.MustCompile(`(?i)Android.*Firefox/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyFirefox, regexp.MustCompile(`(?i)Firefox/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyIEMob, regexp.MustCompile(`(?i)IEMobile/(\d+)(?:\.(\d+))?(?:\.(\d+))?`)},
	{polyfill.FamilyIE, regexp.MustCompile(`(?i)(?:MSIE (\d+)(?:\.(\d+))?|Trident/.*rv:(\d+)(?:\.(\d+))?)`)},
}

// upToDateThresholds defines, per family, the major version at or above
// which a UA is considered modern enough to need no polyfills at all.
// This is data, not logic: adjusting a threshold never touches matching
// code.
var upToDateThresholds = map[polyfill.Family]int{
	polyfill.FamilyChrome:    100,
	polyfill.FamilyChromeMob: 100,
	polyfill.FamilyFirefox:   100,
	polyfill.FamilyEdge:      100,
	polyfill.FamilySafari:    15,
	polyfill.FamilyIOSSafari: 15,
}

// Identify maps a raw or synthetic UA string to a polyfill.Identity.
func Identify(raw string) polyfill.Identity {
	if id, ok := identifySynthetic(raw); ok {
		return id
	}

	for _, rule := range familyTable {
		m := rule.pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		return polyfill.Identity{
			Family: rule.family,
			Major:  firstNonEmptyInt(m, 1, 3),
			Minor:  firstNonEmptyInt(m, 2, 4),
			Patch:  atoiOrZero(lastGroup(m)),
		}
	}

	// fall back to the generic tokenizer for families not worth a
	// bespoke regex (kept for parity with the teacher's layered
	// detection: a fast specific pass, then a generic catch-all).
	return identifyGeneric(raw)
}

// genericFamilyByBrowserName maps the browser names mssola/useragent
// reports to this package's Family constants, for UAs none of
// familyTable's patterns matched.
var genericFamilyByBrowserName = map[string]polyfill.Family{
	"Chrome":             polyfill.FamilyChrome,
	"Firefox":            polyfill.FamilyFirefox,
	"Safari":             polyfill.FamilySafari,
	"Opera":              polyfill.FamilyOpera,
	"Edge":               polyfill.FamilyEdge,
	"Internet Explorer":  polyfill.FamilyIE,
	"Android":            polyfill.FamilyChromeMob,
	"Samsung Browser":    polyfill.FamilySamsungMobile,
	"Yandex Browser":     polyfill.FamilyYandex,
	"Googlebot":          polyfill.FamilyGooglebot,
}

// identifyGeneric uses mssola/useragent's token scan to name a browser
// family and version when familyTable's bespoke patterns found no
// match, e.g. lesser-used browser tokens or unusual header ordering.
func identifyGeneric(raw string) polyfill.Identity {
	name, version := useragent.New(raw).Browser()
	family, ok := genericFamilyByBrowserName[name]
	if !ok {
		return polyfill.Identity{Family: polyfill.FamilyUnknown}
	}
	major, minor, patch := splitVersion(version)
	return polyfill.Identity{Family: family, Major: major, Minor: minor, Patch: patch}
}

func splitVersion(v string) (major, minor, patch int) {
	parts := strings.Split(v, ".")
	if len(parts) > 0 {
		major = atoiOrZero(parts[0])
	}
	if len(parts) > 1 {
		minor = atoiOrZero(parts[1])
	}
	if len(parts) > 2 {
		patch = atoiOrZero(parts[2])
	}
	return major, minor, patch
}

func identifySynthetic(raw string) (polyfill.Identity, bool) {
	m := syntheticForm.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return polyfill.Identity{}, false
	}
	family := polyfill.Family(m[1])
	if !isKnownFamily(family) {
		return polyfill.Identity{}, false
	}
	return polyfill.Identity{
		Family: family,
		Major:  atoiOrZero(m[2]),
		Minor:  atoiOrZero(m[3]),
		Patch:  atoiOrZero(m[4]),
	}, true
}

func isKnownFamily(f polyfill.Family) bool {
	switch f {
	case polyfill.FamilyIE, polyfill.FamilyIEMob, polyfill.FamilyFirefox, polyfill.FamilyFirefoxMob,
		polyfill.FamilyChrome, polyfill.FamilyChromeMob, polyfill.FamilySafari, polyfill.FamilyIOSSafari,
		polyfill.FamilyIOSChrome, polyfill.FamilyOpera, polyfill.FamilyOperaMob, polyfill.FamilyOperaMini,
		polyfill.FamilyEdge, polyfill.FamilyEdgeMob, polyfill.FamilySamsungMobile, polyfill.FamilyYandex,
		polyfill.FamilyGooglebot:
		return true
	default:
		return false
	}
}

// IsUpToDate reports whether id meets the modernity threshold for its
// family. Unknown families and families with no declared threshold are
// never considered up to date.
func IsUpToDate(id polyfill.Identity) bool {
	threshold, ok := upToDateThresholds[id.Family]
	if !ok {
		return false
	}
	return id.Major >= threshold
}

func firstNonEmptyInt(m []string, idxPairs ...int) int {
	for _, idx := range idxPairs {
		if idx < len(m) && m[idx] != "" {
			return atoiOrZero(m[idx])
		}
	}
	return 0
}

func lastGroup(m []string) string {
	for i := len(m) - 1; i > 0; i-- {
		if m[i] != "" {
			return m[i]
		}
	}
	return ""
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
