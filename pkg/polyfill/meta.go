package polyfill

// FeatureMeta describes one catalogue entry: its aliases, dependencies,
// per-family browser support ranges, and source variants. Source fields
// are read lazily by the catalogue reader and are not part of meta.json.
type FeatureMeta struct {
	Name         string            `json:"-"`
	Aliases      []string          `json:"aliases,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Browsers     map[string]string `json:"browsers,omitempty"`
	DetectSource string            `json:"-"`
	Install      SourceVariant     `json:"-"`
	License      string            `json:"license,omitempty"`
	Repo         string            `json:"repo,omitempty"`
	Spec         string            `json:"spec,omitempty"`
}

// SourceVariant holds a feature's raw and (optional) pre-minified source.
type SourceVariant struct {
	Raw string
	Min string // empty when no min.js variant exists on disk
}

// Select returns the install source to emit, preferring the minified
// variant when minify is requested and present.
func (sv SourceVariant) Select(minify bool) string {
	if minify && sv.Min != "" {
		return sv.Min
	}
	return sv.Raw
}

// Family is a canonical short UA family name (e.g. "ios_saf").
type Family string

const (
	FamilyIE            Family = "ie"
	FamilyIEMob         Family = "ie_mob"
	FamilyFirefox       Family = "firefox"
	FamilyFirefoxMob    Family = "firefox_mob"
	FamilyChrome        Family = "chrome"
	FamilyChromeMob     Family = "chrome_mob"
	FamilySafari        Family = "safari"
	FamilyIOSSafari     Family = "ios_saf"
	FamilyIOSChrome     Family = "ios_chr"
	FamilyOpera         Family = "opera"
	FamilyOperaMob      Family = "opera_mob"
	FamilyOperaMini     Family = "opera_mini"
	FamilyEdge          Family = "edge"
	FamilyEdgeMob       Family = "edge_mob"
	FamilySamsungMobile Family = "samsung_mob"
	FamilyYandex        Family = "yandex_browser"
	FamilyGooglebot     Family = "googlebot"
	FamilyUnknown       Family = "unknown"
)

// Identity is a UA resolved to a canonical family and SemVer-shaped version.
type Identity struct {
	Family Family
	Major  int
	Minor  int
	Patch  int
}

func (id Identity) Known() bool {
	return id.Family != "" && id.Family != FamilyUnknown
}
