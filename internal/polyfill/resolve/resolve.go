// Package resolve computes, for a RequestDescriptor, the ordered set of
// features to install: alias expansion to fixpoint, exclude filtering,
// UA gating against SemVer ranges, dependency closure, and strict-mode
// validation. It is grounded on the teacher's bot-alias expansion
// (internal/common/config/alias_expansion.go, collect-all-errors style)
// and its pattern matcher's first-match-wins scan
// (internal/common/config/matcher.go), adapted to feature resolution.
package resolve

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/polyfillsrv/service/internal/polyfill/toposort"
	"github.com/polyfillsrv/service/internal/polyfill/ua"
	"github.com/polyfillsrv/service/pkg/polyfill"
)

// maxAliasNestingDepth bounds alias fixpoint expansion: aliases nested
// deeper than this fail the request with an error. Each name is expanded
// at most once, so an alias that names itself, directly or through other
// aliases, ends expansion without an error; the names on such a loop add
// nothing to the result and the loop is not reported.
const maxAliasNestingDepth = 32

// Catalogue is the subset of catalogue.Reader the resolver depends on,
// expressed as an interface so tests can supply an in-memory fixture.
type Catalogue interface {
	Read(version, feature string) (*polyfill.FeatureMeta, error)
}

// Resolved is one entry of the resolver's ordered output.
type Resolved struct {
	Meta    *polyfill.FeatureMeta
	Variant string // "raw" or "min"
	Gated   bool
}

// Result is the outcome of a successful Resolve call.
type Result struct {
	Features []Resolved
	Warnings []string
}

// StrictError is returned when strict mode is set and an originally
// requested feature name is absent from the catalogue.
type StrictError struct {
	Feature string
}

func (e *StrictError) Error() string {
	return fmt.Sprintf("unknown feature %q", e.Feature)
}

// CycleError wraps a toposort cycle so callers can surface it as a
// catalogue-integrity error without reaching into the toposort package.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle at %v", e.Nodes)
}

// Resolve runs the full C4 pipeline for a single request.
func Resolve(cat Catalogue, rd *polyfill.RequestDescriptor, version string) (*Result, error) {
	id := ua.Identify(rd.UAString)

	requested, err := expandAliases(cat, version, rd.Features)
	if err != nil {
		return nil, err
	}

	if rd.Strict {
		for name := range rd.Features {
			if _, err := cat.Read(version, name); err != nil {
				return nil, &StrictError{Feature: name}
			}
		}
	}

	var warnings []string
	metaCache := make(map[string]*polyfill.FeatureMeta)
	lookup := func(name string) (*polyfill.FeatureMeta, bool) {
		if m, ok := metaCache[name]; ok {
			return m, true
		}
		m, err := cat.Read(version, name)
		if err != nil {
			return nil, false
		}
		metaCache[name] = m
		return m, true
	}

	kept := make(map[string]polyfill.FlagSet)
	for name, flags := range requested {
		if _, excluded := rd.Excludes[name]; excluded && !flags.Has(polyfill.FlagAlways) {
			continue
		}
		meta, ok := lookup(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("feature %q not present in catalogue, dropped", name))
			continue
		}
		if !gatePasses(meta, id, rd.Unknown, flags) {
			warnings = append(warnings, fmt.Sprintf("feature %q excluded by UA gating", name))
			continue
		}
		kept[name] = flags
	}

	// dependency closure: transitively add dependencies of kept features,
	// themselves still subject to UA gating (but never to "always"
	// unless independently requested).
	frontier := make([]string, 0, len(kept))
	for name := range kept {
		frontier = append(frontier, name)
	}
	for len(frontier) > 0 {
		name := frontier[0]
		frontier = frontier[1:]

		meta, ok := lookup(name)
		if !ok {
			continue
		}
		for _, dep := range meta.Dependencies {
			if _, already := kept[dep]; already {
				continue
			}
			if _, isExcluded := rd.Excludes[dep]; isExcluded {
				continue
			}
			depMeta, ok := lookup(dep)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("dependency %q of %q not present in catalogue, dropped", dep, name))
				continue
			}
			if !gatePasses(depMeta, id, rd.Unknown, polyfill.NewFlagSet()) {
				warnings = append(warnings, fmt.Sprintf("dependency %q of %q excluded by UA gating", dep, name))
				continue
			}
			kept[dep] = polyfill.NewFlagSet()
			frontier = append(frontier, dep)
		}
	}

	nodes := make([]string, 0, len(kept))
	for name := range kept {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)

	var edges []toposort.Edge
	for name := range kept {
		meta, ok := lookup(name)
		if !ok {
			continue
		}
		for _, dep := range meta.Dependencies {
			if _, ok := kept[dep]; ok {
				edges = append(edges, toposort.Edge{From: dep, To: name})
			}
		}
	}

	order, err := toposort.Sort(nodes, edges)
	if err != nil {
		if cycleErr, ok := err.(*toposort.CycleError); ok {
			return nil, &CycleError{Nodes: cycleErr.Nodes}
		}
		return nil, err
	}
	for _, w := range order.Warnings {
		warnings = append(warnings, fmt.Sprintf("dependency edge %s -> %s references unknown node", w.Edge.From, w.Edge.To))
	}

	features := make([]Resolved, 0, len(order.Order))
	for _, name := range order.Order {
		meta, ok := lookup(name)
		if !ok {
			continue
		}
		flags := kept[name]
		variant := "raw"
		if rd.Minify && meta.Install.Min != "" {
			variant = "min"
		}
		features = append(features, Resolved{
			Meta:    meta,
			Variant: variant,
			Gated:   flags.Has(polyfill.FlagGated),
		})
	}

	return &Result{Features: features, Warnings: warnings}, nil
}

// expandAliases replaces any requested name that the catalogue defines as
// an alias for other names, repeating until fixpoint. The originating
// entry's flag set is preserved across every name it expands to.
func expandAliases(cat Catalogue, version string, requested map[string]polyfill.FlagSet) (map[string]polyfill.FlagSet, error) {
	frontier := make(map[string]polyfill.FlagSet, len(requested))
	for name, flags := range requested {
		frontier[name] = flags
	}

	result := make(map[string]polyfill.FlagSet)
	seen := make(map[string]struct{})

	depth := 0
	for len(frontier) > 0 {
		depth++
		if depth > maxAliasNestingDepth {
			return nil, fmt.Errorf("resolve: alias expansion did not converge (possible cycle involving requested features)")
		}

		next := make(map[string]polyfill.FlagSet)
		for name, flags := range frontier {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}

			meta, err := cat.Read(version, name)
			if err != nil {
				// unresolved names fall through to the kept-set lookup below,
				// which will drop them with a warning; alias expansion does
				// not itself error on a missing name.
				mergeInto(result, name, flags)
				continue
			}
			if len(meta.Aliases) == 0 {
				mergeInto(result, name, flags)
				continue
			}
			for _, alias := range meta.Aliases {
				mergeInto(next, alias, flags)
			}
		}
		frontier = next
	}

	return result, nil
}

func mergeInto(dst map[string]polyfill.FlagSet, name string, flags polyfill.FlagSet) {
	existing, ok := dst[name]
	if !ok {
		fresh := polyfill.NewFlagSet()
		fresh.Merge(flags)
		dst[name] = fresh
		return
	}
	existing.Merge(flags)
}

// gatePasses evaluates step 3 of C4: UA gating.
func gatePasses(meta *polyfill.FeatureMeta, id polyfill.Identity, unknown polyfill.UnknownPolicy, flags polyfill.FlagSet) bool {
	if flags.Has(polyfill.FlagAlways) {
		return true
	}

	if !id.Known() {
		return unknown == polyfill.UnknownPolyfill && len(meta.Browsers) > 0
	}

	rangeExpr, ok := meta.Browsers[string(id.Family)]
	if !ok {
		return false
	}

	constraint, err := semver.NewConstraint(rangeExpr)
	if err != nil {
		return false
	}

	v, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", id.Major, id.Minor, id.Patch))
	if err != nil {
		return false
	}

	return constraint.Check(v)
}
