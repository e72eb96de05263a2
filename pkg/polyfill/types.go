// Package polyfill holds the data types shared across the polyfill
// selection and assembly pipeline: the normalized request descriptor,
// catalogue feature metadata, and identified user-agent.
package polyfill

import "sort"

// UnknownPolicy controls how an unidentified User-Agent is treated.
type UnknownPolicy string

const (
	UnknownPolyfill UnknownPolicy = "polyfill"
	UnknownIgnore   UnknownPolicy = "ignore"
)

// FeatureFlag is a per-feature request-time modifier.
type FeatureFlag string

const (
	FlagAlways FeatureFlag = "always"
	FlagGated  FeatureFlag = "gated"
)

// FlagSet is a small set of FeatureFlag, kept as a map for O(1) membership
// tests and deterministic iteration via Sorted.
type FlagSet map[FeatureFlag]struct{}

func NewFlagSet(flags ...string) FlagSet {
	fs := make(FlagSet, len(flags))
	for _, f := range flags {
		fs[FeatureFlag(f)] = struct{}{}
	}
	return fs
}

func (fs FlagSet) Has(flag FeatureFlag) bool {
	_, ok := fs[flag]
	return ok
}

// Add inserts flag into fs.
func (fs FlagSet) Add(flag FeatureFlag) {
	fs[flag] = struct{}{}
}

// Merge adds every flag of other into fs and returns fs.
func (fs FlagSet) Merge(other FlagSet) FlagSet {
	for f := range other {
		fs[f] = struct{}{}
	}
	return fs
}

// Sorted returns the flags in ascending lexicographic order.
func (fs FlagSet) Sorted() []string {
	out := make([]string, 0, len(fs))
	for f := range fs {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// RequestDescriptor is the normalized, request-scoped view produced by the
// parameter parser and consumed by the resolver, assembler and cache layer.
type RequestDescriptor struct {
	Version  string
	UAString string
	Features map[string]FlagSet
	Excludes map[string]struct{}
	Minify   bool
	Unknown  UnknownPolicy
	Strict   bool
	Callback string
	Rum      string
}

func NewRequestDescriptor() *RequestDescriptor {
	return &RequestDescriptor{
		Features: make(map[string]FlagSet),
		Excludes: make(map[string]struct{}),
		Unknown:  UnknownPolyfill,
	}
}

// AddFeature merges flags into the named feature entry, creating it if
// this is the first time the name is seen (duplicates merge flag sets).
func (rd *RequestDescriptor) AddFeature(name string, flags FlagSet) {
	existing, ok := rd.Features[name]
	if !ok {
		rd.Features[name] = flags
		return
	}
	rd.Features[name] = existing.Merge(flags)
}
