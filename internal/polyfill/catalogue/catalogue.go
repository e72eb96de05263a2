// Package catalogue reads the on-disk polyfill library tree:
// <base>/<version>/polyfills/<feature>/{meta.json,raw.js,min.js,detect.js}.
// Reads are independent per feature and memoized per (version, feature)
// tuple, grounded on the teacher's cache/filesystem.go file-read pattern
// and its xxhash-keyed memoization in internal/edge/hash/normalizer.go.
package catalogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/polyfillsrv/service/pkg/polyfill"
)

// ErrNotFound is returned when a requested feature has no directory in
// the given catalogue version.
var ErrNotFound = errors.New("catalogue: feature not found")

// Reader reads and memoizes FeatureMeta and source variants from a
// catalogue root directory.
type Reader struct {
	base   string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[uint64]*polyfill.FeatureMeta
}

// NewReader builds a Reader rooted at base (POLYFILL_BASE).
func NewReader(base string, logger *zap.Logger) *Reader {
	return &Reader{
		base:   base,
		logger: logger,
		cache:  make(map[uint64]*polyfill.FeatureMeta),
	}
}

// featureMetaFile holds the meta.json fields this reader decodes: the
// FeatureMeta fields other than the name, which comes from the directory,
// and the sources, which come from the .js files.
type featureMetaFile struct {
	Aliases      []string          `json:"aliases"`
	Dependencies []string          `json:"dependencies"`
	Browsers     map[string]string `json:"browsers"`
	License      string            `json:"license"`
	Repo         string            `json:"repo"`
	Spec         string            `json:"spec"`
}

// Read loads a single feature's metadata and source, consulting the
// in-process memoization cache keyed by (version, feature) before
// touching the filesystem.
func (r *Reader) Read(version, feature string) (*polyfill.FeatureMeta, error) {
	key := memoKey(version, feature)

	r.mu.RLock()
	if cached, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	dir := filepath.Join(r.base, version, "polyfills", feature)

	metaRaw, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, feature)
		}
		return nil, fmt.Errorf("catalogue: read meta.json for %s: %w", feature, err)
	}

	var mf featureMetaFile
	if err := json.Unmarshal(metaRaw, &mf); err != nil {
		return nil, fmt.Errorf("catalogue: parse meta.json for %s: %w", feature, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "raw.js"))
	if err != nil {
		return nil, fmt.Errorf("catalogue: read raw.js for %s: %w", feature, err)
	}

	min := readOptional(filepath.Join(dir, "min.js"))
	detect := readOptional(filepath.Join(dir, "detect.js"))

	meta := &polyfill.FeatureMeta{
		Name:         feature,
		Aliases:      mf.Aliases,
		Dependencies: mf.Dependencies,
		Browsers:     mf.Browsers,
		DetectSource: detect,
		Install:      polyfill.SourceVariant{Raw: string(raw), Min: min},
		License:      mf.License,
		Repo:         mf.Repo,
		Spec:         mf.Spec,
	}

	r.mu.Lock()
	r.cache[key] = meta
	r.mu.Unlock()

	return meta, nil
}

// ListFeatures enumerates every feature directory present for version.
func (r *Reader) ListFeatures(version string) ([]string, error) {
	dir := filepath.Join(r.base, version, "polyfills")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalogue: list %s: %w", version, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// HasVersion reports whether the given version exists under base.
func (r *Reader) HasVersion(version string) bool {
	info, err := os.Stat(filepath.Join(r.base, version, "polyfills"))
	return err == nil && info.IsDir()
}

func readOptional(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func memoKey(version, feature string) uint64 {
	return xxhash.Sum64String(version + "\x00" + feature)
}
