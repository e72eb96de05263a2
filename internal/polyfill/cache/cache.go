// Package cache implements the two-tier response cache: a process-local
// empty-key set for bundles that install nothing, and an on-disk tier
// content-addressed by a fingerprint over the request shape. The
// on-disk writer follows the teacher's atomic write pattern
// (internal/edge/cache/filesystem.go: write to a .tmp file, then
// os.Rename), and the lookup/store split mirrors its CacheService.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/polyfillsrv/service/pkg/polyfill"
)

// Fingerprint computes the 256-bit hex cache key for a RequestDescriptor
// plus the resolved catalogue version, hashing each field delimited by a
// NUL byte in the fixed field order named in the cache design: version,
// ua_string, minify, unknown, strict, features (sorted name=flags,\0
// sequence, flags sorted within each), excludes (sorted), callback, rum.
func Fingerprint(rd *polyfill.RequestDescriptor, version string) string {
	h := sha256.New()

	writeField := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	writeField(version)
	writeField(rd.UAString)
	writeField(boolDigit(rd.Minify))
	writeField(string(rd.Unknown))
	writeField(boolDigit(rd.Strict))

	featureNames := make([]string, 0, len(rd.Features))
	for name := range rd.Features {
		featureNames = append(featureNames, name)
	}
	sort.Strings(featureNames)
	for _, name := range featureNames {
		writeField(fmt.Sprintf("%s=%s", name, strings.Join(rd.Features[name].Sorted(), ",")))
	}

	excludeNames := make([]string, 0, len(rd.Excludes))
	for name := range rd.Excludes {
		excludeNames = append(excludeNames, name)
	}
	sort.Strings(excludeNames)
	for _, name := range excludeNames {
		writeField(name)
	}

	writeField(rd.Callback)
	writeField(rd.Rum)

	return hex.EncodeToString(h.Sum(nil))
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// LookupOutcome is the result of a cache Lookup.
type LookupOutcome int

const (
	Miss LookupOutcome = iota
	HitEmpty
	HitContent
)

// Store is the two-tier cache: an in-memory empty-key set guarded by a
// RWMutex, plus an on-disk tier written atomically. A present empty-set
// key is authoritative and short-circuits any disk read, per the
// invariant that empty outcomes never need I/O to confirm. Each entry
// also remembers the catalogue version it was resolved against, so a
// cache hit can still report the correct Cf-Polyfill-Version.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex
	empty map[string]string
}

// NewStore builds a cache rooted at dir. An empty dir disables the
// on-disk tier: Lookup only ever consults the empty-key set and Store
// writes are skipped for non-empty bodies.
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		empty:  make(map[string]string),
	}
}

// Lookup checks the empty-key set, then the on-disk tier, returning the
// catalogue version the hit was resolved against alongside the body.
func (s *Store) Lookup(key string) (LookupOutcome, []byte, string) {
	s.mu.RLock()
	version, isEmpty := s.empty[key]
	s.mu.RUnlock()
	if isEmpty {
		return HitEmpty, nil, version
	}

	if s.dir == "" {
		return Miss, nil, ""
	}

	content, err := os.ReadFile(s.path(key))
	if err != nil {
		return Miss, nil, ""
	}
	version = readOptional(s.versionPath(key))
	return HitContent, content, version
}

// Store persists the outcome of a generated bundle under key, along
// with the catalogue version it was resolved against. Empty bundles
// are recorded only in the in-memory set and never touch disk;
// non-empty bundles are written to disk with an ensure-dir-then-atomic-
// rename sequence, the version alongside the body. Callers invoke this
// after the response has already been sent (fire-and-forget), so write
// failures are logged and swallowed rather than propagated.
func (s *Store) Store(key string, body []byte, empty bool, version string) {
	if empty {
		s.mu.Lock()
		s.empty[key] = version
		s.mu.Unlock()
		return
	}

	if s.dir == "" {
		return
	}

	if err := s.writeAtomic(s.path(key), body); err != nil {
		s.logger.Warn("cache: failed to persist bundle",
			zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.writeAtomic(s.versionPath(key), []byte(version)); err != nil {
		s.logger.Warn("cache: failed to persist bundle version",
			zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) writeAtomic(finalPath string, body []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}

	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, body, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".js")
}

func (s *Store) versionPath(key string) string {
	return filepath.Join(s.dir, key+".version")
}

func readOptional(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}
