package catalogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFixture(t *testing.T, base, version, feature string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(base, version, "polyfills", feature)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestReader_Read(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "3.111.1", "Promise", map[string]string{
		"meta.json": `{"browsers":{"ie":"<11"},"license":"MIT"}`,
		"raw.js":    "function Promise(){}",
		"min.js":    "function P(){}",
	})

	r := NewReader(base, zap.NewNop())
	meta, err := r.Read("3.111.1", "Promise")
	require.NoError(t, err)
	require.Equal(t, "Promise", meta.Name)
	require.Equal(t, "<11", meta.Browsers["ie"])
	require.Equal(t, "function Promise(){}", meta.Install.Raw)
	require.Equal(t, "function P(){}", meta.Install.Min)
}

func TestReader_Read_MissingMinFallsBackToRaw(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "3.111.1", "fetch", map[string]string{
		"meta.json": `{}`,
		"raw.js":    "function fetch(){}",
	})

	r := NewReader(base, zap.NewNop())
	meta, err := r.Read("3.111.1", "fetch")
	require.NoError(t, err)
	require.Empty(t, meta.Install.Min)
	require.Equal(t, "function fetch(){}", meta.Install.Select(true))
}

func TestReader_Read_NotFound(t *testing.T) {
	base := t.TempDir()
	r := NewReader(base, zap.NewNop())
	_, err := r.Read("3.111.1", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReader_Read_Memoized(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "3.111.1", "Promise", map[string]string{
		"meta.json": `{}`,
		"raw.js":    "v1",
	})

	r := NewReader(base, zap.NewNop())
	first, err := r.Read("3.111.1", "Promise")
	require.NoError(t, err)

	// Mutate on disk; memoized read must not observe the change.
	require.NoError(t, os.WriteFile(filepath.Join(base, "3.111.1", "polyfills", "Promise", "raw.js"), []byte("v2"), 0644))

	second, err := r.Read("3.111.1", "Promise")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, "v1", second.Install.Raw)
}

func TestReader_ListFeatures(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "3.111.1", "Promise", map[string]string{"meta.json": "{}", "raw.js": "x"})
	writeFixture(t, base, "3.111.1", "fetch", map[string]string{"meta.json": "{}", "raw.js": "x"})

	r := NewReader(base, zap.NewNop())
	names, err := r.ListFeatures("3.111.1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Promise", "fetch"}, names)
}

func TestReader_HasVersion(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "3.111.1", "Promise", map[string]string{"meta.json": "{}", "raw.js": "x"})

	r := NewReader(base, zap.NewNop())
	require.True(t, r.HasVersion("3.111.1"))
	require.False(t, r.HasVersion("9.9.9"))
}
