package bundle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polyfillsrv/service/internal/polyfill/resolve"
	"github.com/polyfillsrv/service/pkg/polyfill"
)

func TestAssemble_Empty(t *testing.T) {
	var buf Buffer
	res := Assemble(&buf, Options{ServiceName: "polyfill-service", CatalogueVer: "3.111.1", RequestedNames: []string{"default"}, UAString: "chrome/120.0.0"}, nil)
	assert.True(t, res.Empty)
	assert.Contains(t, buf.String(), "No polyfills needed")
	assert.NotContains(t, buf.String(), iifeOpener)
}

func TestAssemble_SingleFeatureMinified(t *testing.T) {
	var buf Buffer
	features := []resolve.Resolved{
		{Meta: &polyfill.FeatureMeta{Name: "Promise", Install: polyfill.SourceVariant{Raw: "function Promise(){}", Min: "function P(){}"}}},
	}
	res := Assemble(&buf, Options{Minify: true}, features)
	assert.False(t, res.Empty)
	assert.Contains(t, buf.String(), "function P(){}")
	assert.NotContains(t, buf.String(), "function Promise(){}")
	assert.NotContains(t, buf.String(), "/*")
}

func TestAssemble_DependencyOrder(t *testing.T) {
	var buf Buffer
	features := []resolve.Resolved{
		{Meta: &polyfill.FeatureMeta{Name: "Promise", Install: polyfill.SourceVariant{Raw: "PROMISE_SRC"}}},
		{Meta: &polyfill.FeatureMeta{Name: "fetch", Install: polyfill.SourceVariant{Raw: "FETCH_SRC"}}},
	}
	Assemble(&buf, Options{}, features)
	out := buf.String()
	assert.Less(t, strings.Index(out, "PROMISE_SRC"), strings.Index(out, "FETCH_SRC"))
}

func TestAssemble_GatedFeatureWrapsDetect(t *testing.T) {
	var buf Buffer
	features := []resolve.Resolved{
		{
			Meta:  &polyfill.FeatureMeta{Name: "fetch", DetectSource: "window.fetch", Install: polyfill.SourceVariant{Raw: "FETCH_SRC"}},
			Gated: true,
		},
	}
	Assemble(&buf, Options{}, features)
	out := buf.String()
	assert.Contains(t, out, "if (!(window.fetch)) {")
	assert.Contains(t, out, "FETCH_SRC")
}

func TestAssemble_CallbackAppended(t *testing.T) {
	var buf Buffer
	features := []resolve.Resolved{{Meta: &polyfill.FeatureMeta{Name: "Promise", Install: polyfill.SourceVariant{Raw: "x"}}}}
	Assemble(&buf, Options{Callback: "onReady"}, features)
	assert.Contains(t, buf.String(), "typeof onReady==='function' && onReady();")
}

func TestAssemble_HeaderCommentOmittedWhenMinified(t *testing.T) {
	var buf Buffer
	features := []resolve.Resolved{{Meta: &polyfill.FeatureMeta{Name: "Promise", Install: polyfill.SourceVariant{Raw: "x"}}}}
	Assemble(&buf, Options{Minify: true, ServiceName: "polyfill-service"}, features)
	assert.NotContains(t, buf.String(), "polyfill-service")
}
