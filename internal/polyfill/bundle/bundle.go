// Package bundle assembles a resolved feature list into the final
// polyfill.js body. The assembler writes through an abstract Sink so a
// future caller may stream to a socket instead of buffering fully; the
// cache layer (package cache) is the caller that needs the buffered
// string today.
package bundle

import (
	"fmt"
	"strings"

	"github.com/polyfillsrv/service/internal/polyfill/resolve"
)

const (
	iifeOpener = "(function(self, undefined) {"
	iifeCloser = "}).call('object' === typeof window && window || 'object' === typeof self && self || 'object' === typeof global && global || {});"
)

// Sink is the abstract output the assembler writes through.
type Sink interface {
	AppendString(s string)
	AppendBytes(b []byte)
}

// Buffer is the in-memory Sink implementation used for cached responses.
type Buffer struct {
	sb strings.Builder
}

func (b *Buffer) AppendString(s string) { b.sb.WriteString(s) }
func (b *Buffer) AppendBytes(p []byte)  { b.sb.Write(p) }
func (b *Buffer) String() string        { return b.sb.String() }

// Options configures one assembly pass.
type Options struct {
	ServiceName     string
	CatalogueVer    string
	RequestedNames  []string // original feature names requested, for the header comment
	UAString        string
	Minify          bool
	Callback        string
}

// Result reports whether anything was installed, replacing the original
// "scan the body for the IIFE opener" heuristic with an explicit flag
// returned directly from assembly (see SPEC_FULL open question on
// empty-detection).
type Result struct {
	Empty bool
}

// Assemble writes the full response body for an ordered feature list
// into sink and reports whether the result is empty.
func Assemble(sink Sink, opts Options, features []resolve.Resolved) Result {
	if len(features) == 0 {
		writeHeaderComment(sink, opts)
		sink.AppendString("/* No polyfills needed for current User-Agent */\n")
		writeCallback(sink, opts.Callback)
		return Result{Empty: true}
	}

	writeHeaderComment(sink, opts)
	sink.AppendString(iifeOpener + "\n")

	for _, f := range features {
		source := f.Meta.Install.Select(opts.Minify)
		if f.Gated && f.Meta.DetectSource != "" {
			sink.AppendString(fmt.Sprintf("if (!(%s)) {\n", f.Meta.DetectSource))
			sink.AppendString(source)
			sink.AppendString("\n}\n")
			continue
		}
		sink.AppendString(source)
		sink.AppendString("\n")
	}

	sink.AppendString(iifeCloser)
	writeCallback(sink, opts.Callback)

	return Result{Empty: false}
}

func writeHeaderComment(sink Sink, opts Options) {
	if opts.Minify {
		return
	}
	names := strings.Join(opts.RequestedNames, ", ")
	sink.AppendString(fmt.Sprintf(
		"/* %s v%s\n * Features requested: %s\n * UA: %s\n */\n",
		opts.ServiceName, opts.CatalogueVer, names, opts.UAString,
	))
}

func writeCallback(sink Sink, callback string) {
	if callback == "" {
		return
	}
	sink.AppendString(fmt.Sprintf("\ntypeof %s==='function' && %s();", callback, callback))
}

// IIFEOpener exposes the opener literal for callers that still need the
// legacy substring heuristic (kept for parity with older cache entries
// written before the explicit Result.Empty flag existed).
func IIFEOpener() string { return iifeOpener }
