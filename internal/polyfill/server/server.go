// Package server implements C8, the HTTP adapter: route dispatch, the
// /v2 to /v3 rewrite, version allow-listing, and response header
// composition. Dispatch-by-path and the request-ID-in-logger pattern are
// grounded on the teacher's internal/edge/server/server.go HandleRequest;
// writeError mirrors its own writeError helper.
package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/polyfillsrv/service/internal/polyfill/bundle"
	"github.com/polyfillsrv/service/internal/polyfill/cache"
	"github.com/polyfillsrv/service/internal/polyfill/catalogue"
	"github.com/polyfillsrv/service/internal/polyfill/metrics"
	"github.com/polyfillsrv/service/internal/polyfill/params"
	"github.com/polyfillsrv/service/internal/polyfill/requestid"
	"github.com/polyfillsrv/service/internal/polyfill/resolve"
	"github.com/polyfillsrv/service/internal/polyfill/ua"
)

const (
	serviceName = "polyfill-service"

	// fallbackVersion is substituted for any requested version outside
	// supportedVersions.
	fallbackVersion = "3.111.0"

	// v2RewriteVersion is force-set on every /v2 request, matching the
	// original service's v2-compatibility shim.
	v2RewriteVersion = "3.25.1"

	immutableCacheControl = "public, max-age=31536000, immutable"
	errorCacheControl     = "public, max-age=300"
)

// supportedVersions is the catalogue version allow-list. A request
// naming any other version is silently served the fallback version.
var supportedVersions = map[string]struct{}{
	"3.25.1":   {},
	"3.52.0":   {},
	"3.100.0":  {},
	"3.108.0":  {},
	"3.111.0":  {},
	"3.111.1":  {},
}

// Server wires the C1-C7 pipeline behind the routes named in the
// external interface.
type Server struct {
	cat      *catalogue.Reader
	store    *cache.Store
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// New builds a Server over an already-constructed catalogue reader,
// cache store and metrics collector.
func New(cat *catalogue.Reader, store *cache.Store, m *metrics.Collector, logger *zap.Logger) *Server {
	return &Server{cat: cat, store: store, metrics: m, logger: logger}
}

// Handle is the fasthttp.RequestHandler dispatched for every inbound
// connection.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	customID := string(ctx.Request.Header.Peek("X-Request-ID"))
	reqID := requestid.Generate(customID)
	ctx.Response.Header.Set("X-Request-ID", reqID)
	logger := s.logger.With(zap.String("request_id", reqID))

	path := string(ctx.Path())

	switch {
	case path == "/":
		s.handleHomepage(ctx)
	case path == "/robots.txt":
		s.handleRobots(ctx)
	case path == "/img/logo.svg":
		s.handleLogo(ctx)
	case strings.HasPrefix(path, "/v3/json/library-"):
		s.handleLibraryManifest(ctx, path, logger)
	case strings.HasPrefix(path, "/v3/polyfill"):
		s.handlePolyfill(ctx, path, logger)
	case strings.HasPrefix(path, "/v2/polyfill"):
		s.handleV2(ctx, path, logger)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

// handleV2 rewrites a /v2 request onto the /v3 handler: same path
// suffix, all query parameters preserved, version pinned to
// v2RewriteVersion, and unknown forced to "ignore" unless the client
// already specified it.
func (s *Server) handleV2(ctx *fasthttp.RequestCtx, path string, logger *zap.Logger) {
	v3Path := "/v3" + strings.TrimPrefix(path, "/v2")

	args := ctx.QueryArgs()
	if !args.Has("unknown") {
		args.Set("unknown", "ignore")
	}
	args.Set("version", v2RewriteVersion)

	ctx.URI().SetPath(v3Path)
	s.handlePolyfill(ctx, v3Path, logger)
}

func (s *Server) handlePolyfill(ctx *fasthttp.RequestCtx, path string, logger *zap.Logger) {
	start := time.Now()

	src := params.Source{
		Path:     path,
		Query:    queryArgsToMap(ctx.QueryArgs()),
		UAHeader: string(ctx.Request.Header.Peek("User-Agent")),
	}
	rd := params.Parse(src)

	version := rd.Version
	if _, ok := supportedVersions[version]; !ok {
		if version != "" {
			logger.Warn("unsupported catalogue version requested, substituting fallback",
				zap.String("requested", version), zap.String("fallback", fallbackVersion))
		}
		version = fallbackVersion
	}

	key := cache.Fingerprint(rd, version)
	if outcome, body, cachedVersion := s.store.Lookup(key); outcome != cache.Miss {
		s.metrics.RecordCacheHit(hitTier(outcome))
		s.writeBundleResponse(ctx, outcome == cache.HitEmpty, body, cachedVersion)
		s.metrics.RecordRequest("polyfill", "hit", time.Since(start))
		return
	}
	s.metrics.RecordCacheMiss()

	id := ua.Identify(rd.UAString)
	if id.Known() && ua.IsUpToDate(id) {
		s.metrics.IncUpToDateUA(string(id.Family))
	}

	result, err := resolve.Resolve(s.cat, rd, version)
	if err != nil {
		s.handleResolveError(ctx, err, logger)
		s.metrics.RecordRequest("polyfill", "error", time.Since(start))
		return
	}
	for _, w := range result.Warnings {
		logger.Warn("resolver warning", zap.String("detail", w))
	}

	var buf bundle.Buffer
	requestedNames := make([]string, 0, len(rd.Features))
	for name := range rd.Features {
		requestedNames = append(requestedNames, name)
	}
	asmResult := bundle.Assemble(&buf, bundle.Options{
		ServiceName:    serviceName,
		CatalogueVer:   version,
		RequestedNames: requestedNames,
		UAString:       rd.UAString,
		Minify:         rd.Minify,
		Callback:       rd.Callback,
	}, result.Features)

	body := []byte(buf.String())
	s.store.Store(key, body, asmResult.Empty, version)
	if asmResult.Empty {
		s.metrics.RecordBundleEmpty()
	}

	s.writeBundleResponse(ctx, asmResult.Empty, body, version)
	s.metrics.RecordRequest("polyfill", "miss", time.Since(start))
}

func hitTier(outcome cache.LookupOutcome) string {
	if outcome == cache.HitEmpty {
		return "empty"
	}
	return "disk"
}

func (s *Server) handleResolveError(ctx *fasthttp.RequestCtx, err error, logger *zap.Logger) {
	var strictErr *resolve.StrictError
	var cycleErr *resolve.CycleError
	switch {
	case asStrictError(err, &strictErr):
		logger.Info("rejecting strict request", zap.String("feature", strictErr.Feature))
		s.writeErrorWithControl(ctx, fasthttp.StatusBadRequest,
			fmt.Sprintf("unknown feature: %s", strictErr.Feature), errorCacheControl)
	case asCycleError(err, &cycleErr):
		logger.Error("catalogue cycle detected", zap.Strings("nodes", cycleErr.Nodes))
		s.writeErrorWithControl(ctx, fasthttp.StatusInternalServerError,
			fmt.Sprintf("failed to get polyfill bundle: cycle at %v", cycleErr.Nodes), errorCacheControl)
	default:
		logger.Error("catalogue read failure", zap.Error(err))
		s.writeErrorWithControl(ctx, fasthttp.StatusInternalServerError,
			fmt.Sprintf("failed to get polyfill bundle: %v", err), errorCacheControl)
	}
}

func asStrictError(err error, target **resolve.StrictError) bool {
	if e, ok := err.(*resolve.StrictError); ok {
		*target = e
		return true
	}
	return false
}

func asCycleError(err error, target **resolve.CycleError) bool {
	if e, ok := err.(*resolve.CycleError); ok {
		*target = e
		return true
	}
	return false
}

func (s *Server) writeBundleResponse(ctx *fasthttp.RequestCtx, empty bool, body []byte, version string) {
	h := &ctx.Response.Header
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET,HEAD,OPTIONS")
	h.Set("Content-Type", "text/javascript; charset=UTF-8")
	h.Set("Cache-Control", immutableCacheControl)
	h.Set("Vary", "User-Agent, Accept-Encoding")
	h.Set("Cf-Polyfill-Version", version)
	if !empty {
		h.Set("X-Compress-Hint", "on")
	}
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBody(body)
}

func (s *Server) handleLibraryManifest(ctx *fasthttp.RequestCtx, path string, logger *zap.Logger) {
	version := strings.TrimSuffix(strings.TrimPrefix(path, "/v3/json/library-"), ".json")
	if !s.cat.HasVersion(version) {
		s.writeError(ctx, fasthttp.StatusNotFound, "unknown catalogue version")
		return
	}
	names, err := s.cat.ListFeatures(version)
	if err != nil {
		logger.Error("failed to list catalogue features", zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "failed to read catalogue")
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=UTF-8")
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBodyString(manifestJSON(version, names))
}

func manifestJSON(version string, names []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`{"version":%q,"polyfills":[`, version))
	for i, n := range names {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.Quote(n))
	}
	sb.WriteString("]}")
	return sb.String()
}

func (s *Server) handleHomepage(ctx *fasthttp.RequestCtx) {
	h := &ctx.Response.Header
	h.Set("Content-Security-Policy", "default-src 'self'")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	ctx.Response.Header.SetContentType("text/html; charset=UTF-8")
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBodyString("<!doctype html><html><head><title>polyfill-service</title></head>" +
		"<body><h1>polyfill-service</h1><p>See /v3/polyfill.js</p></body></html>")
}

func (s *Server) handleRobots(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("text/plain; charset=UTF-8")
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBodyString("User-agent: *\nAllow: /\n")
}

func (s *Server) handleLogo(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("image/svg+xml")
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBodyString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"></svg>`)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	s.writeErrorWithControl(ctx, status, message, errorCacheControl)
}

func (s *Server) writeErrorWithControl(ctx *fasthttp.RequestCtx, status int, message, cacheControl string) {
	ctx.Response.Header.Set("Cache-Control", cacheControl)
	ctx.Response.Header.SetContentType("text/plain; charset=UTF-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyString(message)
}

func queryArgsToMap(args *fasthttp.Args) map[string]string {
	out := make(map[string]string)
	args.VisitAll(func(key, value []byte) {
		out[string(key)] = string(value)
	})
	return out
}
