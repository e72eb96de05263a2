package metricsserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type fakeHandler struct {
	called bool
}

func (f *fakeHandler) ServeHTTP(ctx *fasthttp.RequestCtx) {
	f.called = true
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString("# HELP x\nx 1\n")
}

func TestStart_ServesMetricsPath(t *testing.T) {
	handler := &fakeHandler{}
	lc, err := Start(":19093", handler, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, lc)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lc.Shutdown(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://localhost:19093/metrics")
	req.Header.SetMethod("GET")

	err = fasthttp.DoTimeout(req, resp, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.True(t, handler.called)
}

func TestShutdown_NilLifecycleIsNoop(t *testing.T) {
	var lc *Lifecycle
	assert.NoError(t, lc.Shutdown(context.Background()))
}
