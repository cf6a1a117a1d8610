package middleware

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func requestFrom(h fasthttp.RequestHandler, ip string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Init(&fasthttp.Request{}, &net.TCPAddr{IP: net.ParseIP(ip), Port: 5000}, nil)
	ctx.Request.SetRequestURI("/api/session/login")
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	h(&ctx)
	return &ctx
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 1, Burst: 2}, nil)
	defer rl.Stop()
	h := rl.Middleware(reached)

	assert.Equal(t, fasthttp.StatusOK, requestFrom(h, "10.0.0.1").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusOK, requestFrom(h, "10.0.0.1").Response.StatusCode())

	ctx := requestFrom(h, "10.0.0.1")
	assert.Equal(t, fasthttp.StatusTooManyRequests, ctx.Response.StatusCode())
	assert.NotEmpty(t, ctx.Response.Header.Peek(fasthttp.HeaderRetryAfter))

	assert.Equal(t, fasthttp.StatusOK, requestFrom(h, "10.0.0.2").Response.StatusCode(), "limits are per client")
}

func TestRateLimiter_CleanupForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 1, Burst: 1}, nil)
	defer rl.Stop()
	h := rl.Middleware(reached)

	requestFrom(h, "10.0.0.3")
	assert.Equal(t, fasthttp.StatusTooManyRequests, requestFrom(h, "10.0.0.3").Response.StatusCode())

	rl.cleanup(time.Now().Add(time.Second))
	assert.Equal(t, fasthttp.StatusOK, requestFrom(h, "10.0.0.3").Response.StatusCode())
}
