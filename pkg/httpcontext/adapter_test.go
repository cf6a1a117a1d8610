package httpcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/storefront/pkg/logger"
)

func TestAttach_ReusesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set(HeaderRequestID, "req-42")
	rc.Request.Header.SetUserAgent("test-agent")

	a := NewAdapter(time.Second)
	first, cancel := a.Attach(&rc)
	defer cancel()
	second, cancel2 := a.Attach(&rc)
	defer cancel2()

	assert.Equal(t, "req-42", appLogger.RequestID(first))
	assert.Equal(t, "req-42", appLogger.RequestID(second))
	assert.Equal(t, "req-42", string(rc.Response.Header.Peek(HeaderRequestID)))
	assert.Equal(t, "test-agent", first.Value(KeyUserAgent))

	deadline, ok := first.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
}

func TestRequestID_GeneratedOnce(t *testing.T) {
	var rc fasthttp.RequestCtx

	id := RequestID(&rc)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestID(&rc))
	assert.Equal(t, id, string(rc.Response.Header.Peek(HeaderRequestID)))
}
