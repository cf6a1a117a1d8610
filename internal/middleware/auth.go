package middleware

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/guard"
	"github.com/fastygo/storefront/pkg/httpcontext"
	appLogger "github.com/fastygo/storefront/pkg/logger"
)

// SessionKey is the user value holding the domain.Session the guard admitted.
const SessionKey = "session"

// SessionSource reports the current session, logging out an expired one.
type SessionSource interface {
	Check(ctx context.Context) domain.Session
}

// Guard applies guard decisions to protected routes.
type Guard struct {
	source  SessionSource
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func NewGuard(source SessionSource, adapter *httpcontext.Adapter, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return &Guard{source: source, adapter: adapter, logger: logger}
}

// RequireSession wraps next so it only runs when the session meets req.
// Denied view requests are redirected with 303; denied API requests get a
// 401 or 403 envelope.
func (g *Guard) RequireSession(req guard.Requirement) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			stdCtx, cancel := g.adapter.Attach(ctx)
			s := g.source.Check(stdCtx)
			cancel()

			decision := guard.Decide(s, req)
			if decision.Allowed() {
				ctx.SetUserValue(SessionKey, s)
				next(ctx)
				return
			}

			appLogger.WithRequestID(stdCtx, g.logger).Debug("route guard denied",
				zap.ByteString("path", ctx.Path()),
				zap.String("outcome", decision.Outcome.String()))

			if isAPI(ctx) {
				denyAPI(ctx, decision)
				return
			}
			ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
			ctx.Redirect(decision.Location, fasthttp.StatusSeeOther)
		}
	}
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(ctx *fasthttp.RequestCtx) (domain.Session, bool) {
	s, ok := ctx.UserValue(SessionKey).(domain.Session)
	return s, ok
}

func isAPI(ctx *fasthttp.RequestCtx) bool {
	return strings.HasPrefix(string(ctx.Path()), "/api/")
}

func denyAPI(ctx *fasthttp.RequestCtx, decision guard.Decision) {
	status, err := fasthttp.StatusUnauthorized, domain.ErrNotAuthenticated
	if decision.Outcome == guard.RedirectHome {
		status, err = fasthttp.StatusForbidden, domain.ErrForbidden
	}
	writeEnvelope(ctx, status, transport.NewError(string(err.Code), err.Message, transport.Redirect{Location: decision.Location}))
}

func writeEnvelope(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}
