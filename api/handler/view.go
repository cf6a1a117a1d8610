package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/guard"
	"github.com/fastygo/storefront/internal/middleware"
	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/usecase/session"
)

// ViewHandler answers page navigations with the view model of the page.
// Protected pages sit behind middleware.Guard and read the admitted session
// from the request.
type ViewHandler struct {
	baseHandler
	manager *session.Manager
}

func NewViewHandler(manager *session.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{
		baseHandler: newBaseHandler(adapter, logger),
		manager:     manager,
	}
}

func (h *ViewHandler) Home(ctx *fasthttp.RequestCtx) {
	h.render(ctx, "home", h.check(ctx), "", nil)
}

// Login shows the login form, or sends an authenticated user to their
// landing page. The pending session message is consumed here.
func (h *ViewHandler) Login(ctx *fasthttp.RequestCtx) {
	s := h.check(ctx)
	if s.IsAuthenticated() {
		h.redirect(ctx, guard.LandingPath(s.User))
		return
	}
	msg, _ := h.manager.ConsumeMessage()
	h.render(ctx, "login", s, msg, nil)
}

func (h *ViewHandler) Signup(ctx *fasthttp.RequestCtx) {
	s := h.check(ctx)
	if s.IsAuthenticated() {
		h.redirect(ctx, guard.LandingPath(s.User))
		return
	}
	h.render(ctx, "signup", s, "", nil)
}

func (h *ViewHandler) ForgotPassword(ctx *fasthttp.RequestCtx) {
	h.render(ctx, "forgot-password", h.check(ctx), "", nil)
}

func (h *ViewHandler) ResetPassword(ctx *fasthttp.RequestCtx) {
	token, _ := ctx.UserValue("token").(string)
	if token == "" {
		h.respondInvalid(ctx)
		return
	}
	h.render(ctx, "reset-password", h.check(ctx), "", map[string]string{"token": token})
}

func (h *ViewHandler) Account(ctx *fasthttp.RequestCtx) {
	h.protected(ctx, "account", nil)
}

func (h *ViewHandler) Orders(ctx *fasthttp.RequestCtx) {
	h.protected(ctx, "orders", nil)
}

func (h *ViewHandler) Admin(ctx *fasthttp.RequestCtx) {
	h.protected(ctx, "admin", nil)
}

func (h *ViewHandler) AdminSection(ctx *fasthttp.RequestCtx) {
	section, _ := ctx.UserValue("section").(string)
	h.protected(ctx, "admin", map[string]string{"section": section})
}

func (h *ViewHandler) protected(ctx *fasthttp.RequestCtx, view string, params map[string]string) {
	s, ok := middleware.SessionFrom(ctx)
	if !ok {
		// Route registered without the guard.
		s = h.check(ctx)
		if d := guard.Decide(s, guard.Authenticated()); !d.Allowed() {
			h.redirect(ctx, d.Location)
			return
		}
	}
	h.render(ctx, view, s, "", params)
}

func (h *ViewHandler) check(ctx *fasthttp.RequestCtx) domain.Session {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	return h.manager.Check(stdCtx)
}

func (h *ViewHandler) render(ctx *fasthttp.RequestCtx, view string, s domain.Session, message string, params map[string]string) {
	h.respondSuccess(ctx, http.StatusOK, transport.ViewResponse{
		View:    view,
		Session: transport.NewSessionResponse(s, int(h.manager.IdleRemaining().Seconds())),
		Message: message,
		Params:  params,
	})
}

func (h *ViewHandler) redirect(ctx *fasthttp.RequestCtx, location string) {
	ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	ctx.Redirect(location, http.StatusSeeOther)
}
