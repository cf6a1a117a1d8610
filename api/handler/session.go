package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/guard"
	"github.com/fastygo/storefront/internal/idle"
	"github.com/fastygo/storefront/pkg/httpcontext"
	appLogger "github.com/fastygo/storefront/pkg/logger"
	"github.com/fastygo/storefront/usecase/session"
)

type SessionHandler struct {
	baseHandler
	manager *session.Manager
}

func NewSessionHandler(manager *session.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		manager:     manager,
	}
}

// @Summary Log in
// @Tags session
// @Router /api/session/login [post]
func (h *SessionHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if !decode(ctx, &req) {
		h.respondInvalid(ctx)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.manager.Login(stdCtx, domain.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.AuthResponse{User: user, Redirect: guard.LandingPath(user)})
}

// @Summary Create an account and log in
// @Tags session
// @Router /api/session/signup [post]
func (h *SessionHandler) Signup(ctx *fasthttp.RequestCtx) {
	var req transport.SignupRequest
	if !decode(ctx, &req) {
		h.respondInvalid(ctx)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.manager.Signup(stdCtx, domain.SignupRequest{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, transport.AuthResponse{User: user, Redirect: guard.LandingPath(user)})
}

// @Summary Log out
// @Tags session
// @Router /api/session/logout [post]
func (h *SessionHandler) Logout(ctx *fasthttp.RequestCtx) {
	var req transport.LogoutRequest
	// The body is optional.
	_ = decode(ctx, &req)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.manager.Logout(stdCtx, req.Reason)
	appLogger.WithRequestID(stdCtx, h.logger).Debug("logout requested")
	h.respondSuccess(ctx, http.StatusOK, transport.Redirect{Location: guard.LoginPath})
}

// @Summary Current session
// @Tags session
// @Router /api/session [get]
func (h *SessionHandler) Current(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	s := h.manager.Check(stdCtx)
	h.respondSuccess(ctx, http.StatusOK, transport.NewSessionResponse(s, int(h.manager.IdleRemaining().Seconds())))
}

// @Summary Take the pending session message
// @Tags session
// @Router /api/session/message [get]
func (h *SessionHandler) Message(ctx *fasthttp.RequestCtx) {
	msg, ok := h.manager.ConsumeMessage()
	h.respondSuccess(ctx, http.StatusOK, transport.MessageResponse{Message: msg, Present: ok})
}

// @Summary Report user activity
// @Tags session
// @Router /api/session/activity [post]
func (h *SessionHandler) Activity(ctx *fasthttp.RequestCtx) {
	var req transport.ActivityRequest
	if !decode(ctx, &req) {
		h.respondInvalid(ctx)
		return
	}
	signal, ok := idle.ParseSignal(req.Event)
	if !ok {
		h.respondSuccess(ctx, http.StatusOK, transport.ActivityResponse{Accepted: false})
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.ActivityResponse{Accepted: h.manager.RecordActivity(signal)})
}
