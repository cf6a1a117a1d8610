package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/usecase/session"
)

// PasswordHandler serves the password reset flows. Both answer 200 with a
// Result; success or failure is in the payload.
type PasswordHandler struct {
	baseHandler
	manager *session.Manager
}

func NewPasswordHandler(manager *session.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *PasswordHandler {
	return &PasswordHandler{
		baseHandler: newBaseHandler(adapter, logger),
		manager:     manager,
	}
}

// @Summary Request a password reset email
// @Tags password
// @Router /api/password/forgot [post]
func (h *PasswordHandler) Forgot(ctx *fasthttp.RequestCtx) {
	var req transport.ForgotPasswordRequest
	if !decode(ctx, &req) {
		h.respondInvalid(ctx)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.respondSuccess(ctx, http.StatusOK, h.manager.RequestPasswordReset(stdCtx, req.Email))
}

// @Summary Set a new password
// @Tags password
// @Router /api/password/reset [post]
func (h *PasswordHandler) Reset(ctx *fasthttp.RequestCtx) {
	var req transport.ResetPasswordRequest
	if !decode(ctx, &req) {
		h.respondInvalid(ctx)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.respondSuccess(ctx, http.StatusOK, h.manager.ResetPassword(stdCtx, req.Token, req.NewPassword))
}
