package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/internal/services"
	"github.com/fastygo/storefront/pkg/httpcontext"
	appLogger "github.com/fastygo/storefront/pkg/logger"
)

type NotificationHandler struct {
	baseHandler
	poller *services.NotificationPoller
}

func NewNotificationHandler(poller *services.NotificationPoller, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		poller:      poller,
	}
}

// @Summary Admin notification badge count
// @Tags admin
// @Router /api/admin/notifications [get]
func (h *NotificationHandler) Count(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	snapshot, err := h.poller.Refresh(stdCtx)
	if err != nil {
		// The badge is best effort; serve the last known count.
		appLogger.WithRequestID(stdCtx, h.logger).Debug("notification refresh failed", zap.Error(err))
		snapshot = h.poller.Snapshot()
	}
	h.respondSuccess(ctx, http.StatusOK, snapshot)
}
