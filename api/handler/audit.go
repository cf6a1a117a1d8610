package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/repository"
)

// AuditHandler lists the persisted session audit trail. events is nil when
// the trail is only logged.
type AuditHandler struct {
	baseHandler
	events repository.SessionEventRepository
}

func NewAuditHandler(events repository.SessionEventRepository, adapter *httpcontext.Adapter, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		baseHandler: newBaseHandler(adapter, logger),
		events:      events,
	}
}

// @Summary List session events
// @Tags admin
// @Router /api/admin/session-events [get]
func (h *AuditHandler) List(ctx *fasthttp.RequestCtx) {
	if h.events == nil {
		h.respondJSON(ctx, http.StatusServiceUnavailable,
			transport.NewError(string(domain.ErrCodeUnavailable), "session audit trail is not enabled", nil))
		return
	}

	args := ctx.QueryArgs()
	filter := repository.SessionEventFilter{
		UserID: string(args.Peek("user_id")),
		Type:   string(args.Peek("type")),
		Limit:  parseInt(string(args.Peek("limit")), 50),
		Offset: parseInt(string(args.Peek("offset")), 0),
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.events.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeUnavailable, "session audit trail unavailable", err))
		return
	}
	if events == nil {
		events = []domain.SessionEvent{}
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
