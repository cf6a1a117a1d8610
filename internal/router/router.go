package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/storefront/api/handler"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/guard"
	"github.com/fastygo/storefront/internal/middleware"
)

type Handlers struct {
	Session       *apiHandler.SessionHandler
	Password      *apiHandler.PasswordHandler
	View          *apiHandler.ViewHandler
	Notifications *apiHandler.NotificationHandler
	Audit         *apiHandler.AuditHandler
	Health        *apiHandler.HealthHandler
	// Metrics is optional.
	Metrics fasthttp.RequestHandler
}

type Middlewares struct {
	Guard *middleware.Guard
	// RateLimit wraps the credential endpoints. Optional.
	RateLimit func(fasthttp.RequestHandler) fasthttp.RequestHandler
}

func New(handlers Handlers, mw Middlewares) *router.Router {
	r := router.New()

	limited := mw.RateLimit
	if limited == nil {
		limited = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	authenticated := mw.Guard.RequireSession(guard.Authenticated())
	admin := mw.Guard.RequireSession(guard.RequireRole(domain.RoleAdmin))

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	// Public views
	r.GET("/", handlers.View.Home)
	r.GET("/login", handlers.View.Login)
	r.GET("/signup", handlers.View.Signup)
	r.GET("/forgot-password", handlers.View.ForgotPassword)
	r.GET("/reset-password/{token}", handlers.View.ResetPassword)

	// Protected views
	r.GET("/account", authenticated(handlers.View.Account))
	r.GET("/orders", authenticated(handlers.View.Orders))
	r.GET("/admin", admin(handlers.View.Admin))
	r.GET("/admin/{section}", admin(handlers.View.AdminSection))

	// Session API
	r.GET("/api/session", handlers.Session.Current)
	r.GET("/api/session/message", handlers.Session.Message)
	r.POST("/api/session/login", limited(handlers.Session.Login))
	r.POST("/api/session/signup", limited(handlers.Session.Signup))
	r.POST("/api/session/logout", handlers.Session.Logout)
	r.POST("/api/session/activity", handlers.Session.Activity)

	r.POST("/api/password/forgot", limited(handlers.Password.Forgot))
	r.POST("/api/password/reset", limited(handlers.Password.Reset))

	r.GET("/api/admin/notifications", admin(handlers.Notifications.Count))
	r.GET("/api/admin/session-events", admin(handlers.Audit.List))

	return r
}
