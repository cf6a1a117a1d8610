package handler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/infrastructure/monitor"
	"github.com/fastygo/storefront/internal/middleware"
	"github.com/fastygo/storefront/repository/memory"
	"github.com/fastygo/storefront/usecase/session"
)

type stubBackend struct {
	accounts map[string]domain.AuthResult
	err      error
}

func (b *stubBackend) Login(_ context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	res, ok := b.accounts[creds.Username]
	if !ok || creds.Password != "secret" {
		return nil, domain.ErrInvalidCredentials
	}
	return &res, nil
}

func (b *stubBackend) Signup(_ context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	if _, ok := b.accounts[req.Username]; ok {
		return nil, domain.ErrAccountExists
	}
	return &domain.AuthResult{
		Token: "token-" + req.Username,
		User:  domain.Profile{ID: json.RawMessage(`99`), Username: req.Username, Email: req.Email},
	}, nil
}

func (b *stubBackend) ForgotPassword(context.Context, string) (string, error) {
	return "", nil
}

func (b *stubBackend) ResetPassword(_ context.Context, token, _ string) (string, error) {
	if token != "good" {
		return "", domain.NewError(domain.ErrCodeInvalid, "Reset link is invalid or has expired")
	}
	return "", nil
}

type neverExpired struct{}

func (neverExpired) IsExpired(string) bool { return false }

func newManager(t *testing.T) (*session.Manager, *memory.CredentialRepository) {
	t.Helper()
	backend := &stubBackend{accounts: map[string]domain.AuthResult{
		"alice": {Token: "token-alice", User: domain.Profile{ID: json.RawMessage(`1`), Username: "alice", Role: "admin"}},
		"bob":   {Token: "token-bob", User: domain.Profile{ID: json.RawMessage(`"2"`), Username: "bob"}},
	}}
	store := memory.NewCredentialRepository()
	m := session.New(backend, store, neverExpired{}, session.DefaultConfig())
	t.Cleanup(m.Close)
	return m, store
}

func call(h fasthttp.RequestHandler, method, path, body string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI(path)
	ctx.Request.Header.SetMethod(method)
	if body != "" {
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBodyString(body)
	}
	h(&ctx)
	return &ctx
}

func envelope(t *testing.T, ctx *fasthttp.RequestCtx, data interface{}) transport.Envelope {
	t.Helper()
	var env struct {
		transport.Envelope
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Envelope
}

func TestSessionHandler_LoginRedirectsByRole(t *testing.T) {
	m, store := newManager(t)
	h := NewSessionHandler(m, nil, nil)

	var auth transport.AuthResponse
	ctx := call(h.Login, fasthttp.MethodPost, "/api/session/login", `{"username":"alice","password":"secret"}`)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	envelope(t, ctx, &auth)
	assert.Equal(t, "/admin", auth.Redirect)
	assert.Equal(t, domain.RoleAdmin, auth.User.Role)

	cred, ok := store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "token-alice", cred.Token)

	ctx = call(h.Login, fasthttp.MethodPost, "/api/session/login", `{"username":"bob","password":"secret"}`)
	envelope(t, ctx, &auth)
	assert.Equal(t, "/", auth.Redirect)
	assert.Equal(t, domain.RoleUser, auth.User.Role)
}

func TestSessionHandler_LoginErrors(t *testing.T) {
	m, _ := newManager(t)
	h := NewSessionHandler(m, nil, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed", `{`, fasthttp.StatusBadRequest, "INVALID"},
		{"empty body", ``, fasthttp.StatusBadRequest, "INVALID"},
		{"missing password", `{"username":"alice"}`, fasthttp.StatusBadRequest, "INVALID"},
		{"wrong password", `{"username":"alice","password":"nope"}`, fasthttp.StatusUnauthorized, "UNAUTHORIZED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := call(h.Login, fasthttp.MethodPost, "/api/session/login", tt.body)
			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			env := envelope(t, ctx, nil)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
	assert.False(t, m.Current().IsAuthenticated())
}

func TestSessionHandler_SignupConflict(t *testing.T) {
	m, _ := newManager(t)
	h := NewSessionHandler(m, nil, nil)

	ctx := call(h.Signup, fasthttp.MethodPost, "/api/session/signup", `{"username":"alice","email":"a@x.io","password":"pw"}`)
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())

	ctx = call(h.Signup, fasthttp.MethodPost, "/api/session/signup", `{"username":"carol","email":"c@x.io","password":"pw"}`)
	assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.Equal(t, "carol", m.Current().User.Username)
}

func TestSessionHandler_LogoutLeavesMessage(t *testing.T) {
	m, store := newManager(t)
	h := NewSessionHandler(m, nil, nil)
	call(h.Login, fasthttp.MethodPost, "/api/session/login", `{"username":"bob","password":"secret"}`)

	var redirect transport.Redirect
	ctx := call(h.Logout, fasthttp.MethodPost, "/api/session/logout", `{"reason":"Bye."}`)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	envelope(t, ctx, &redirect)
	assert.Equal(t, "/login", redirect.Location)

	_, ok := store.Load(context.Background())
	assert.False(t, ok)

	var msg transport.MessageResponse
	envelope(t, call(h.Message, fasthttp.MethodGet, "/api/session/message", ""), &msg)
	assert.True(t, msg.Present)
	assert.Equal(t, "Bye.", msg.Message)

	envelope(t, call(h.Message, fasthttp.MethodGet, "/api/session/message", ""), &msg)
	assert.False(t, msg.Present, "message is shown once")
}

func TestSessionHandler_CurrentAndActivity(t *testing.T) {
	m, _ := newManager(t)
	h := NewSessionHandler(m, nil, nil)

	var current transport.SessionResponse
	envelope(t, call(h.Current, fasthttp.MethodGet, "/api/session", ""), &current)
	assert.False(t, current.Authenticated)

	var activity transport.ActivityResponse
	envelope(t, call(h.Activity, fasthttp.MethodPost, "/api/session/activity", `{"event":"keydown"}`), &activity)
	assert.False(t, activity.Accepted, "no countdown while anonymous")

	call(h.Login, fasthttp.MethodPost, "/api/session/login", `{"username":"bob","password":"secret"}`)

	ctx := call(h.Current, fasthttp.MethodGet, "/api/session", "")
	envelope(t, ctx, &current)
	assert.True(t, current.Authenticated)
	assert.Equal(t, "bob", current.User.Username)
	assert.Positive(t, current.IdleRemainingSeconds)
	assert.NotContains(t, string(ctx.Response.Body()), "token-bob")

	envelope(t, call(h.Activity, fasthttp.MethodPost, "/api/session/activity", `{"event":"keydown"}`), &activity)
	assert.True(t, activity.Accepted)
	envelope(t, call(h.Activity, fasthttp.MethodPost, "/api/session/activity", `{"event":"resize"}`), &activity)
	assert.False(t, activity.Accepted)
}

func TestPasswordHandler(t *testing.T) {
	m, _ := newManager(t)
	h := NewPasswordHandler(m, nil, nil)

	var res domain.Result
	envelope(t, call(h.Forgot, fasthttp.MethodPost, "/api/password/forgot", `{"email":"  "}`), &res)
	assert.False(t, res.Success)
	assert.Equal(t, "Email is required.", res.Message)

	envelope(t, call(h.Forgot, fasthttp.MethodPost, "/api/password/forgot", `{"email":"a@x.io"}`), &res)
	assert.True(t, res.Success)

	ctx := call(h.Reset, fasthttp.MethodPost, "/api/password/reset", `{"token":"bad","newPassword":"x"}`)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	envelope(t, ctx, &res)
	assert.False(t, res.Success)
	assert.Equal(t, "Reset link is invalid or has expired", res.Message)

	envelope(t, call(h.Reset, fasthttp.MethodPost, "/api/password/reset", `{"token":"good","newPassword":"x"}`), &res)
	assert.True(t, res.Success)
}

func TestViewHandler_LoginView(t *testing.T) {
	m, _ := newManager(t)
	h := NewViewHandler(m, nil, nil)

	m.Login(context.Background(), domain.Credentials{Username: "bob", Password: "secret"})
	m.Logout(context.Background(), "Signed out.")

	var view transport.ViewResponse
	envelope(t, call(h.Login, fasthttp.MethodGet, "/login", ""), &view)
	assert.Equal(t, "login", view.View)
	assert.Equal(t, "Signed out.", view.Message)

	view = transport.ViewResponse{}
	envelope(t, call(h.Login, fasthttp.MethodGet, "/login", ""), &view)
	assert.Empty(t, view.Message)

	_, err := m.Login(context.Background(), domain.Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	ctx := call(h.Login, fasthttp.MethodGet, "/login", "")
	assert.Equal(t, fasthttp.StatusSeeOther, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.Peek(fasthttp.HeaderLocation)), "/admin")
}

func TestViewHandler_ProtectedViews(t *testing.T) {
	m, _ := newManager(t)
	h := NewViewHandler(m, nil, nil)

	ctx := call(h.Account, fasthttp.MethodGet, "/account", "")
	assert.Equal(t, fasthttp.StatusSeeOther, ctx.Response.StatusCode(), "unguarded route still checks the session")

	_, err := m.Login(context.Background(), domain.Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	var ctxGuarded fasthttp.RequestCtx
	ctxGuarded.Request.SetRequestURI("/admin/users")
	ctxGuarded.SetUserValue(middleware.SessionKey, m.Current())
	ctxGuarded.SetUserValue("section", "users")
	h.AdminSection(&ctxGuarded)

	var view transport.ViewResponse
	envelope(t, &ctxGuarded, &view)
	assert.Equal(t, "admin", view.View)
	assert.Equal(t, "users", view.Params["section"])
	assert.Equal(t, "alice", view.Session.User.Username)
}

func TestViewHandler_ResetPasswordNeedsToken(t *testing.T) {
	m, _ := newManager(t)
	h := NewViewHandler(m, nil, nil)

	ctx := call(h.ResetPassword, fasthttp.MethodGet, "/reset-password/", "")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	var withToken fasthttp.RequestCtx
	withToken.SetUserValue("token", "abc")
	h.ResetPassword(&withToken)

	var view transport.ViewResponse
	envelope(t, &withToken, &view)
	assert.Equal(t, "abc", view.Params["token"])
}

func TestHealthHandler(t *testing.T) {
	mon := monitor.New(monitor.Options{})
	mon.Refresh(context.Background())
	h := NewHealthHandler(mon, nil, nil)

	ctx := call(h.Check, fasthttp.MethodGet, "/health", "")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "success", envelope(t, ctx, nil).Status)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidCredentials, fasthttp.StatusUnauthorized},
		{domain.ErrForbidden, fasthttp.StatusForbidden},
		{domain.ErrAccountExists, fasthttp.StatusConflict},
		{domain.ErrAuthInProgress, fasthttp.StatusConflict},
		{domain.ErrSessionSuperseded, fasthttp.StatusConflict},
		{domain.ErrUnavailable, fasthttp.StatusServiceUnavailable},
		{context.Canceled, fasthttp.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := mapError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
