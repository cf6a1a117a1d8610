// Package backend talks to the storefront REST API.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	appLogger "github.com/fastygo/storefront/pkg/logger"
)

const (
	pathLogin              = "/api/login"
	pathSignup             = "/api/signup"
	pathForgotPassword     = "/api/forgot-password"
	pathResetPassword      = "/api/reset-password"
	pathNotificationsCount = "/api/admin/notifications/count"
	pathHealth             = "/api/health"
)

// Config controls how the client reaches the backend.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Name    string
}

// Client is the fasthttp-backed backend collaborator.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                cfg.Name,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Backend messages are shown to users verbatim, so markup is stripped.
var messagePolicy = bluemonday.StrictPolicy()

func (m messageResponse) text() string {
	msg := m.Message
	if msg == "" {
		msg = m.Error
	}
	return strings.TrimSpace(html.UnescapeString(messagePolicy.Sanitize(msg)))
}

type countResponse struct {
	Count int `json:"count"`
}

// Login exchanges credentials for a token and profile. The backend answers
// bad credentials with 400, 401 or 404.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.do(ctx, fasthttp.MethodPost, pathLogin, "", loginRequest(creds), &out)
	if err != nil {
		return nil, classify(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound)
	}
	return checkAuthResult(&out)
}

// Signup registers a new account and returns its token and profile. A
// duplicate account is a conflict whether the backend answers 409 or a 400
// naming the clash.
func (c *Client) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := c.do(ctx, fasthttp.MethodPost, pathSignup, "", signupRequest(req), &out); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusBadRequest && isDuplicate(se.message) {
			return nil, withMessage(domain.ErrAccountExists, se.message)
		}
		return nil, classify(err)
	}
	return checkAuthResult(&out)
}

// ForgotPassword asks the backend to mail a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out messageResponse
	if err := c.do(ctx, fasthttp.MethodPost, pathForgotPassword, "", forgotRequest{Email: email}, &out); err != nil {
		return "", classify(err)
	}
	return out.text(), nil
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	var out messageResponse
	if err := c.do(ctx, fasthttp.MethodPost, pathResetPassword, "", resetRequest{Token: token, NewPassword: newPassword}, &out); err != nil {
		return "", classify(err)
	}
	return out.text(), nil
}

// NotificationCount returns the number of unread admin notifications.
func (c *Client) NotificationCount(ctx context.Context, token string) (int, error) {
	var out countResponse
	if err := c.do(ctx, fasthttp.MethodGet, pathNotificationsCount, token, nil, &out); err != nil {
		return 0, classify(err)
	}
	return out.Count, nil
}

// Ping reports whether the backend answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return classify(c.do(ctx, fasthttp.MethodGet, pathHealth, "", nil, nil))
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrUnavailable.Message, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "invalid payload", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(body)
	}

	log := appLogger.WithRequestID(ctx, c.logger).With(zap.String("method", method), zap.String("path", path))
	started := time.Now()
	if err := c.http.DoTimeout(req, resp, c.timeoutFor(ctx)); err != nil {
		log.Warn("backend request failed", zap.Error(err))
		return &domain.Error{Code: domain.ErrCodeUnavailable, Message: domain.ErrUnavailable.Message, Err: err}
	}

	status := resp.StatusCode()
	log.Debug("backend request completed", zap.Int("status", status), zap.Duration("elapsed", time.Since(started)))
	if status >= http.StatusBadRequest {
		var msg messageResponse
		_ = json.Unmarshal(resp.Body(), &msg)
		return &statusError{status: status, message: msg.text()}
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		log.Warn("malformed backend response", zap.Error(err))
		return &domain.Error{Code: domain.ErrCodeUnavailable, Message: "unexpected response from authentication service", Err: err}
	}
	return nil
}

func (c *Client) timeoutFor(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func checkAuthResult(out *domain.AuthResult) (*domain.AuthResult, error) {
	if out.Token == "" || out.User.Username == "" {
		return nil, domain.NewError(domain.ErrCodeUnavailable, "unexpected response from authentication service")
	}
	return out, nil
}

// statusError carries a non-2xx answer until the caller classifies it.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend answered %d: %s", e.status, e.message)
}

// classify turns a status error into a domain error. Statuses listed in
// credentialStatuses mean bad credentials for the calling endpoint.
func classify(err error, credentialStatuses ...int) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}
	if slices.Contains(credentialStatuses, se.status) {
		return withMessage(domain.ErrInvalidCredentials, se.message)
	}

	switch {
	case se.status == http.StatusUnauthorized:
		return withMessage(domain.ErrNotAuthenticated, se.message)
	case se.status == http.StatusForbidden:
		return withMessage(domain.ErrForbidden, se.message)
	case se.status == http.StatusConflict:
		return withMessage(domain.ErrAccountExists, se.message)
	case se.status == http.StatusNotFound:
		return withMessage(errNotFound, se.message)
	case se.status >= http.StatusInternalServerError:
		return withMessage(domain.ErrUnavailable, se.message)
	default:
		return withMessage(domain.ErrInvalidPayload, se.message)
	}
}

var duplicateMarkers = []string{"already exists", "already registered", "already taken", "already in use", "duplicate"}

func isDuplicate(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range duplicateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var errNotFound = domain.NewError(domain.ErrCodeNotFound, "not found")

func withMessage(sentinel *domain.Error, message string) error {
	if message == "" {
		message = sentinel.Message
	}
	return &domain.Error{Code: sentinel.Code, Message: message, Err: sentinel}
}
