package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/storefront/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, nil)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestClient_LoginSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"username": "alice", "password": "correct"}, body)

		writeJSON(w, http.StatusOK, `{"token":"T","user":{"id":1,"username":"alice","role":"admin","email":"a@x.com"}}`)
	})

	res, err := client.Login(context.Background(), domain.Credentials{Username: "alice", Password: "correct"})
	require.NoError(t, err)
	assert.Equal(t, "T", res.Token)

	user := res.User.Normalize()
	assert.Equal(t, &domain.User{ID: "1", Username: "alice", Role: domain.RoleAdmin, Email: "a@x.com"}, user)
}

func TestClient_LoginRejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, `{"message":"Invalid credentials"}`)
		})

		_, err := client.Login(context.Background(), domain.Credentials{Username: "alice", Password: "wrong"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials, "status %d", status)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))
		assert.Equal(t, "Invalid credentials", domain.MessageOf(err, ""))
	}
}

func TestClient_LoginRejectedWithoutMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Login(context.Background(), domain.Credentials{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, domain.ErrInvalidCredentials.Message, domain.MessageOf(err, ""))
}

func TestClient_SignupConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/signup", r.URL.Path)
		writeJSON(w, http.StatusConflict, `{"error":"Username already taken"}`)
	})

	_, err := client.Signup(context.Background(), domain.SignupRequest{Username: "alice", Email: "a@x.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrAccountExists)
	assert.Equal(t, "Username already taken", domain.MessageOf(err, ""))
}

func TestClient_SignupDuplicateOnBadRequest(t *testing.T) {
	tests := map[string]struct {
		body string
		want error
	}{
		"duplicate email": {body: `{"error":"Email already exists"}`, want: domain.ErrAccountExists},
		"duplicate user":  {body: `{"message":"Username is already registered"}`, want: domain.ErrAccountExists},
		"weak password":   {body: `{"error":"Password too short"}`, want: domain.ErrInvalidPayload},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, tc.body)
			})

			_, err := client.Signup(context.Background(), domain.SignupRequest{Username: "alice", Email: "a@x.com", Password: "pw"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(Config{BaseURL: url, Timeout: time.Second}, nil)
	_, err := client.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
}

func TestClient_CancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ForgotPassword(ctx, "a@x.com")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_MalformedAuthResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"user":{"id":1}}`)
	})

	_, err := client.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
}

func TestClient_PasswordFlows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/api/forgot-password":
			assert.Equal(t, "a@x.com", body["email"])
			writeJSON(w, http.StatusOK, `{"message":"Reset link sent"}`)
		case "/api/reset-password":
			assert.Equal(t, "reset-token", body["token"])
			assert.Equal(t, "n3w", body["newPassword"])
			writeJSON(w, http.StatusOK, `{"message":"Password updated"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	msg, err := client.ForgotPassword(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Reset link sent", msg)

	msg, err = client.ResetPassword(context.Background(), "reset-token", "n3w")
	require.NoError(t, err)
	assert.Equal(t, "Password updated", msg)
}

func TestClient_NotificationCountSendsBearer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/notifications/count", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer T" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, `{"count":4}`)
	})

	n, err := client.NotificationCount(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = client.NotificationCount(context.Background(), "other")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestClient_Ping(t *testing.T) {
	var unhealthy atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, client.Ping(context.Background()))
	unhealthy.Store(true)
	assert.Error(t, client.Ping(context.Background()))
}

func TestClient_StripsMarkupFromMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message":"<b>Check</b> your inbox, it's on the way<script>alert(1)</script>"}`)
	})

	msg, err := client.ForgotPassword(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Check your inbox, it's on the way", msg)
}
