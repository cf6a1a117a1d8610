// Package tokenclock reads the expiry claim of backend-issued tokens. The
// signature is never verified here; trust is the backend's job.
package tokenclock

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Clock decides whether a token is past its exp claim.
type Clock struct {
	now    func() time.Time
	parser *jwt.Parser
}

// New returns a Clock backed by time.Now.
func New() *Clock {
	return NewWithNow(time.Now)
}

// NewWithNow returns a Clock reading the current time from now.
func NewWithNow(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, parser: jwt.NewParser()}
}

// ExpiresAt decodes the exp claim. ok is false when the token cannot be
// decoded or carries no exp.
func (c *Clock) ExpiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := c.parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IsExpired reports whether exp is strictly before now, compared in epoch
// seconds. Tokens that cannot be decoded count as expired.
func (c *Clock) IsExpired(token string) bool {
	exp, ok := c.ExpiresAt(token)
	if !ok {
		return true
	}
	return exp.Unix() < c.now().Unix()
}
