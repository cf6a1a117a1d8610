package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/pkg/httpcontext"
)

// RateLimitConfig bounds authentication attempts per client IP.
type RateLimitConfig struct {
	PerMinute       float64
	Burst           int
	CleanupInterval time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerMinute:       10,
		Burst:           5,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles login, signup and password reset attempts.
type RateLimiter struct {
	cfg    RateLimitConfig
	limit  rate.Limit
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter starts the background cleanup of idle client entries.
func NewRateLimiter(cfg RateLimitConfig, logger *zap.Logger) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = def.PerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rl := &RateLimiter{
		cfg:     cfg,
		limit:   rate.Limit(cfg.PerMinute / 60),
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ip := httpcontext.ClientIP(ctx)
		limiter := rl.limiterFor(ip)

		reservation := limiter.Reserve()
		if !reservation.OK() {
			rl.reject(ctx, ip, time.Minute)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			rl.reject(ctx, ip, delay)
			return
		}
		next(ctx)
	}
}

func (rl *RateLimiter) reject(ctx *fasthttp.RequestCtx, ip string, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	rl.logger.Warn("authentication rate limit exceeded",
		zap.String("client_ip", ip),
		zap.String("request_id", httpcontext.RequestID(ctx)))
	ctx.Response.Header.Set(fasthttp.HeaderRetryAfter, strconv.Itoa(seconds))
	writeEnvelope(ctx, fasthttp.StatusTooManyRequests,
		transport.NewError("RATE_LIMITED", "Too many attempts. Please try again later.", nil))
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.clients[ip]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.cfg.Burst)}
		rl.clients[ip] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-rl.cfg.CleanupInterval))
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(idleSince time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, entry := range rl.clients {
		if entry.lastAccess.Before(idleSince) {
			delete(rl.clients, ip)
		}
	}
}
