// CLAUDE:SUMMARY HTTP middleware stack for the adfriend server: HEAD handling, security headers, body cap, trace id, per-IP rate limit.
// Package shield provides the HTTP security middleware of the adfriend
// server.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(shield.StackConfig{MaxBody: 1 << 20}) {
//	    r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// StackConfig sizes the default stack.
type StackConfig struct {
	// MaxBody caps request bodies. Default: 64KB.
	MaxBody int64
	// Rate and Burst bound requests per client IP. A zero Rate disables
	// rate limiting.
	Rate  float64
	Burst int
	// Exempt path prefixes skip rate limiting (health checks).
	Exempt []string
}

// DefaultStack returns the standard middleware stack, ordered:
// HeadToGet, SecurityHeaders, MaxBody, TraceID, RateLimiter.
func DefaultStack(cfg StackConfig) []func(http.Handler) http.Handler {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 64 * 1024
	}
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(cfg.MaxBody),
		TraceID,
	}
	if cfg.Rate > 0 {
		stack = append(stack, NewRateLimiter(cfg.Rate, cfg.Burst, cfg.Exempt...).Middleware)
	}
	return stack
}
