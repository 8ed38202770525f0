package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"pixelpipe/pixel"
)

// ErrFrameDropped is returned by DropMiddleware for frames over budget. No bytes were written.
var ErrFrameDropped = errors.New("frame dropped by rate limit")

// RateLimitMiddleware paces frames with a token bucket: fps frames per second, bursts of burst.
// It blocks until a token is available or ctx is done; the frame is never partially sent.
func RateLimitMiddleware(fps float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(fps), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, img *pixel.Image) (int, error) {
			if err := limiter.Wait(ctx); err != nil {
				return 0, err
			}
			return next(ctx, img)
		}
	}
}

// DropMiddleware skips frames instead of waiting when the budget is spent.
// Useful for live capture where a late frame is worth less than the next one.
func DropMiddleware(fps float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(fps), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, img *pixel.Image) (int, error) {
			if !limiter.Allow() {
				return 0, ErrFrameDropped
			}
			return next(ctx, img)
		}
	}
}
