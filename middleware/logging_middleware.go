package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pixelpipe/pixel"
)

// LoggingMiddleware logs every frame at debug level and failures at warn level.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		var frames atomic.Uint64
		return func(ctx context.Context, img *pixel.Image) (int, error) {
			start := time.Now()
			n, err := next(ctx, img)
			frame := frames.Add(1)
			if err != nil {
				logger.Warn().Err(err).Uint64("frame", frame).Msg("send frame failed")
				return n, err
			}
			logger.Debug().
				Uint64("frame", frame).
				Int("bytes", n).
				Dur("duration", time.Since(start)).
				Msg("frame sent")
			return n, nil
		}
	}
}
