// Package middleware wraps a source's send path.
//
// Middlewares compose in the onion model:
//
//	Chain(A, B, C)(send) → A(B(C(send)))
//	A.before → B.before → C.before → send → C.after → B.after → A.after
//
// Nothing in here may retry a send: a failed frame leaves the stream in an unknown
// position and must reach the caller.
package middleware

import (
	"context"

	"pixelpipe/pixel"
)

// HandlerFunc sends one frame and returns the bytes written.
type HandlerFunc func(ctx context.Context, img *pixel.Image) (int, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one, outermost first.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
