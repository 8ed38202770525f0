// Package client implements the Client role (frame source).
//
// A Client learns the frame geometry from the sink's Dimensions handshake and then
// streams PixelBuffer messages:
//
//	NewClient ──recv Dimensions──→ Ready ──SendImage──→ Ready ──SendImage──→ ...
package client

import (
	"context"
	"io"

	"pixelpipe/message"
	"pixelpipe/middleware"
	"pixelpipe/pixel"
	"pixelpipe/protocol"
	"pixelpipe/transport"
)

// Client is the source side of one connection.
type Client struct {
	messenger   *transport.Messenger
	width       uint32
	height      uint32
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware chain around send
}

// NewClient takes ownership of stream and blocks until the sink's Dimensions arrive.
// Any other first message, or a transport failure, is fatal and no Client is returned.
func NewClient(stream io.ReadWriter, opts ...transport.Option) (*Client, error) {
	messenger := transport.NewMessenger(stream, opts...)

	msg, err := messenger.Recv()
	if err != nil {
		return nil, err
	}
	dims, ok := msg.(message.Dimensions)
	if !ok {
		return nil, protocol.UnexpectedKind("handshake", message.KindDimensions, msg.Kind())
	}

	c := &Client{
		messenger: messenger,
		width:     dims.Width,
		height:    dims.Height,
	}
	c.handler = c.send
	return c, nil
}

// Dimensions returns the geometry learned at handshake. No I/O.
func (c *Client) Dimensions() (uint32, uint32) {
	return c.width, c.height
}

// Use appends middlewares to the send path. Not safe to call concurrently with SendImage.
func (c *Client) Use(mws ...middleware.Middleware) {
	c.middlewares = append(c.middlewares, mws...)
	c.handler = middleware.Chain(c.middlewares...)(c.send)
}

// SendImage sends img as one PixelBuffer and returns the bytes written.
// The geometry is not checked here; the sink rejects a mismatched frame on receipt.
func (c *Client) SendImage(img *pixel.Image) (int, error) {
	return c.handler(context.Background(), img)
}

// SendImageContext is SendImage with a context for the middlewares (pacing waits).
// Once the frame reaches the Messenger the write is not interruptible.
func (c *Client) SendImageContext(ctx context.Context, img *pixel.Image) (int, error) {
	return c.handler(ctx, img)
}

func (c *Client) send(_ context.Context, img *pixel.Image) (int, error) {
	return c.messenger.Send(message.PixelBuffer{Data: img.Raw()})
}

// Close closes the underlying stream.
func (c *Client) Close() error {
	return c.messenger.Close()
}
