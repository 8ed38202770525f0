// Package server implements the Server role (frame sink) and a TCP service built on it.
//
// A Server owns one stream. It advertises its fixed dimensions as soon as it is
// constructed, then decodes every incoming PixelBuffer into a pixel.Image:
//
//	NewServer ──send Dimensions──→ Ready ──RecvImage──→ Ready ──RecvImage──→ ...
package server

import (
	"io"

	"pixelpipe/message"
	"pixelpipe/pixel"
	"pixelpipe/protocol"
	"pixelpipe/transport"
)

// Server is the sink side of one connection.
type Server struct {
	messenger *transport.Messenger
	width     uint32
	height    uint32
	handshake int // bytes sent for the Dimensions frame
}

// NewServer takes ownership of stream and sends the Dimensions handshake.
// If the handshake cannot be sent no Server is returned; the stream is left to the caller.
func NewServer(stream io.ReadWriter, width, height uint32, opts ...transport.Option) (*Server, error) {
	messenger := transport.NewMessenger(stream, opts...)

	n, err := messenger.Send(message.Dimensions{Width: width, Height: height})
	if err != nil {
		return nil, err
	}

	return &Server{
		messenger: messenger,
		width:     width,
		height:    height,
		handshake: n,
	}, nil
}

// Dimensions returns the geometry advertised at construction.
func (s *Server) Dimensions() (uint32, uint32) {
	return s.width, s.height
}

// HandshakeBytes returns how many bytes the Dimensions frame took on the wire.
func (s *Server) HandshakeBytes() int {
	return s.handshake
}

// RecvImage blocks for the next frame.
//
// Errors:
//   - protocol.ErrIO / ErrDeserialization from the Messenger
//   - protocol.ErrProtocol if anything other than a PixelBuffer arrives
//   - protocol.ErrDecode if the buffer is not width*height*3 bytes
func (s *Server) RecvImage() (*pixel.Image, error) {
	msg, err := s.messenger.Recv()
	if err != nil {
		return nil, err
	}

	pb, ok := msg.(message.PixelBuffer)
	if !ok {
		return nil, protocol.UnexpectedKind("recv image", message.KindPixelBuffer, msg.Kind())
	}

	img, err := pixel.FromRaw(s.width, s.height, pb.Data)
	if err != nil {
		return nil, protocol.DimensionMismatch("recv image", s.width, s.height, len(pb.Data))
	}
	return img, nil
}

// Close closes the underlying stream.
func (s *Server) Close() error {
	return s.messenger.Close()
}
