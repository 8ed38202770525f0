// Package message defines the payload exchanged between a frame sink and a frame source.
//
// Message is a closed tagged union with two variants. It gets serialized by the codec
// layer and wrapped in a length-prefixed protocol frame for transmission over TCP.
package message

import "fmt"

// Kind is the variant tag written on the wire ahead of every payload.
type Kind uint32

const (
	KindDimensions  Kind = 0 // Sink → Source, once, as the handshake
	KindPixelBuffer Kind = 1 // Source → Sink, one per frame
)

func (k Kind) String() string {
	switch k {
	case KindDimensions:
		return "Dimensions"
	case KindPixelBuffer:
		return "PixelBuffer"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Message is implemented by Dimensions and PixelBuffer only.
type Message interface {
	Kind() Kind
	isMessage()
}

// Dimensions declares the frame geometry for the rest of the session.
type Dimensions struct {
	Width  uint32
	Height uint32
}

func (Dimensions) Kind() Kind { return KindDimensions }
func (Dimensions) isMessage() {}

// PixelBuffer carries one frame of interleaved RGB samples, row-major, 3 bytes per pixel.
// The length is not checked here; the sink validates it against the negotiated dimensions.
type PixelBuffer struct {
	Data []byte
}

func (PixelBuffer) Kind() Kind { return KindPixelBuffer }
func (PixelBuffer) isMessage() {}
