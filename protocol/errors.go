package protocol

import (
	"errors"
	"fmt"
	"io"

	"pixelpipe/message"
)

// ErrorKind classifies every failure surfaced by the framing layer and the two roles.
type ErrorKind int

const (
	KindIO              ErrorKind = iota + 1 // transport failure: reset, short read, write/flush failure
	KindSerialization                        // a message could not be encoded
	KindDeserialization                      // a frame could not be decoded into a message
	KindProtocol                             // a valid message of the wrong kind for the session state
	KindDecode                               // a pixel buffer that cannot be reshaped into the negotiated grid
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindSerialization:
		return "serialization error"
	case KindDeserialization:
		return "deserialization error"
	case KindProtocol:
		return "protocol error"
	case KindDecode:
		return "decode error"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// Error is the single error type returned across package boundaries.
// Callers branch on Kind (or errors.Is against the sentinels below) instead of parsing text.
type Error struct {
	Kind ErrorKind
	Op   string // e.g. "read length", "handshake"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return "pixelpipe: " + e.Kind.String()
	}
	if e.Err == nil {
		return fmt.Sprintf("pixelpipe: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("pixelpipe: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind-only sentinels, so errors.Is(err, ErrProtocol) holds for any protocol error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Kind-only sentinels for errors.Is.
var (
	ErrIO              = &Error{Kind: KindIO}
	ErrSerialization   = &Error{Kind: KindSerialization}
	ErrDeserialization = &Error{Kind: KindDeserialization}
	ErrProtocol        = &Error{Kind: KindProtocol}
	ErrDecode          = &Error{Kind: KindDecode}
)

var (
	// ErrDisconnected means the stream ended cleanly on a frame boundary.
	// It also matches io.ErrUnexpectedEOF since the length field never arrived.
	ErrDisconnected  = fmt.Errorf("peer disconnected: %w", io.ErrUnexpectedEOF)
	ErrFrameTooLarge = errors.New("frame length exceeds limit")
)

// UnexpectedKindError reports a message that is valid on the wire but wrong for the session state.
type UnexpectedKindError struct {
	Expected message.Kind
	Got      message.Kind
}

func (e *UnexpectedKindError) Error() string {
	return fmt.Sprintf("unexpected message kind %s, expected %s", e.Got, e.Expected)
}

// DimensionMismatchError reports a pixel buffer whose length is not Width*Height*3.
type DimensionMismatchError struct {
	Width  uint32
	Height uint32
	Got    int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %dx%d needs %d bytes, got %d",
		e.Width, e.Height, uint64(e.Width)*uint64(e.Height)*3, e.Got)
}

func IOError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func SerializationError(op string, err error) error {
	return &Error{Kind: KindSerialization, Op: op, Err: err}
}

func DeserializationError(op string, err error) error {
	return &Error{Kind: KindDeserialization, Op: op, Err: err}
}

func UnexpectedKind(op string, expected, got message.Kind) error {
	return &Error{Kind: KindProtocol, Op: op, Err: &UnexpectedKindError{Expected: expected, Got: got}}
}

func DimensionMismatch(op string, width, height uint32, got int) error {
	return &Error{Kind: KindDecode, Op: op, Err: &DimensionMismatchError{Width: width, Height: height, Got: got}}
}

// KindOf returns the ErrorKind of err, or 0 if err is not a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
