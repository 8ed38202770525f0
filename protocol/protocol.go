// Package protocol implements the length-prefixed frame layer of pixelpipe.
//
// TCP is a byte stream with no message boundaries, so every payload is preceded by
// a fixed 8-byte length field. The receiver reads the length first, then reads
// exactly that many bytes before handing them to the codec.
//
// Frame format:
//
//	0                 8
//	┌─────────────────┬───────────────────────┐
//	│     length      │      payload ...      │
//	│  uint64 (LE)    │    length bytes       │
//	└─────────────────┴───────────────────────┘
//
// The length field is never variable-length encoded: it has to be read before
// anything about the payload is known. There is no magic number or checksum, so a
// corrupted length misaligns every following frame; callers must drop the connection.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// LengthFieldSize is the size of the fixed length prefix in bytes.
const LengthFieldSize = 8

// Limits constrains how much memory a single frame may claim on receipt.
type Limits struct {
	MaxFrameBytes uint64 // 0 means no limit beyond what fits in an int
}

// DefaultLimits allows frames up to 1 GiB, enough for an 8K RGB buffer with headroom.
func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 1 << 30}
}

// WriteFrame writes the length field followed by payload to w.
// It returns the number of bytes written, length field included.
// The caller must hold a write lock if several goroutines share w.
func WriteFrame(w io.Writer, payload []byte) (int, error) {
	var lenBuf [LengthFieldSize]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))

	n, err := w.Write(lenBuf[:])
	if err != nil {
		return n, IOError("write length", err)
	}
	m, err := w.Write(payload)
	n += m
	if err != nil {
		return n, IOError("write payload", err)
	}
	return n, nil
}

// ReadFrame reads one complete frame from r and returns its payload.
// It blocks until the whole frame has arrived or the stream fails.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var lenBuf [LengthFieldSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			// Nothing at all arrived: the peer closed between frames.
			return nil, IOError("read length", ErrDisconnected)
		}
		return nil, IOError("read length", err)
	}

	length := binary.LittleEndian.Uint64(lenBuf[:])
	if limits.MaxFrameBytes > 0 && length > limits.MaxFrameBytes {
		return nil, DeserializationError("read length",
			fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, limits.MaxFrameBytes))
	}
	if length > math.MaxInt {
		return nil, DeserializationError("read length",
			fmt.Errorf("%w: %d does not fit in memory", ErrFrameTooLarge, length))
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, IOError("read payload", err)
	}
	return payload, nil
}
