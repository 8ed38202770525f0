package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"pixelpipe/message"
	"pixelpipe/protocol"
)

// Payload layout, all integers little-endian:
//
//	Dimensions:  tag u32 (0) | width u32 | height u32
//	PixelBuffer: tag u32 (1) | length u64 | length raw bytes
const (
	tagSize         = 4
	dimensionsSize  = tagSize + 4 + 4
	pixelHeaderSize = tagSize + 8
)

var (
	ErrUnknownTag    = errors.New("unknown variant tag")
	ErrTruncated     = errors.New("truncated payload")
	ErrTrailingBytes = errors.New("trailing bytes after payload")
	ErrNilMessage    = errors.New("nil message")
)

type BinaryCodec struct{}

func (c *BinaryCodec) Encode(msg message.Message) ([]byte, error) {
	switch m := msg.(type) {
	case message.Dimensions:
		buf := make([]byte, dimensionsSize)
		binary.LittleEndian.PutUint32(buf[0:4], uint32(message.KindDimensions))
		binary.LittleEndian.PutUint32(buf[4:8], m.Width)
		binary.LittleEndian.PutUint32(buf[8:12], m.Height)
		return buf, nil
	case *message.Dimensions:
		if m == nil {
			return nil, protocol.SerializationError("encode", ErrNilMessage)
		}
		return c.Encode(*m)
	case message.PixelBuffer:
		buf := make([]byte, pixelHeaderSize+len(m.Data))
		binary.LittleEndian.PutUint32(buf[0:4], uint32(message.KindPixelBuffer))
		binary.LittleEndian.PutUint64(buf[4:12], uint64(len(m.Data)))
		// Raw bytes verbatim, no escaping
		copy(buf[pixelHeaderSize:], m.Data)
		return buf, nil
	case *message.PixelBuffer:
		if m == nil {
			return nil, protocol.SerializationError("encode", ErrNilMessage)
		}
		return c.Encode(*m)
	case nil:
		return nil, protocol.SerializationError("encode", ErrNilMessage)
	default:
		return nil, protocol.SerializationError("encode", fmt.Errorf("unsupported message type %T", msg))
	}
}

func (c *BinaryCodec) Decode(data []byte) (message.Message, error) {
	if len(data) < tagSize {
		return nil, protocol.DeserializationError("decode",
			fmt.Errorf("%w: %d bytes, need a %d-byte tag", ErrTruncated, len(data), tagSize))
	}

	tag := message.Kind(binary.LittleEndian.Uint32(data[0:4]))
	switch tag {
	case message.KindDimensions:
		if len(data) < dimensionsSize {
			return nil, protocol.DeserializationError("decode",
				fmt.Errorf("%w: Dimensions needs %d bytes, got %d", ErrTruncated, dimensionsSize, len(data)))
		}
		if len(data) > dimensionsSize {
			return nil, protocol.DeserializationError("decode",
				fmt.Errorf("%w: %d", ErrTrailingBytes, len(data)-dimensionsSize))
		}
		return message.Dimensions{
			Width:  binary.LittleEndian.Uint32(data[4:8]),
			Height: binary.LittleEndian.Uint32(data[8:12]),
		}, nil

	case message.KindPixelBuffer:
		if len(data) < pixelHeaderSize {
			return nil, protocol.DeserializationError("decode",
				fmt.Errorf("%w: PixelBuffer header needs %d bytes, got %d", ErrTruncated, pixelHeaderSize, len(data)))
		}
		n := binary.LittleEndian.Uint64(data[4:12])
		rest := uint64(len(data) - pixelHeaderSize)
		if n > rest {
			return nil, protocol.DeserializationError("decode",
				fmt.Errorf("%w: PixelBuffer declares %d bytes, %d present", ErrTruncated, n, rest))
		}
		if n < rest {
			return nil, protocol.DeserializationError("decode",
				fmt.Errorf("%w: %d", ErrTrailingBytes, rest-n))
		}
		// The frame buffer is freshly allocated per frame, so it can be handed out without a copy
		return message.PixelBuffer{Data: data[pixelHeaderSize:]}, nil

	default:
		return nil, protocol.DeserializationError("decode", fmt.Errorf("%w: %d", ErrUnknownTag, uint32(tag)))
	}
}
