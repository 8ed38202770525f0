// Package codec serializes messages into frame payloads and back.
package codec

import "pixelpipe/message"

// Codec turns a Message into a frame payload and back.
// Both endpoints must use the same Codec; the frame carries no codec identifier.
type Codec interface {
	Encode(msg message.Message) ([]byte, error)
	Decode(data []byte) (message.Message, error)
}

// Default is the codec every pixelpipe endpoint speaks.
func Default() Codec {
	return &BinaryCodec{}
}
