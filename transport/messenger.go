// Package transport implements the Messenger, the framing engine both roles talk through.
//
// A Messenger owns one duplex stream exclusively. Writes and reads go through an
// internal bufio.ReadWriter to keep syscalls down, and every Send ends with a flush
// so a pause between calls never strands half a frame in the buffer.
//
//	Send:  Message ──Codec.Encode──→ payload ──WriteFrame──→ bufio ──Flush──→ stream
//	Recv:  stream ──bufio──→ ReadFrame ──→ payload ──Codec.Decode──→ Message
package transport

import (
	"bufio"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"pixelpipe/codec"
	"pixelpipe/message"
	"pixelpipe/protocol"
)

// DefaultBufferSize matches one 64×32 RGB frame plus framing with room to spare.
const DefaultBufferSize = 64 * 1024

// Messenger sends and receives whole messages over one stream.
//
// Send and Recv are each serialised by their own mutex: two Sends never interleave
// their bytes, and two Recvs never split a frame between them. A Send and a Recv can
// run at the same time because they touch different halves of the stream.
// After any error mid-frame the stream position is undefined; discard the Messenger.
type Messenger struct {
	stream io.ReadWriter

	writeMu sync.Mutex // guards w
	w       *bufio.Writer
	readMu  sync.Mutex // guards r
	r       *bufio.Reader

	codec  codec.Codec
	limits protocol.Limits
	logger zerolog.Logger
}

type config struct {
	codec      codec.Codec
	limits     protocol.Limits
	logger     zerolog.Logger
	bufferSize int
}

// Option configures a Messenger.
type Option func(*config)

func WithCodec(c codec.Codec) Option {
	return func(cfg *config) { cfg.codec = c }
}

func WithLimits(l protocol.Limits) Option {
	return func(cfg *config) { cfg.limits = l }
}

func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

func WithBufferSize(n int) Option {
	return func(cfg *config) { cfg.bufferSize = n }
}

// NewMessenger takes ownership of stream. Nothing else may read or write it afterwards.
func NewMessenger(stream io.ReadWriter, opts ...Option) *Messenger {
	cfg := config{
		codec:      codec.Default(),
		limits:     protocol.DefaultLimits(),
		logger:     zerolog.Nop(),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Messenger{
		stream: stream,
		w:      bufio.NewWriterSize(stream, cfg.bufferSize),
		r:      bufio.NewReaderSize(stream, cfg.bufferSize),
		codec:  cfg.codec,
		limits: cfg.limits,
		logger: cfg.logger,
	}
}

// Send encodes msg, writes it as one frame and flushes.
// It returns the bytes written: the 8-byte length field plus the payload.
func (m *Messenger) Send(msg message.Message) (int, error) {
	payload, err := m.codec.Encode(msg)
	if err != nil {
		return 0, err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	n, err := protocol.WriteFrame(m.w, payload)
	if err != nil {
		return n, err
	}
	if err := m.w.Flush(); err != nil {
		return n, protocol.IOError("flush", err)
	}

	m.logger.Trace().Stringer("kind", msg.Kind()).Int("bytes", n).Msg("frame sent")
	return n, nil
}

// Recv blocks until one whole frame has arrived and returns the decoded message.
// There is no timeout here; set a deadline on the underlying connection if one is needed.
func (m *Messenger) Recv() (message.Message, error) {
	m.readMu.Lock()
	payload, err := protocol.ReadFrame(m.r, m.limits)
	m.readMu.Unlock()
	if err != nil {
		return nil, err
	}

	msg, err := m.codec.Decode(payload)
	if err != nil {
		return nil, err
	}

	m.logger.Trace().Stringer("kind", msg.Kind()).Int("bytes", protocol.LengthFieldSize+len(payload)).Msg("frame received")
	return msg, nil
}

// Close closes the underlying stream if it can be closed.
func (m *Messenger) Close() error {
	if c, ok := m.stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
