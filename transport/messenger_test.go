package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"pixelpipe/message"
	"pixelpipe/protocol"
)

// loopback is an in-memory stream: whatever is written can be read back.
type loopback struct {
	bytes.Buffer
}

func TestSendRecv(t *testing.T) {
	m := NewMessenger(&loopback{})

	n, err := m.Send(message.Dimensions{Width: 64, Height: 32})
	if err != nil {
		t.Fatal(err)
	}
	// 8 length + 4 tag + 4 width + 4 height
	if n != 20 {
		t.Errorf("byte count mismatch: got %d, want 20", n)
	}

	msg, err := m.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if dims, ok := msg.(message.Dimensions); !ok || dims.Width != 64 || dims.Height != 32 {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestSendFlushes(t *testing.T) {
	stream := &loopback{}
	m := NewMessenger(stream)

	n, err := m.Send(message.PixelBuffer{Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	// Nothing may be left sitting in the bufio.Writer
	if stream.Len() != n {
		t.Fatalf("stream holds %d bytes after Send, want %d", stream.Len(), n)
	}
	if got := binary.LittleEndian.Uint64(stream.Bytes()[:8]); got != uint64(n-8) {
		t.Errorf("length field %d does not match payload length %d", got, n-8)
	}
}

func TestRecvReadsExactlyOneFrame(t *testing.T) {
	m := NewMessenger(&loopback{})
	for i := byte(0); i < 5; i++ {
		if _, err := m.Send(message.PixelBuffer{Data: bytes.Repeat([]byte{i}, 3*int(i+1))}); err != nil {
			t.Fatal(err)
		}
	}
	for i := byte(0); i < 5; i++ {
		msg, err := m.Recv()
		if err != nil {
			t.Fatal(err)
		}
		pb := msg.(message.PixelBuffer)
		if !bytes.Equal(pb.Data, bytes.Repeat([]byte{i}, 3*int(i+1))) {
			t.Fatalf("frame %d corrupted: %v", i, pb.Data)
		}
	}
}

func TestRecvDisconnected(t *testing.T) {
	m := NewMessenger(&loopback{})
	_, err := m.Recv()
	if !errors.Is(err, protocol.ErrIO) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io error with unexpected EOF, got %v", err)
	}
}

func TestRecvMalformedPayload(t *testing.T) {
	stream := &loopback{}
	protocol.WriteFrame(stream, []byte{42, 0, 0, 0})

	m := NewMessenger(stream)
	_, err := m.Recv()
	if !errors.Is(err, protocol.ErrDeserialization) {
		t.Fatalf("expected deserialization error, got %v", err)
	}
}

func TestRecvRespectsLimits(t *testing.T) {
	m := NewMessenger(&loopback{}, WithLimits(protocol.Limits{MaxFrameBytes: 16}))
	if _, err := m.Send(message.PixelBuffer{Data: make([]byte, 30)}); err != nil {
		t.Fatal(err)
	}
	_, err := m.Recv()
	if !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

type brokenWriter struct {
	loopback
}

func (b *brokenWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestSendWriteFailure(t *testing.T) {
	m := NewMessenger(&brokenWriter{})
	_, err := m.Send(message.Dimensions{Width: 1, Height: 1})
	if !errors.Is(err, protocol.ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("expected ErrClosedPipe in chain, got %v", err)
	}
}

func TestSendSerializationFailure(t *testing.T) {
	m := NewMessenger(&loopback{})
	var nilBuf *message.PixelBuffer
	if _, err := m.Send(nilBuf); !errors.Is(err, protocol.ErrSerialization) {
		t.Fatalf("expected serialization error, got %v", err)
	}
}

// Concurrent senders must never interleave bytes of different frames.
func TestConcurrentSendersKeepFramesIntact(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	sender := NewMessenger(a, WithBufferSize(16))
	receiver := NewMessenger(b)

	const senders, perSender, frameLen = 8, 20, 300
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte(s)}, frameLen)
			for i := 0; i < perSender; i++ {
				if _, err := sender.Send(message.PixelBuffer{Data: data}); err != nil {
					t.Errorf("send failed: %v", err)
					return
				}
			}
		}(s)
	}

	counts := make(map[byte]int)
	for i := 0; i < senders*perSender; i++ {
		msg, err := receiver.Recv()
		if err != nil {
			t.Fatalf("recv %d failed: %v", i, err)
		}
		data := msg.(message.PixelBuffer).Data
		if len(data) != frameLen || !bytes.Equal(data, bytes.Repeat(data[:1], frameLen)) {
			t.Fatalf("frame %d interleaved", i)
		}
		counts[data[0]]++
	}
	wg.Wait()

	for s := 0; s < senders; s++ {
		if counts[byte(s)] != perSender {
			t.Errorf("sender %d: got %d frames, want %d", s, counts[byte(s)], perSender)
		}
	}
}

func TestCloseClosesStream(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	m := NewMessenger(a)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Send(message.Dimensions{Width: 1, Height: 1}); !errors.Is(err, protocol.ErrIO) {
		t.Fatalf("expected io error after Close, got %v", err)
	}
}
