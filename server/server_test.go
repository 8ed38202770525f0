package server

import (
	"bytes"
	"errors"
	"image/color"
	"io"
	"math/rand/v2"
	"net"
	"testing"

	"pixelpipe/client"
	"pixelpipe/message"
	"pixelpipe/pixel"
	"pixelpipe/protocol"
	"pixelpipe/transport"
)

// serverClient connects a Server and a Client over loopback TCP.
func serverClient(t testing.TB, width, height uint32) (*Server, *client.Client) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	clientConn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	serverConn, err := listener.Accept()
	if err != nil {
		t.Fatal(err)
	}

	srv, err := NewServer(serverConn, width, height)
	if err != nil {
		t.Fatal(err)
	}
	cli, err := client.NewClient(clientConn)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		cli.Close()
		srv.Close()
	})
	return srv, cli
}

func patternImage(width, height uint32) *pixel.Image {
	return pixel.FromFunc(width, height, func(x, y uint32) color.RGBA {
		bx, by := uint8(x), uint8(y)
		if (bx*by)%5 == 0 {
			return color.RGBA{R: bx, G: by, B: bx + by, A: 0xff}
		}
		return color.RGBA{R: 255 - by, G: 255 - bx*by, B: bx + by, A: 0xff}
	})
}

func randomImage(width, height uint32) *pixel.Image {
	img := pixel.New(width, height)
	for i := range img.Pix {
		img.Pix[i] = byte(rand.IntN(256))
	}
	return img
}

func TestDimensions(t *testing.T) {
	cases := [][2]uint32{{64, 32}, {1, 1}, {1920, 1080}, {3, 7}}

	for _, dims := range cases {
		srv, cli := serverClient(t, dims[0], dims[1])

		w, h := cli.Dimensions()
		if w != dims[0] || h != dims[1] {
			t.Fatalf("expect %dx%d, got %dx%d", dims[0], dims[1], w, h)
		}
		if sw, sh := srv.Dimensions(); sw != w || sh != h {
			t.Fatalf("server and client disagree: %dx%d vs %dx%d", sw, sh, w, h)
		}
		// 8 length + 4 tag + 4 width + 4 height
		if srv.HandshakeBytes() != 20 {
			t.Errorf("handshake bytes: got %d, want 20", srv.HandshakeBytes())
		}
	}
}

func TestDimensionsMismatch(t *testing.T) {
	_, cli := serverClient(t, 64, 32)
	if w, h := cli.Dimensions(); w == 65 && h == 32 {
		t.Fatalf("client reports dimensions the server never sent: %dx%d", w, h)
	}
}

func TestSimpleImage(t *testing.T) {
	const width, height = 64, 32
	srv, cli := serverClient(t, width, height)

	img := patternImage(width, height)
	n, err := cli.SendImage(img)
	if err != nil {
		t.Fatal(err)
	}
	// length field + tag + buffer length + pixels
	if want := 8 + 4 + 8 + width*height*3; n != want {
		t.Errorf("bytes sent: got %d, want %d", n, want)
	}

	received, err := srv.RecvImage()
	if err != nil {
		t.Fatal(err)
	}
	if received.Width != width || received.Height != height {
		t.Fatalf("geometry mismatch: %dx%d", received.Width, received.Height)
	}
	if !bytes.Equal(received.Pix, img.Pix) {
		t.Fatal("received image differs from sent image")
	}
}

func TestRepeatedFrames(t *testing.T) {
	const width, height = 64, 32
	srv, cli := serverClient(t, width, height)
	img := randomImage(width, height)

	for round := 0; round < 50; round++ {
		for i := 0; i < 10; i++ {
			if _, err := cli.SendImage(img); err != nil {
				t.Fatalf("round %d send %d: %v", round, i, err)
			}
		}
		for i := 0; i < 10; i++ {
			received, err := srv.RecvImage()
			if err != nil {
				t.Fatalf("round %d recv %d: %v", round, i, err)
			}
			if !bytes.Equal(received.Pix, img.Pix) {
				t.Fatalf("round %d frame %d corrupted", round, i)
			}
		}
	}
}

func TestRecvImageDimensionMismatch(t *testing.T) {
	srv, cli := serverClient(t, 4, 4)

	// The client does not validate geometry; the server must catch it
	if _, err := cli.SendImage(patternImage(3, 3)); err != nil {
		t.Fatal(err)
	}

	_, err := srv.RecvImage()
	if !errors.Is(err, protocol.ErrDecode) {
		t.Fatalf("expect decode error, got %v", err)
	}
	var dm *protocol.DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expect *DimensionMismatchError, got %v", err)
	}
	if dm.Width != 4 || dm.Height != 4 || dm.Got != 27 {
		t.Errorf("unexpected mismatch detail: %+v", dm)
	}
}

func TestRecvImageRejectsSecondDimensions(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	peer := transport.NewMessenger(b)
	done := make(chan error, 1)
	go func() {
		// Consume the handshake, then answer with the wrong variant
		if _, err := peer.Recv(); err != nil {
			done <- err
			return
		}
		_, err := peer.Send(message.Dimensions{Width: 2, Height: 2})
		done <- err
	}()

	srv, err := NewServer(a, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	_, err = srv.RecvImage()
	if !errors.Is(err, protocol.ErrProtocol) {
		t.Fatalf("expect protocol error, got %v", err)
	}
	var uk *protocol.UnexpectedKindError
	if !errors.As(err, &uk) || uk.Got != message.KindDimensions || uk.Expected != message.KindPixelBuffer {
		t.Fatalf("unexpected detail: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestRecvImageAfterClientClose(t *testing.T) {
	srv, cli := serverClient(t, 2, 2)
	cli.Close()

	_, err := srv.RecvImage()
	if !errors.Is(err, protocol.ErrIO) {
		t.Fatalf("expect io error, got %v", err)
	}
	if !errors.Is(err, protocol.ErrDisconnected) {
		t.Errorf("expect ErrDisconnected, got %v", err)
	}
}

type closedStream struct{}

func (closedStream) Read(p []byte) (int, error)  { return 0, io.EOF }
func (closedStream) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestNewServerHandshakeFailure(t *testing.T) {
	srv, err := NewServer(closedStream{}, 64, 32)
	if srv != nil {
		t.Fatal("expect no server when the handshake fails")
	}
	if !errors.Is(err, protocol.ErrIO) {
		t.Fatalf("expect io error, got %v", err)
	}
}

func BenchmarkFrame64x32(b *testing.B) {
	srv, cli := serverClient(b, 64, 32)
	img := randomImage(64, 32)
	b.SetBytes(int64(img.Len()))

	errs := make(chan error, 1)
	go func() {
		for i := 0; i < b.N; i++ {
			if _, err := cli.SendImage(img); err != nil {
				errs <- err
				return
			}
		}
		errs <- nil
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		received, err := srv.RecvImage()
		if err != nil {
			b.Fatal(err)
		}
		if !bytes.Equal(received.Pix, img.Pix) {
			b.Fatal("frame corrupted")
		}
	}
	if err := <-errs; err != nil {
		b.Fatal(err)
	}
}
