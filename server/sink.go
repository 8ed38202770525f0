package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pixelpipe/pixel"
	"pixelpipe/protocol"
	"pixelpipe/registry"
	"pixelpipe/transport"
)

// Frame is one image delivered to a FrameHandler.
type Frame struct {
	Remote   string    // source address
	Seq      uint64    // 1-based frame count on this connection
	Received time.Time // when RecvImage returned
	Image    *pixel.Image
}

// FrameHandler consumes frames. Returning an error drops the connection it came from.
// Handlers for different connections run concurrently.
type FrameHandler func(f *Frame) error

// Sink accepts source connections and runs a Server on each one.
//
//	Accept conn → handleConn (one goroutine per source)
//	  → NewServer (handshake) → RecvImage loop → FrameHandler
type Sink struct {
	width   uint32
	height  uint32
	handler FrameHandler
	opts    []transport.Option
	logger  zerolog.Logger

	listener net.Listener
	mu       sync.Mutex
	conns    map[net.Conn]struct{} // open source connections, closed on Shutdown
	wg       sync.WaitGroup        // one per running handleConn
	shutdown atomic.Bool           // set before closing the listener so Serve returns nil

	registry      registry.Registry
	stream        string
	advertiseAddr string // routable address put in the registry (":8080" is not)
	weight        int
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithRegistry publishes the sink under stream while it is serving.
func WithRegistry(reg registry.Registry, stream, advertiseAddr string, weight int) SinkOption {
	return func(s *Sink) {
		s.registry = reg
		s.stream = stream
		s.advertiseAddr = advertiseAddr
		s.weight = weight
	}
}

// WithMessengerOptions passes options to every connection's Messenger.
func WithMessengerOptions(opts ...transport.Option) SinkOption {
	return func(s *Sink) { s.opts = append(s.opts, opts...) }
}

func WithSinkLogger(l zerolog.Logger) SinkOption {
	return func(s *Sink) { s.logger = l }
}

// NewSink creates a sink that advertises width×height to every source.
func NewSink(width, height uint32, handler FrameHandler, opts ...SinkOption) *Sink {
	s := &Sink{
		width:   width,
		height:  height,
		handler: handler,
		logger:  log.Logger,
		conns:   make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the listener. Serve calls it if it has not been called yet.
func (s *Sink) Listen(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Sink) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts sources until Shutdown. It returns nil after a Shutdown.
func (s *Sink) Serve(network, address string) error {
	if s.Addr() == nil {
		if err := s.Listen(network, address); err != nil {
			return err
		}
	}
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if s.registry != nil {
		err := s.registry.Register(s.stream, registry.SinkInstance{
			Addr:   s.advertiseAddr,
			Width:  s.width,
			Height: s.height,
			Weight: s.weight,
		}, 10) // TTL = 10 seconds, renewed by KeepAlive
		if err != nil {
			return fmt.Errorf("register sink: %w", err)
		}
	}

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Uint32("width", s.width).
		Uint32("height", s.height).
		Msg("sink listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.track(conn, true)
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Sink) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// handleConn owns conn for its whole life: handshake, then frames until an error.
func (s *Sink) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	logger := s.logger.With().Str("remote", remote).Logger()

	srv, err := NewServer(conn, s.width, s.height, s.opts...)
	if err != nil {
		logger.Warn().Err(err).Msg("handshake failed")
		return
	}
	logger.Debug().Int("bytes", srv.HandshakeBytes()).Msg("handshake sent")

	var seq uint64
	for {
		img, err := srv.RecvImage()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrDisconnected):
				logger.Info().Uint64("frames", seq).Msg("source disconnected")
			case s.shutdown.Load():
				logger.Debug().Err(err).Msg("connection closed by shutdown")
			default:
				logger.Warn().Err(err).Uint64("frames", seq).Msg("dropping source")
			}
			return
		}
		seq++

		if err := s.handler(&Frame{Remote: remote, Seq: seq, Received: time.Now(), Image: img}); err != nil {
			logger.Warn().Err(err).Uint64("frame", seq).Msg("frame handler failed, dropping source")
			return
		}
	}
}

// Shutdown stops the sink:
//  1. Deregister from the registry so sources stop picking it
//  2. Set the shutdown flag and close the listener
//  3. Close every open source connection, unblocking their RecvImage
//  4. Wait for the connection goroutines, up to timeout
func (s *Sink) Shutdown(timeout time.Duration) error {
	if s.registry != nil {
		if err := s.registry.Deregister(s.stream, s.advertiseAddr); err != nil {
			s.logger.Warn().Err(err).Msg("deregister failed")
		}
	}

	s.shutdown.Store(true)
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for source connections to close")
	}
}
