package client

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"pixelpipe/loadbalance"
	"pixelpipe/registry"
	"pixelpipe/transport"
)

// DialTimeout bounds connection establishment only; frames have no timeout.
var DialTimeout = 5 * time.Second

// Dial connects to a sink over TCP and completes the handshake.
// The connection is closed if the handshake fails.
func Dial(addr string, opts ...transport.Option) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, err
	}

	c, err := NewClient(conn, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Discover looks up the sinks registered for stream, lets bal pick one for the source
// identified by key, and dials it.
func Discover(reg registry.Registry, bal loadbalance.Balancer, stream, key string, opts ...transport.Option) (*Client, error) {
	instances, err := reg.Discover(stream)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", stream, err)
	}

	instance, err := bal.Pick(key, instances)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", stream, err)
	}

	c, err := Dial(instance.Addr, opts...)
	if err != nil {
		return nil, err
	}

	// The handshake is authoritative; a stale registry entry is only worth a warning
	width, height := c.Dimensions()
	if width != instance.Width || height != instance.Height {
		log.Warn().
			Str("addr", instance.Addr).
			Uint32("registered_width", instance.Width).
			Uint32("registered_height", instance.Height).
			Uint32("width", width).
			Uint32("height", height).
			Msg("sink dimensions differ from registry entry")
	}

	log.Info().
		Str("stream", stream).
		Str("addr", instance.Addr).
		Str("balancer", bal.Name()).
		Msg("connected to sink")
	return c, nil
}
