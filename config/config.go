// Package config loads the TOML files read by pixelsink and pixelsource.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"pixelpipe/protocol"
)

// SinkConfig is the pixelsink configuration.
type SinkConfig struct {
	Addr          string
	Width         uint32
	Height        uint32
	MaxFrameBytes uint64
	Stream        string
	AdvertiseAddr string
	EtcdEndpoints []string
	Weight        int
	SnapshotPath  string
	SnapshotEvery uint64
	LogLevel      string
}

// SourceConfig is the pixelsource configuration.
type SourceConfig struct {
	SinkAddr      string
	Stream        string
	EtcdEndpoints []string
	Balancer      string
	SourceID      string
	FPS           float64
	Burst         int
	Drop          bool
	MaxFrameBytes uint64
	LogLevel      string
}

type sinkFile struct {
	Addr          string   `toml:"addr"`
	Width         uint32   `toml:"width"`
	Height        uint32   `toml:"height"`
	MaxFrameBytes uint64   `toml:"max_frame_bytes"`
	Stream        string   `toml:"stream"`
	AdvertiseAddr string   `toml:"advertise_addr"`
	EtcdEndpoints []string `toml:"etcd_endpoints"`
	Weight        int      `toml:"weight"`
	SnapshotPath  string   `toml:"snapshot_path"`
	SnapshotEvery uint64   `toml:"snapshot_every"`
	LogLevel      string   `toml:"log_level"`
}

type sourceFile struct {
	SinkAddr      string   `toml:"sink_addr"`
	Stream        string   `toml:"stream"`
	EtcdEndpoints []string `toml:"etcd_endpoints"`
	Balancer      string   `toml:"balancer"`
	SourceID      string   `toml:"source_id"`
	FPS           float64  `toml:"fps"`
	Burst         int      `toml:"burst"`
	Drop          bool     `toml:"drop"`
	MaxFrameBytes uint64   `toml:"max_frame_bytes"`
	LogLevel      string   `toml:"log_level"`
}

func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		Addr:          ":7878",
		Width:         64,
		Height:        32,
		MaxFrameBytes: protocol.DefaultLimits().MaxFrameBytes,
		Weight:        1,
		SnapshotEvery: 100,
		LogLevel:      "info",
	}
}

func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		SinkAddr:      "127.0.0.1:7878",
		Balancer:      "round_robin",
		SourceID:      "pixelsource",
		FPS:           30,
		Burst:         1,
		MaxFrameBytes: protocol.DefaultLimits().MaxFrameBytes,
		LogLevel:      "info",
	}
}

// Limits returns the frame limits for the sink's Messengers.
func (c SinkConfig) Limits() protocol.Limits {
	return protocol.Limits{MaxFrameBytes: c.MaxFrameBytes}
}

func (c SourceConfig) Limits() protocol.Limits {
	return protocol.Limits{MaxFrameBytes: c.MaxFrameBytes}
}

// UsesRegistry reports whether the sink should publish itself to etcd.
func (c SinkConfig) UsesRegistry() bool {
	return c.Stream != "" && len(c.EtcdEndpoints) > 0
}

// UsesRegistry reports whether the source should discover its sink through etcd
// instead of dialing SinkAddr.
func (c SourceConfig) UsesRegistry() bool {
	return c.Stream != "" && len(c.EtcdEndpoints) > 0
}

func (c SinkConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("dimensions must be non-zero, got %dx%d", c.Width, c.Height)
	}
	if c.MaxFrameBytes > 0 {
		// Tag plus buffer length plus pixels must fit in one frame
		need := uint64(c.Width) * uint64(c.Height) * 3
		if need+12 > c.MaxFrameBytes {
			return fmt.Errorf("max_frame_bytes %d cannot carry a %dx%d frame", c.MaxFrameBytes, c.Width, c.Height)
		}
	}
	if c.Stream != "" && len(c.EtcdEndpoints) > 0 && c.AdvertiseAddr == "" {
		return errors.New("advertise_addr is required when registering with etcd")
	}
	if c.Weight < 0 {
		return fmt.Errorf("weight must be >= 0, got %d", c.Weight)
	}
	return nil
}

func (c SourceConfig) Validate() error {
	if !c.UsesRegistry() && strings.TrimSpace(c.SinkAddr) == "" {
		return errors.New("either sink_addr or stream with etcd_endpoints is required")
	}
	if c.FPS < 0 {
		return fmt.Errorf("fps must be >= 0, got %v", c.FPS)
	}
	if c.FPS > 0 && c.Burst < 1 {
		return fmt.Errorf("burst must be >= 1, got %d", c.Burst)
	}
	switch c.Balancer {
	case "round_robin", "weighted", "weighted_random", "hash", "consistent_hash":
	default:
		return fmt.Errorf("unknown balancer %q", c.Balancer)
	}
	return nil
}

// LoadSinkConfig reads path over DefaultSinkConfig. Keys absent from the file keep their defaults.
func LoadSinkConfig(path string) (SinkConfig, error) {
	cfg := DefaultSinkConfig()

	var raw sinkFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return SinkConfig{}, fmt.Errorf("load sink config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return SinkConfig{}, fmt.Errorf("load sink config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("width") {
		cfg.Width = raw.Width
	}
	if meta.IsDefined("height") {
		cfg.Height = raw.Height
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("stream") {
		cfg.Stream = strings.TrimSpace(raw.Stream)
	}
	if meta.IsDefined("advertise_addr") {
		cfg.AdvertiseAddr = strings.TrimSpace(raw.AdvertiseAddr)
	}
	if meta.IsDefined("etcd_endpoints") {
		cfg.EtcdEndpoints = normalizeEndpoints(raw.EtcdEndpoints)
	}
	if meta.IsDefined("weight") {
		cfg.Weight = raw.Weight
	}
	if meta.IsDefined("snapshot_path") {
		cfg.SnapshotPath = strings.TrimSpace(raw.SnapshotPath)
	}
	if meta.IsDefined("snapshot_every") {
		cfg.SnapshotEvery = raw.SnapshotEvery
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return SinkConfig{}, fmt.Errorf("invalid sink config: %w", err)
	}
	return cfg, nil
}

func LoadSourceConfig(path string) (SourceConfig, error) {
	cfg := DefaultSourceConfig()

	var raw sourceFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return SourceConfig{}, fmt.Errorf("load source config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return SourceConfig{}, fmt.Errorf("load source config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("sink_addr") {
		cfg.SinkAddr = strings.TrimSpace(raw.SinkAddr)
	}
	if meta.IsDefined("stream") {
		cfg.Stream = strings.TrimSpace(raw.Stream)
	}
	if meta.IsDefined("etcd_endpoints") {
		cfg.EtcdEndpoints = normalizeEndpoints(raw.EtcdEndpoints)
	}
	if meta.IsDefined("balancer") {
		cfg.Balancer = strings.ToLower(strings.TrimSpace(raw.Balancer))
	}
	if meta.IsDefined("source_id") {
		cfg.SourceID = strings.TrimSpace(raw.SourceID)
	}
	if meta.IsDefined("fps") {
		cfg.FPS = raw.FPS
	}
	if meta.IsDefined("burst") {
		cfg.Burst = raw.Burst
	}
	if meta.IsDefined("drop") {
		cfg.Drop = raw.Drop
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return SourceConfig{}, fmt.Errorf("invalid source config: %w", err)
	}
	return cfg, nil
}

func normalizeEndpoints(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, ep := range in {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			continue
		}
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		out = append(out, ep)
	}
	return out
}
