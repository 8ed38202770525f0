package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pixelpipe/config"
	"pixelpipe/logging"
	"pixelpipe/registry"
	"pixelpipe/server"
	"pixelpipe/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	addr := flag.String("addr", "", "listen address, overrides the config file")
	flag.Parse()

	logger := logging.ConfigureRuntime("pixelsink")

	cfg := config.DefaultSinkConfig()
	if *configPath != "" {
		loaded, err := config.LoadSinkConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pixelsink: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok && os.Getenv(logging.EnvLogLevel) == "" {
		logger = logger.Level(lvl)
		log.Logger = logger
		zerolog.SetGlobalLevel(lvl)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Uint32("width", cfg.Width).
		Uint32("height", cfg.Height).
		Str("stream", cfg.Stream).
		Msg("pixelsink starting")

	opts := []server.SinkOption{
		server.WithSinkLogger(logger),
		server.WithMessengerOptions(
			transport.WithLimits(cfg.Limits()),
			transport.WithLogger(logger),
		),
	}

	if cfg.UsesRegistry() {
		reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints)
		if err != nil {
			log.Fatal().Err(err).Strs("endpoints", cfg.EtcdEndpoints).Msg("etcd connect")
		}
		defer reg.Close()
		opts = append(opts, server.WithRegistry(reg, cfg.Stream, cfg.AdvertiseAddr, cfg.Weight))
	}

	stats := &frameStats{snapshotPath: cfg.SnapshotPath, snapshotEvery: cfg.SnapshotEvery, started: time.Now()}
	sink := server.NewSink(cfg.Width, cfg.Height, stats.handle, opts...)

	served := make(chan error, 1)
	go func() { served <- sink.Serve("tcp", cfg.Addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-served:
		log.Fatal().Err(err).Msg("serve")
	}

	logger.Info().Uint64("frames", stats.frames.Load()).Msg("shutting down")
	if err := sink.Shutdown(5 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("shutdown")
	}
	<-served
}

// frameStats counts frames across all sources and writes periodic PNG snapshots.
type frameStats struct {
	frames        atomic.Uint64
	bytes         atomic.Uint64
	started       time.Time
	snapshotPath  string
	snapshotEvery uint64
}

func (s *frameStats) handle(f *server.Frame) error {
	n := s.frames.Add(1)
	s.bytes.Add(uint64(f.Image.Len()))

	if n%100 == 0 {
		elapsed := time.Since(s.started).Seconds()
		log.Info().
			Uint64("frames", n).
			Float64("fps", float64(n)/elapsed).
			Float64("mib_per_sec", float64(s.bytes.Load())/elapsed/(1<<20)).
			Msg("throughput")
	}

	if s.snapshotPath != "" && s.snapshotEvery > 0 && f.Seq%s.snapshotEvery == 0 {
		if err := writeSnapshot(s.snapshotPath, f); err != nil {
			// A failed snapshot is not the source's fault; keep the connection
			log.Warn().Err(err).Str("path", s.snapshotPath).Msg("snapshot failed")
		}
	}
	return nil
}

// writeSnapshot writes through a temp file so readers never see a partial PNG.
func writeSnapshot(path string, f *server.Frame) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, f.Image.ToRGBA()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
