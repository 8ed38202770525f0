package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pixelpipe/client"
	"pixelpipe/config"
	"pixelpipe/loadbalance"
	"pixelpipe/logging"
	"pixelpipe/middleware"
	"pixelpipe/pixel"
	"pixelpipe/registry"
	"pixelpipe/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	sinkAddr := flag.String("sink", "", "sink address, overrides the config file")
	count := flag.Int("count", 0, "frames to send before exiting, 0 for no limit")
	flag.Parse()

	logger := logging.ConfigureRuntime("pixelsource")

	cfg := config.DefaultSourceConfig()
	if *configPath != "" {
		loaded, err := config.LoadSourceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pixelsource: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *sinkAddr != "" {
		cfg.SinkAddr = *sinkAddr
		cfg.Stream = ""
	}
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok && os.Getenv(logging.EnvLogLevel) == "" {
		logger = logger.Level(lvl)
		log.Logger = logger
		zerolog.SetGlobalLevel(lvl)
	}

	opts := []transport.Option{
		transport.WithLimits(cfg.Limits()),
		transport.WithLogger(logger),
	}

	cli, err := connect(cfg, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer cli.Close()

	width, height := cli.Dimensions()
	logger.Info().Uint32("width", width).Uint32("height", height).Msg("handshake complete")

	cli.Use(middleware.LoggingMiddleware(logger))
	if cfg.FPS > 0 {
		if cfg.Drop {
			cli.Use(middleware.DropMiddleware(cfg.FPS, cfg.Burst))
		} else {
			cli.Use(middleware.RateLimitMiddleware(cfg.FPS, cfg.Burst))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sent int
	for tick := uint32(0); *count == 0 || sent < *count; tick++ {
		img := testPattern(width, height, tick)
		_, err := cli.SendImageContext(ctx, img)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, middleware.ErrFrameDropped):
		case ctx.Err() != nil:
			logger.Info().Int("frames", sent).Msg("interrupted")
			return
		default:
			log.Fatal().Err(err).Int("frames", sent).Msg("send frame")
		}
	}
	logger.Info().Int("frames", sent).Msg("done")
}

func connect(cfg config.SourceConfig, opts []transport.Option) (*client.Client, error) {
	if !cfg.UsesRegistry() {
		return client.Dial(cfg.SinkAddr, opts...)
	}

	reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints)
	if err != nil {
		return nil, err
	}
	// The registry is only needed to find the sink
	defer reg.Close()

	return client.Discover(reg, loadbalance.New(cfg.Balancer), cfg.Stream, cfg.SourceID, opts...)
}

// testPattern draws a diagonal gradient that scrolls one pixel per tick.
func testPattern(width, height, tick uint32) *pixel.Image {
	return pixel.FromFunc(width, height, func(x, y uint32) color.RGBA {
		u := uint8(x + tick)
		v := uint8(y + tick)
		return color.RGBA{R: u, G: v, B: u ^ v, A: 0xff}
	})
}
