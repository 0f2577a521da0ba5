package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/rockrelay/internal/config"
	"github.com/luciancaetano/rockrelay/internal/logging"
	"github.com/luciancaetano/rockrelay/internal/protocol"
	"github.com/luciancaetano/rockrelay/internal/relay"
	"github.com/luciancaetano/rockrelay/ws"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		boot := logging.New(logging.Options{})
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("relay stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	rateLimit := ws.NoRateLimit()
	if cfg.RateLimitEnabled {
		rateLimit = ws.RateLimit(cfg.RateLimit, cfg.RateBurst)
	}

	rooms := relay.NewManager(codec, cfg.Seed, log)
	defer rooms.Close()

	serverCfg := ws.NewConfig(cfg.Addr, rateLimit, ws.AllOrigins(), rooms.OnConnect, rooms.OnDisconnect)
	serverCfg = ws.WithLogger(ws.WithStaticDir(serverCfg, cfg.StaticDir), log)
	server := ws.New(serverCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rooms.Bind(ctx, server); err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	log.Info().
		Str("addr", cfg.Addr).
		Str("codec", codec.Name()).
		Str("static", cfg.StaticDir).
		Bool("rate_limit", cfg.RateLimitEnabled).
		Msg("relay started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(stopCtx)
}
