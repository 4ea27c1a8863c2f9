// Command gateway runs the RTSP->FLV remuxing gateway (spec §1, §6):
// it binds an HTTP front door, accepts "GET /<rtsp-url> HTTP/1.x"
// requests from viewers, and relays each requested camera's H.264/AAC
// stream to every attached viewer as FLV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-khomutov/debug-cdn/internal/config"
	"github.com/m-khomutov/debug-cdn/pkg/gateway"
	"github.com/m-khomutov/debug-cdn/pkg/logger"
)

func main() {
	fs := flag.NewFlagSet("gateway", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", os.Args[0])
		fs.PrintDefaults()
	}

	cfg, err := config.Parse(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.NewConfig()
	logCfg.Level = cfg.LogLevel
	log := logger.New(logCfg)

	log.Info().Int("port", cfg.Port).Str("loglevel", string(cfg.LogLevel)).Msg("starting gateway")

	registry := gateway.NewRegistry(log)

	if cfg.URL != "" {
		if _, err := registry.GetOrCreate(cfg.URL); err != nil {
			log.Error().Err(err).Str("url", cfg.URL).Msg("failed to connect startup source")
		}
	}

	server := &gateway.Server{
		Port:     cfg.Port,
		Registry: registry,
		Logger:   log,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			_ = server.Close()
			cancel()
			return
		case err := <-serveErr:
			log.Error().Err(err).Msg("gateway accept loop exited")
			cancel()
			return
		case <-statsTicker.C:
			log.Info().Int("sources", registry.Count()).Msg("gateway statistics")
		case <-ctx.Done():
			return
		}
	}
}
