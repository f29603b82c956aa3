// Command tacd is the device-side daemon: it wires up the topic bus,
// hardware adapters, the DUT power supervisor, the UI arbiter, and the
// external collaborators, then serves the REST/WS/SSE surface until
// signalled to stop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linux-automation/tacd/internal/api"
	"github.com/linux-automation/tacd/internal/config"
	"github.com/linux-automation/tacd/internal/logging"
	"github.com/linux-automation/tacd/internal/wireup"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		// logging isn't initialized yet; this is the one place a raw
		// stderr write is appropriate.
		os.Stderr.WriteString("tacd: config: " + err.Error() + "\n")
		return 1
	}
	logging.Init(cfg.LogLevel)

	sys, err := wireup.Build(cfg, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("wire-up failed")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sys.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(sys.Broker, sys.SetupMode, sys.Journal, sys.Display, log.Logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("serving REST/WS/SSE surface")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown did not complete cleanly")
	}

	return 0
}
