// Command zkauthd serves the Chaum-Pedersen proof protocol over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/zkauth/chaum-pedersen/internal/params"
	"github.com/zkauth/chaum-pedersen/internal/server"
	"github.com/zkauth/chaum-pedersen/pkg/pool"
	"github.com/zkauth/chaum-pedersen/pkg/session"
)

func main() {
	addr := flag.String("addr", ":8321", "listen address")
	ttl := flag.Duration("session-ttl", params.SessionTTL, "drop unfinished sessions after this long")
	retainFailed := flag.Bool("retain-failed", false, "keep failed sessions in the table instead of purging")
	workers := flag.Int("workers", 0, "prime search workers (0 = number of CPUs)")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()

	pl := pool.NewPool(*workers)
	defer pl.TearDown()

	coord := session.NewCoordinator(
		session.WithPool(pl),
		session.WithLogger(log),
		session.WithRetainFailed(*retainFailed),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	server.New(coord, log).Register(e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(*ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				coord.PurgeExpired(*ttl)
			}
		}
	}()

	go func() {
		if err := e.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Str("addr", *addr).Msg("listening")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
