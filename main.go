// main.go
//
// Entry point for the connections binary.
// Responsibilities:
//   - Load .env, parse flags/env (config.go), set up zerolog.
//   - serve: HTTP + WebSocket API with an idle-session reaper and graceful shutdown.
//   - play: a single session in the terminal.

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/connections/internal/daily"
	"github.com/robalobadob/connections/internal/game"
	"github.com/robalobadob/connections/internal/httpserver"
	"github.com/robalobadob/connections/internal/store"
	"github.com/robalobadob/connections/internal/tui"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(ctx))
}

// setupLogging sets the global level and, on a terminal, switches to the
// human-readable console writer.
func setupLogging(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func sessionOptions(cfg *Config) []game.Option {
	return []game.Option{
		game.WithRevealDelay(cfg.revealDelay),
		game.WithNoticeTTL(cfg.noticeTTL),
	}
}

func runServe(ctx context.Context, cfg *Config) error {
	setupLogging(cfg.logLevel)

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	// Fail fast on a broken dataset instead of on the first request.
	if _, err := src.Load(ctx); err != nil {
		return err
	}

	mem := store.NewMemoryStore()
	go store.RunReaper(ctx, mem, time.Minute, cfg.sessionTimeout)

	api := httpserver.New(httpserver.Options{
		Store:          mem,
		Source:         src,
		Secret:         cfg.jwtSecret,
		ClientOrigin:   cfg.clientOrigin,
		TokenTTL:       cfg.sessionTimeout,
		DailySalt:      cfg.dailySalt,
		SessionOptions: sessionOptions(cfg),
	})

	srv := &http.Server{
		Addr:              cfg.addr(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", releaseVersion).Msg("starting connections server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runPlay(ctx context.Context, cfg *Config, in io.Reader, out io.Writer) error {
	level := "warn"
	if cfg.verbose {
		level = cfg.logLevel
	}
	setupLogging(level)

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	opts := sessionOptions(cfg)
	if cfg.daily {
		now := time.Now()
		opts = append(opts, game.WithRand(daily.Rand(now, cfg.dailySalt)))
		log.Info().Str("date", daily.DateKey(now)).Msg("puzzle of the day")
	}

	sess := game.New(src, opts...)
	defer sess.Close()
	if err := sess.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("could not start puzzle")
	}

	return tui.New(sess, in, out).Run(ctx)
}
