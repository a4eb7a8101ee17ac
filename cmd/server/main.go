package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"archive-sifter/internal/app"
	"archive-sifter/internal/config"
	"archive-sifter/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("SIFTER_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	l, err := logger.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("setup logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Fatal().Err(err).Msg("build components")
	}
	kw, err := a.Keywords(ctx)
	if err != nil {
		l.Fatal().Err(err).Msg("keyword source")
	}

	s := &server{
		classify: a.Pipeline(nil, kw, nil),
		keywords: kw,
		filter:   a.Filter,
		splitter: a.Splitter,
		workers:  cfg.Pipeline.Workers,
		timeout:  cfg.Fetch.Timeout + 5*time.Second,
		log:      logger.For("server"),
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      logRequest(s.log, s.routes()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	l.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	l.Info().Msg("bye")
}
