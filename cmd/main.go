package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"vidar/internal/api"
	"vidar/internal/config"
	"vidar/internal/engine"
	"vidar/internal/marketdata"
	"vidar/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg := config.Load()
	collector := metrics.New()

	// Wire the matching engine to its outer surfaces. The hub is the
	// engine's reporter: trades and book updates flow out through it.
	eng := engine.New(collector)
	hub := marketdata.NewHub(cfg, eng, collector)
	eng.SetReporter(hub)
	rest := api.New(cfg, eng)

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return rest.Run(ctx)
	})
	t.Go(func() error {
		return hub.Run(ctx)
	})
	t.Go(func() error {
		return serveMetrics(ctx, cfg, collector)
	})

	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("ws", cfg.WSAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("vidar running")

	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("exited with error")
	}
}

func serveMetrics(ctx context.Context, cfg config.Config, collector *metrics.Collector) error {
	router := http.NewServeMux()
	router.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: router}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
