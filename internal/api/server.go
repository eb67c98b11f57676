package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"vidar/internal/config"
	"vidar/internal/engine"
)

// Server is the REST submission and query surface. It owns no state
// beyond the engine reference; every request is delegated.
type Server struct {
	cfg    config.Config
	engine *engine.Engine
	router *mux.Router
}

func New(cfg config.Config, eng *engine.Engine) *Server {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/order", s.handleSubmitOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/orderbook/{symbol}", s.handleOrderBook).Methods(http.MethodGet)
	s.router.HandleFunc("/trades/{symbol}", s.handleTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.cfg.HTTPAddr).Msg("rest api running")
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("rest api shutdown")
		}
		return nil
	case err := <-errc:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
