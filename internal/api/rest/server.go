package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/api/websocket"
	"github.com/dialerops/callgate-backend/internal/infrastructure/config"
)

// Server is the engine's HTTP surface: the gate endpoints, the health
// probe, metrics, and the websocket event feed.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

func NewServer(cfg config.ServerConfig, handler *Handler, health *HealthHandler, feed *websocket.Feed, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/gate/evaluate", handler.Evaluate)
	mux.HandleFunc("POST /api/v1/gate/commit", handler.Commit)
	mux.HandleFunc("POST /api/v1/gate/release", handler.Release)
	mux.Handle("GET /healthz", health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/events", feed.HandleEvents)

	root := chain(mux,
		recovery(logger),
		requestLogging(logger),
		requestMetrics(),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
