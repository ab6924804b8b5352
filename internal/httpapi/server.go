// Package httpapi serves the session store over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexanderramin/tempo/internal/contract"
	"github.com/alexanderramin/tempo/internal/service"
	"github.com/gin-gonic/gin"
)

// Server is the reference session store server.
type Server struct {
	store  service.SessionStoreService
	router *gin.Engine
	logger *slog.Logger
}

func NewServer(store service.SessionStoreService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{store: store, router: router, logger: logger}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/owners", s.handleListOwners)
		api.POST("/owners", s.handleCreateOwner)
		api.GET("/owners/:kind/:id", s.handleGetOwner)
		api.DELETE("/owners/:kind/:id", s.handleDeleteOwner)
		api.POST("/owners/:kind/:id/start", s.handleStart)
		api.POST("/owners/:kind/:id/pause", s.handlePause)
		api.POST("/tasks/:id/complete", s.handleComplete)
	}
	router.POST(contract.BeaconPausePath, s.handleBeaconPause)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("session store listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
