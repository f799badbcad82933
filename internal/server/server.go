// Package server exposes the approval workflow and retraining over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/retrain"
	"github.com/Veraticus/artmap/internal/service"
	"github.com/Veraticus/artmap/internal/workflow"
)

// Workflow is the operator workflow the routes drive.
type Workflow interface {
	Next(ctx context.Context) (model.PendingMapping, error)
	Predict(ctx context.Context, description string) (model.Prediction, error)
	Commit(ctx context.Context, description, articleNumber string) (workflow.Decision, error)
	Override(ctx context.Context, description, articleNumber string) (workflow.Decision, error)
	Reject(ctx context.Context, description string) (int, error)
	Release(ctx context.Context, id int64) error
	Stats() service.ReviewStats
}

// Retrainer starts a retraining run.
type Retrainer interface {
	Run(ctx context.Context) (retrain.Report, error)
	LastReport() (retrain.Report, bool)
}

// Counter reports store sizes for /stats.
type Counter interface {
	CountMappings(ctx context.Context) (int, error)
	CountUnmapped(ctx context.Context) (int, error)
}

// Server wires the routes to their collaborators.
type Server struct {
	echo      *echo.Echo
	workflow  Workflow
	retrainer Retrainer
	counter   Counter
	logger    *slog.Logger
}

// New builds the echo instance with every route registered.
func New(wf Workflow, retrainer Retrainer, counter Counter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		workflow:  wf,
		retrainer: retrainer,
		counter:   counter,
		logger:    logger,
	}

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code >= http.StatusInternalServerError {
			logger.Error("Request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		}
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	e.GET("/next", s.handleNext)
	e.POST("/predict", s.handlePredict)
	e.POST("/approve", s.handleApprove)
	e.POST("/reject", s.handleReject)
	e.POST("/new_mapping", s.handleNewMapping)
	e.POST("/release", s.handleRelease)
	e.POST("/retrain", s.handleRetrain)
	e.GET("/stats", s.handleStats)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	return s.serve(ctx, func() error {
		s.logger.Info("HTTP server listening", "addr", addr)
		return s.echo.Start(addr)
	})
}

// RunTLS is Run over HTTPS with cert.
func (s *Server) RunTLS(ctx context.Context, addr string, cert tls.Certificate) error {
	return s.serve(ctx, func() error {
		srv := s.echo.TLSServer
		srv.Addr = addr
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		s.logger.Info("HTTPS server listening", "addr", addr)
		return s.echo.StartServer(srv)
	})
}

func (s *Server) serve(ctx context.Context, start func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		begin := time.Now()
		err := next(c)
		s.logger.Debug("Handled request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"duration", time.Since(begin))
		return err
	}
}
