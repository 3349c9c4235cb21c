package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nimproxy/internal/catalog"
	"nimproxy/internal/config"
	"nimproxy/internal/core"
	"nimproxy/internal/metrics"
	"nimproxy/internal/process"

	"github.com/gin-gonic/gin"
)

// Server application server
type Server struct {
	port    string
	ginMode string

	httpClient *http.Client
	router     *gin.Engine

	metricsService   *metrics.MetricsService
	catalog          *catalog.Catalog
	requestProcessor *process.RequestProcessor

	config config.ServerConfig
	now    func() time.Time

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required in ServerConfig")
	}
	if cfg.NIMAPIKey == "" {
		return nil, config.ErrMissingAPIKey
	}
	if cfg.NIMBaseURL == "" {
		cfg.NIMBaseURL = core.NIMDefaultBaseURL
	}
	if cfg.Port == "" {
		cfg.Port = core.DefaultPort
	}
	if cfg.GinMode == "" {
		cfg.GinMode = core.DefaultGinMode
	}
	if cfg.CORSAllowOrigin == "" {
		cfg.CORSAllowOrigin = core.DefaultCORSOrigin
	}

	if cfg.Models == nil {
		models, err := config.LoadModelMapping(cfg.ModelsConfigPath, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load models config: %w", err)
		}
		cfg.Models = models
	}

	cfg.Logger.Info("Initializing proxy with %d models, backend %s", cfg.Models.Len(), cfg.NIMBaseURL)

	httpClient := createOptimizedHTTPClient(cfg.HTTPClientSettings)

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		HistorySize: core.HistoryBufferSize,
		Models:      cfg.Models,
		Logger:      cfg.Logger,
	})

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	server := &Server{
		port:           cfg.Port,
		ginMode:        cfg.GinMode,
		httpClient:     httpClient,
		metricsService: metricsService,
		catalog:        catalog.New(cfg.Models),
		requestProcessor: process.NewRequestProcessor(process.ProcessorConfig{
			BaseURL:    cfg.NIMBaseURL,
			APIKey:     cfg.NIMAPIKey,
			Models:     cfg.Models,
			HTTPClient: httpClient,
			Metrics:    metricsService,
			Logger:     cfg.Logger,
		}),
		config:         cfg,
		now:            time.Now,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	server.setupRoutes()

	return server, nil
}

// createOptimizedHTTPClient builds the pooled backend client. No response
// header timeout is set because reasoning models may think for minutes
// before the first byte.
func createOptimizedHTTPClient(settings config.HTTPClientSettings) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          settings.MaxIdleConns,
		MaxIdleConnsPerHost:   settings.MaxIdleConnsPerHost,
		MaxConnsPerHost:       settings.MaxConnsPerHost,
		IdleConnTimeout:       settings.IdleConnTimeout,
		TLSHandshakeTimeout:   settings.TLSHandshakeTimeout,
		ExpectContinueTimeout: core.HTTPExpectContinueTimeout,
		DisableKeepAlives:     false,
		ForceAttemptHTTP2:     true,
		DisableCompression:    false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   settings.RequestTimeout,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run runs the server until a shutdown signal arrives.
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	// No WriteTimeout: streamed completions can run far longer than any fixed bound.
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: core.ServerReadHeaderTimeout,
		ReadTimeout:       core.ServerReadTimeout,
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), core.ServerShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.config.Logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.config.Logger.Info("%s running on port %s", core.ServiceName, s.port)
	s.config.Logger.Info("Health check: http://localhost:%s/health", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-quit:
			s.config.Logger.Info("Shutdown signal received, shutting down gracefully...")
			s.shutdownCancel()
		case <-s.shutdownCtx.Done():
		}
		signal.Stop(quit)
	}()
}

// Close closes the server
func (s *Server) Close() error {
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}

	var closeErr error

	if s.metricsService != nil {
		if err := s.metricsService.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close metrics service: %w", err))
		}
	}

	if s.httpClient != nil {
		s.httpClient.CloseIdleConnections()
	}

	return closeErr
}
