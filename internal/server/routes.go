package server

import (
	logpkg "nimproxy/internal/log"

	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.ginMode)
	s.router = gin.New()

	s.router.Use(logpkg.GinLogger(s.config.Logger))
	s.router.Use(logpkg.GinRecovery(s.config.Logger))
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.metricsService.Handler()))
	s.router.GET("/api/stats", s.getStatsData)

	api := s.router.Group("/v1")
	{
		api.GET("/models", s.listModels)
		api.POST("/chat/completions", s.chatCompletions)
	}

	// Wrong methods on known paths fall through to the 404 envelope as well.
	s.router.NoRoute(s.endpointNotFound)
}
