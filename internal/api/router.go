package api

import (
	"expiry-monitor/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with logging and recovery
func NewRouter(mode string, handler *Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Logger(logger), gin.Recovery())
	SetupRoutes(r, handler, gatherer)
	return r
}
