// Package api serves the run-statistics HTTP surface.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/embassy-watch/embassy-eye/api/handler"
	"github.com/embassy-watch/embassy-eye/api/middleware"
	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/store"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     RateLimit
//
// Health endpoint is intentionally outside the rate limit so monitoring
// probes always work.
func NewRouter(st *store.Store, cfg *config.Config, version string, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(version, startTime))

	limited := v1.Group("")
	limited.Use(middleware.RateLimit(cfg.RateLimit))

	limited.GET("/runs", handler.Runs(st))
	limited.GET("/blocked-ips", handler.BlockedIPs(st))
	limited.GET("/summary", handler.Summary(st))

	return r
}
