package api

import (
	"cycle-nav-service/internal/api/handlers"
	"cycle-nav-service/internal/ports"
	"cycle-nav-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP layer needs. Tags may be nil,
// in which case the tag distribution endpoint is not registered.
type Dependencies struct {
	Routes   ports.RouteProvider
	Tags     ports.NodeSegmenter
	Sessions *services.SessionStore
	Sources  ports.PositionSourceFactory
	Log      *zap.Logger
}

// NewRouter wires HTTP handlers with their dependencies.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(requestIDMiddleware(), loggingMiddleware(d.Log), recoveryMiddleware(d.Log))

	r.GET("/health", handlers.Health)

	v1 := r.Group("/api/v1")

	routeHandler := &handlers.RouteHandler{Routes: d.Routes, Tags: d.Tags, Log: d.Log}
	routeHandler.RegisterRoutes(v1)

	sessionHandler := &handlers.SessionHandler{Store: d.Sessions, Sources: d.Sources, Log: d.Log}
	sessionHandler.RegisterRoutes(v1)

	return r
}
