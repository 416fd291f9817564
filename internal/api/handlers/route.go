package handlers

import (
	"cycle-nav-service/internal/api/dto"
	"cycle-nav-service/internal/ports"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteHandler exposes one-off route and tag distribution lookups that are
// not bound to a session.
type RouteHandler struct {
	Routes ports.RouteProvider
	Tags   ports.NodeSegmenter
	Log    *zap.Logger
}

func (h *RouteHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/route", h.GetRoute)
	if h.Tags != nil {
		r.POST("/tag-distribution", h.TagDistribution)
	}
}

// GetRoute handles GET /route?start_lat&start_lon&target_lat&target_lon.
func (h *RouteHandler) GetRoute(c *gin.Context) {
	var q dto.RouteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	start, end := q.Endpoints()
	route, err := h.Routes.GetRoute(c.Request.Context(), start, end)
	if err != nil {
		writeDomainError(c, h.Log, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRouteResponse(route))
}

// TagDistribution handles POST /tag-distribution for a bare node list.
func (h *RouteHandler) TagDistribution(c *gin.Context) {
	dims, ok := parseDimensions(c)
	if !ok {
		return
	}

	var req dto.TagDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	segs, err := h.Tags.SegmentsForNodes(c.Request.Context(), req.NodeIDs)
	if err != nil {
		writeDomainError(c, h.Log, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSegmentsResponse(segs, dims, c.Query("highlight")))
}
