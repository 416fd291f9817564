package handlers

import (
	"cycle-nav-service/internal/api/dto"
	"cycle-nav-service/internal/ports"
	"cycle-nav-service/internal/services"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes navigation sessions: planning, rerouting, fixes,
// progress, segments and navigation control.
type SessionHandler struct {
	Store   *services.SessionStore
	Sources ports.PositionSourceFactory
	Log     *zap.Logger
}

func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.PUT("/:id/endpoints", h.UpdateEndpoints)
		sessions.POST("/:id/positions", h.PushPosition)
		sessions.GET("/:id/progress", h.Progress)
		sessions.GET("/:id/segments", h.Segments)
		sessions.POST("/:id/navigation/start", h.StartNavigation)
		sessions.POST("/:id/navigation/stop", h.StopNavigation)
		sessions.GET("/:id/camera", h.Camera)
	}
}

// session resolves the :id parameter, writing 404 when unknown.
func (h *SessionHandler) session(c *gin.Context) (*services.Navigator, bool) {
	n, err := h.Store.Get(c.Param("id"))
	if err != nil {
		writeDomainError(c, h.Log, err)
		return nil, false
	}
	return n, true
}

func sessionResponse(n *services.Navigator) dto.SessionResponse {
	st := n.Status()
	res := dto.SessionResponse{
		ID:         n.ID(),
		Navigating: st.Navigating,
		Following:  n.FollowRunning(),
		Generation: st.Generation,
	}
	if r := n.Route(); r != nil {
		rr := dto.NewRouteResponse(r)
		res.Route = &rr
	}
	if p, ok := n.Progress(); ok {
		pr := dto.NewProgressResponse(p)
		res.Progress = &pr
	}
	if st.PositionErr != nil {
		res.PositionError = st.PositionErr.Error()
	}
	if st.RerouteErr != nil {
		res.RerouteError = st.RerouteErr.Error()
	}
	return res
}

// Create handles POST /sessions. The route is planned before the session
// is registered.
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.EndpointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.Store.Create(c.Request.Context(), req.Start.Coordinates(), req.End.Coordinates())
	if err != nil {
		writeDomainError(c, h.Log, err)
		return
	}

	h.Log.Info("session created", zap.String("session_id", n.ID()))
	c.JSON(http.StatusCreated, sessionResponse(n))
}

func (h *SessionHandler) Get(c *gin.Context) {
	n, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(n))
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.Store.Delete(c.Param("id")); err != nil {
		writeDomainError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateEndpoints handles PUT /sessions/:id/endpoints. Rerouting happens in
// the background; edits arriving in quick succession collapse into one
// route request.
func (h *SessionHandler) UpdateEndpoints(c *gin.Context) {
	n, ok := h.session(c)
	if !ok {
		return
	}

	var req dto.EndpointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	n.Reroute(req.Start.Coordinates(), req.End.Coordinates())
	c.JSON(http.StatusAccepted, gin.H{"status": "rerouting"})
}

// PushPosition handles POST /sessions/:id/positions.
func (h *SessionHandler) PushPosition(c *gin.Context) {
	n, ok := h.session(c)
	if !ok {
		return
	}

	var req dto.PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := n.ApplyFix(req.Position())
	if err != nil {
		writeDomainError(c, h.Log, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewProgressResponse(state))
}

// Progress handles GET /sessions/:id/progress. 204 until the first fix.
func (h *SessionHandler) Progress(c *gin.Context) {
	n, ok := h.session(c)
	if !ok {
		return
	}

	state, ok := n.Progress()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, dto.NewProgressResponse(state))
}

// Segments handles GET /sessions/:id/segments?dimension=&highlight=.
// 202 while the current route's segments are still being resolved.
func (h *SessionHandler) Segments(c *gin.Context) {
	n, ok := h.session(c)
	if !ok {
		return
	}
	dims, ok := parseDimensions(c)
	if !ok {
		return
	}

	segs, ok, err := n.Segments()
	if err != nil {
		writeDomainError(c, h.Log, err)
		return
	}
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
		return
	}

	c.JSON(http.StatusOK, dto.NewSegmentsResponse(segs, dims, c.Query("highlight")))
}

// StartNavigation handles POST /sessions/:id/navigation/start. The body is
// optional; without it the configured position source is used.
func (h *SessionHandler) StartNavigation(c *gin.Context) {
	n, ok := h.session(c)
	if !ok {
		return
	}

	var req dto.StartNavigationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	src, err := h.Sources.New(req.Source, n.Route(), req.DeviceID)
	if err != nil {
		writeDomainError(c, h.Log, err)
		return
	}
	if err := n.StartNavigation(src); err != nil {
		writeDomainError(c, h.Log, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse(n))
}

func (h *SessionHandler) StopNavigation(c *gin.Context) {
	n, ok := h.session(c)
	if !ok {
		return
	}
	n.StopNavigation()
	c.JSON(http.StatusOK, sessionResponse(n))
}

// Camera handles GET /sessions/:id/camera. 204 until the follow controller
// has produced a view.
func (h *SessionHandler) Camera(c *gin.Context) {
	n, ok := h.session(c)
	if !ok {
		return
	}

	view, ok := n.Camera()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, dto.CameraResponse{Center: view.Center, Zoom: view.Zoom, Bearing: view.Bearing})
}
