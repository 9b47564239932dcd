package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nebula-miniapp/internal/common/middleware"
	"nebula-miniapp/internal/features/session/service"
)

type SessionHandler struct {
	service service.SessionService
}

func NewSessionHandler(service service.SessionService) *SessionHandler {
	return &SessionHandler{
		service: service,
	}
}

func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	me := router.Group("/me")
	{
		me.GET("", h.bootstrap)
	}

	sessions := router.Group("/me/session")
	sessions.Use(middleware.RequireIdentity("session"))
	{
		sessions.GET("", h.snapshot)
		sessions.POST("", h.start)
		sessions.POST("/sync", h.sync)
		sessions.DELETE("", h.stop)
	}
}

// @Summary Bootstrap the mini-app
// @Description Upserts the Telegram user, loads or creates the inventory, ranks the catalog and starts the coin sync loop. Guests get defaults without any backend call. Backend failures are reported in the error field with defaults, never as an HTTP error.
// @Tags session
// @Produce json
// @Security TelegramInitData
// @Param X-Telegram-Platform header string false "Telegram platform"
// @Success 200 {object} models.BootstrapResponse
// @Failure 401 {object} models.ErrorResponse "Invalid init data"
// @Router /me [get]
func (h *SessionHandler) bootstrap(c *gin.Context) {
	id := middleware.MustIdentity(c)
	c.JSON(http.StatusOK, h.service.Bootstrap(c.Request.Context(), id))
}

// @Summary Get session state
// @Description Merged inventory and sync loop state of the current user
// @Tags session
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.SessionResponse
// @Failure 403 {object} models.ErrorResponse "Guest identity"
// @Failure 404 {object} models.ErrorResponse "No session"
// @Router /me/session [get]
func (h *SessionHandler) snapshot(c *gin.Context) {
	id := middleware.MustIdentity(c)
	snap, err := h.service.Snapshot(c.Request.Context(), id.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary Start or heartbeat the session
// @Description Starts the coin sync loop, or refreshes its idle timer when already running
// @Tags session
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.SessionResponse
// @Failure 403 {object} models.ErrorResponse "Guest identity"
// @Failure 502 {object} models.ErrorResponse "Backend error"
// @Router /me/session [post]
func (h *SessionHandler) start(c *gin.Context) {
	id := middleware.MustIdentity(c)
	snap, err := h.service.Start(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary Sync now
// @Description Runs an immediate sync tick. A tick already in flight is joined, not repeated.
// @Tags session
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} models.ErrorResponse "No session"
// @Failure 502 {object} models.ErrorResponse "Backend error"
// @Router /me/session/sync [post]
func (h *SessionHandler) sync(c *gin.Context) {
	id := middleware.MustIdentity(c)
	snap, err := h.service.Sync(c.Request.Context(), id.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary Stop the session
// @Description Stops the sync loop and marks the user offline
// @Tags session
// @Security TelegramInitData
// @Success 204
// @Failure 403 {object} models.ErrorResponse "Guest identity"
// @Router /me/session [delete]
func (h *SessionHandler) stop(c *gin.Context) {
	id := middleware.MustIdentity(c)
	if err := h.service.Stop(c.Request.Context(), id.UserID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
