package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nebula-miniapp/internal/common/middleware"
	"nebula-miniapp/internal/common/validation"
	"nebula-miniapp/internal/features/catalog/models"
	"nebula-miniapp/internal/features/catalog/service"
)

type CatalogHandler struct {
	service service.CatalogService
	log     zerolog.Logger
}

func NewCatalogHandler(service service.CatalogService, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		log:     log,
	}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	items := router.Group("/catalog")
	{
		items.GET("", h.list)
		items.GET("/categories", h.categories)
		items.GET("/:id", h.detail)
		items.POST("/:id/rate", h.rate)
		items.POST("/:id/complain", h.complain)
		items.POST("/:id/click", h.click)
		items.POST("/:id/donate", middleware.RequireIdentity("donate"), h.donate)
	}
}

// @Summary List catalog
// @Description Ranked catalog. Promoted items lead, then items by score.
// @Tags catalog
// @Produce json
// @Param kind query string false "all, games or apps"
// @Param category query string false "Category, All for every category"
// @Param geo query string false "Geo, All for every region"
// @Success 200 {object} models.ListResponse
// @Failure 400 {object} models.ErrorResponse "Invalid filter"
// @Failure 502 {object} models.ErrorResponse "Backend error"
// @Router /catalog [get]
func (h *CatalogHandler) list(c *gin.Context) {
	var filter models.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.SendValidationErrors(c, validation.FromBinding(err), h.log)
		return
	}

	resp, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary List categories
// @Description Distinct categories and regions in first-seen order, led by All
// @Tags catalog
// @Produce json
// @Param kind query string false "all, games or apps"
// @Success 200 {object} models.CategoriesResponse
// @Failure 502 {object} models.ErrorResponse "Backend error"
// @Router /catalog/categories [get]
func (h *CatalogHandler) categories(c *gin.Context) {
	resp, err := h.service.Categories(c.Request.Context(), c.Query("kind"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Get catalog item
// @Description Item with its position in the overall ranking and up to three similar items
// @Tags catalog
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} models.DetailResponse
// @Failure 404 {object} models.ErrorResponse "Item not found"
// @Router /catalog/{id} [get]
func (h *CatalogHandler) detail(c *gin.Context) {
	resp, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Rate item
// @Tags catalog
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param body body models.RateRequest true "Rating from 1 to 5"
// @Success 200 {object} catalog.Item
// @Failure 400 {object} models.ErrorResponse "Invalid rating"
// @Failure 404 {object} models.ErrorResponse "Item not found"
// @Router /catalog/{id}/rate [post]
func (h *CatalogHandler) rate(c *gin.Context) {
	var req models.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.SendValidationErrors(c, validation.FromBinding(err), h.log)
		return
	}

	item, err := h.service.Rate(c.Request.Context(), c.Param("id"), req.Rating)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary Report item
// @Tags catalog
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} catalog.Item
// @Failure 404 {object} models.ErrorResponse "Item not found"
// @Router /catalog/{id}/complain [post]
func (h *CatalogHandler) complain(c *gin.Context) {
	item, err := h.service.Complain(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary Donate stars
// @Description Sends 1 to 10 Telegram Stars from the current user to the item
// @Tags catalog
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Item ID"
// @Param body body models.DonateRequest true "Stars to donate"
// @Success 200 {object} models.DonateResponse
// @Failure 400 {object} models.ErrorResponse "Invalid donation"
// @Failure 403 {object} models.ErrorResponse "Guest identity"
// @Router /catalog/{id}/donate [post]
func (h *CatalogHandler) donate(c *gin.Context) {
	var req models.DonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.SendValidationErrors(c, validation.FromBinding(err), h.log)
		return
	}

	id := middleware.MustIdentity(c)
	resp, err := h.service.Donate(c.Request.Context(), c.Param("id"), id.UserID, req.Stars)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Register an open
// @Tags catalog
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} models.ClickResponse
// @Failure 404 {object} models.ErrorResponse "Item not found"
// @Router /catalog/{id}/click [post]
func (h *CatalogHandler) click(c *gin.Context) {
	resp, err := h.service.Click(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
