package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumiere-jewels/service-coupon/internal/application"
	"github.com/lumiere-jewels/service-coupon/pkg/response"
)

// CatalogHandler handles HTTP requests for promotions and discounts.
type CatalogHandler struct {
	service *application.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(service *application.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// RegisterRoutes registers promotion and discount routes.
func (h *CatalogHandler) RegisterRoutes(r *gin.RouterGroup, guard *Guard) {
	admin := guard.AdminOnly()

	promotions := r.Group("/promotions")
	promotions.Use(guard.Identify())
	{
		promotions.POST("", admin, h.CreatePromotion)
		promotions.GET("", h.ListPromotions)
		promotions.GET("/:id", h.GetPromotion)
		promotions.PUT("/:id", admin, h.UpdatePromotion)
		promotions.DELETE("/:id", admin, h.DeletePromotion)
		promotions.PUT("/:id/assign", admin, h.AssignUsersToPromotion)
	}

	discounts := r.Group("/discounts")
	discounts.Use(guard.Identify())
	{
		discounts.POST("", admin, h.CreateDiscount)
		discounts.GET("", h.ListDiscounts)
		discounts.GET("/:id", h.GetDiscount)
		discounts.PUT("/:id", admin, h.UpdateDiscount)
		discounts.DELETE("/:id", admin, h.DeleteDiscount)
	}
}

// CreatePromotion handles POST /api/v1/promotions.
func (h *CatalogHandler) CreatePromotion(c *gin.Context) {
	var req application.CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreatePromotion(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListPromotions handles GET /api/v1/promotions.
func (h *CatalogHandler) ListPromotions(c *gin.Context) {
	result, err := h.service.ListPromotions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetPromotion handles GET /api/v1/promotions/:id.
func (h *CatalogHandler) GetPromotion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promotion ID")
		return
	}

	result, err := h.service.GetPromotion(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdatePromotion handles PUT /api/v1/promotions/:id.
func (h *CatalogHandler) UpdatePromotion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promotion ID")
		return
	}
	var req application.UpdatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdatePromotion(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeletePromotion handles DELETE /api/v1/promotions/:id.
func (h *CatalogHandler) DeletePromotion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promotion ID")
		return
	}

	if err := h.service.DeletePromotion(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "Promotion deleted"})
}

// AssignUsersToPromotion handles PUT /api/v1/promotions/:id/assign.
func (h *CatalogHandler) AssignUsersToPromotion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promotion ID")
		return
	}
	var req application.AssignPromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userIDs, err := application.ParseUUIDs(req.UserIDs, "userIds")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.AssignUsersToPromotion(c.Request.Context(), id, userIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateDiscount handles POST /api/v1/discounts.
func (h *CatalogHandler) CreateDiscount(c *gin.Context) {
	var req application.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateDiscount(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListDiscounts handles GET /api/v1/discounts.
func (h *CatalogHandler) ListDiscounts(c *gin.Context) {
	result, err := h.service.ListDiscounts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetDiscount handles GET /api/v1/discounts/:id.
func (h *CatalogHandler) GetDiscount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid discount ID")
		return
	}

	result, err := h.service.GetDiscount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateDiscount handles PUT /api/v1/discounts/:id.
func (h *CatalogHandler) UpdateDiscount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid discount ID")
		return
	}
	var req application.UpdateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateDiscount(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteDiscount handles DELETE /api/v1/discounts/:id.
func (h *CatalogHandler) DeleteDiscount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid discount ID")
		return
	}

	if err := h.service.DeleteDiscount(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "Discount deleted"})
}
