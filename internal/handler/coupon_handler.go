package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumiere-jewels/service-coupon/internal/application"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
	"github.com/lumiere-jewels/service-coupon/pkg/response"
)

// CouponHandler handles HTTP requests for coupon operations.
type CouponHandler struct {
	service *application.CouponService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(service *application.CouponService) *CouponHandler {
	return &CouponHandler{service: service}
}

// RegisterRoutes registers all coupon routes.
func (h *CouponHandler) RegisterRoutes(r *gin.RouterGroup, guard *Guard) {
	admin := guard.AdminOnly()

	coupons := r.Group("/coupons")
	coupons.Use(guard.Identify())
	{
		coupons.POST("", h.CreateCoupon)
		coupons.GET("", admin, h.ListAllCoupons)
		coupons.GET("/users", admin, h.ListUsers)
		coupons.GET("/user/:userId", h.ListCouponsForUser)
		coupons.PUT("/assign", admin, h.AssignUsersToCoupon)
		coupons.POST("/assign-users-to-discount", admin, h.AssignUsersToDiscount)
		coupons.POST("/validate", h.ValidateCoupon)
	}
}

// CreateCoupon handles POST /api/v1/coupons.
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req application.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateCoupon(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListAllCoupons handles GET /api/v1/coupons.
func (h *CouponHandler) ListAllCoupons(c *gin.Context) {
	result, err := h.service.ListAllCoupons(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListCouponsForUser handles GET /api/v1/coupons/user/:userId.
func (h *CouponHandler) ListCouponsForUser(c *gin.Context) {
	// An unparsable id can never match the caller and is reported as forbidden.
	userID, _ := uuid.Parse(c.Param("userId"))

	result, err := h.service.ListCouponsForUser(c.Request.Context(), callerFrom(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AssignUsersToCoupon handles PUT /api/v1/coupons/assign.
func (h *CouponHandler) AssignUsersToCoupon(c *gin.Context) {
	var req application.AssignCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	couponID, err := application.ParseUUID(req.CouponID, "couponId")
	if err != nil {
		response.Error(c, err)
		return
	}
	userIDs, err := application.ParseUUIDs(req.UserIDs, "userIds")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.AssignUsersToCoupon(c.Request.Context(), couponID, userIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListUsers handles GET /api/v1/coupons/users.
func (h *CouponHandler) ListUsers(c *gin.Context) {
	result, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AssignUsersToDiscount handles POST /api/v1/coupons/assign-users-to-discount.
func (h *CouponHandler) AssignUsersToDiscount(c *gin.Context) {
	var req application.AssignDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	discountID, err := application.ParseUUID(req.DiscountID, "discountId")
	if err != nil {
		response.Error(c, err)
		return
	}
	userIDs, err := application.ParseUUIDs(req.UserIDs, "userIds")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.AssignUsersToDiscountCoupons(c.Request.Context(), callerFrom(c), discountID, userIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ValidateCoupon handles POST /api/v1/coupons/validate. The validation result
// is the response data on every status.
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req application.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		const msg = "invalid request body"
		response.ErrorWithData(c, domain.NewValidationError(msg), &application.ValidationResultDTO{Valid: false, Message: msg})
		return
	}

	result, err := h.service.ValidateCoupon(c.Request.Context(), callerFrom(c), req.Code)
	if err != nil {
		response.ErrorWithData(c, err, result)
		return
	}

	response.Success(c, result)
}
