package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/lumiere-jewels/service-coupon/internal/application"
	"github.com/lumiere-jewels/service-coupon/pkg/response"
)

// ReportHandler serves the admin dashboard charts.
type ReportHandler struct {
	service *application.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(service *application.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// RegisterRoutes registers report routes.
func (h *ReportHandler) RegisterRoutes(r *gin.RouterGroup, guard *Guard) {
	reports := r.Group("/reports")
	reports.Use(guard.Identify(), guard.AdminOnly())
	{
		reports.GET("/discounts", h.chart(h.service.DiscountUsage))
		reports.GET("/promotions", h.chart(h.service.PromotionPerformance))
		reports.GET("/users", h.chart(h.service.UserActivity))
	}
}

func (h *ReportHandler) chart(build func(ctx context.Context) (*application.ChartDTO, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := build(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, result)
	}
}
