package application

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	discountDomain "github.com/lumiere-jewels/service-coupon/internal/domain/discount"
	promotionDomain "github.com/lumiere-jewels/service-coupon/internal/domain/promotion"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

// CreatePromotionRequest holds data to create a promotion.
type CreatePromotionRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Percentage  float64  `json:"percentage" binding:"required"`
	StartDate   string   `json:"startDate" binding:"required"`
	EndDate     string   `json:"endDate" binding:"required"`
	AssignedTo  []string `json:"assignedTo"`
}

// AssignPromotionRequest holds the users to add to a promotion.
type AssignPromotionRequest struct {
	UserIDs []string `json:"userIds"`
}

// CreateDiscountRequest holds data to create a discount.
type CreateDiscountRequest struct {
	Code       string `json:"code" binding:"required"`
	Percentage int    `json:"percentage" binding:"required"`
	ValidUntil string `json:"validUntil" binding:"required"`
}

// UpdatePromotionRequest holds the replacement campaign fields of a promotion.
type UpdatePromotionRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Percentage  float64 `json:"percentage" binding:"required"`
	StartDate   string  `json:"startDate" binding:"required"`
	EndDate     string  `json:"endDate" binding:"required"`
}

// UpdateDiscountRequest holds the replacement fields of a discount.
type UpdateDiscountRequest struct {
	Code       string `json:"code" binding:"required"`
	Percentage int    `json:"percentage" binding:"required"`
	ValidUntil string `json:"validUntil" binding:"required"`
}

// PromotionDTO is the API response representation of a promotion.
type PromotionDTO struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Percentage  *float64    `json:"percentage"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	AssignedTo  []uuid.UUID `json:"assignedTo"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// DiscountDTO is the API response representation of a discount.
type DiscountDTO struct {
	ID         uuid.UUID  `json:"id"`
	Code       string     `json:"code"`
	Percentage *float64   `json:"percentage"`
	ValidUntil *time.Time `json:"validUntil"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// CatalogService manages the promotions and discounts coupons are issued from.
type CatalogService struct {
	promotions promotionDomain.PromotionRepository
	discounts  discountDomain.DiscountRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(promotions promotionDomain.PromotionRepository, discounts discountDomain.DiscountRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		promotions: promotions,
		discounts:  discounts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreatePromotion creates a new promotion.
func (s *CatalogService) CreatePromotion(ctx context.Context, req CreatePromotionRequest) (*PromotionDTO, error) {
	start, err := parseTime(req.StartDate, "startDate")
	if err != nil {
		return nil, err
	}
	end, err := parseTime(req.EndDate, "endDate")
	if err != nil {
		return nil, err
	}
	assignedTo, err := ParseUUIDs(req.AssignedTo, "assignedTo")
	if err != nil {
		return nil, err
	}

	p, err := promotionDomain.NewPromotion(req.Title, req.Description, req.Percentage, start, end, assignedTo, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.promotions.Save(ctx, p); err != nil {
		return nil, errors.Wrap(err, "save promotion")
	}

	s.logger.Info("promotion created", zap.String("promotion_id", p.ID().String()), zap.String("title", p.Title()))
	return toPromotionDTO(p), nil
}

// GetPromotion returns a promotion by ID.
func (s *CatalogService) GetPromotion(ctx context.Context, id uuid.UUID) (*PromotionDTO, error) {
	p, err := s.promotions.FindByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage("Promotion not found")
		}
		return nil, err
	}
	return toPromotionDTO(p), nil
}

// ListPromotions returns every promotion.
func (s *CatalogService) ListPromotions(ctx context.Context) ([]*PromotionDTO, error) {
	promos, err := s.promotions.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]*PromotionDTO, len(promos))
	for i, p := range promos {
		dtos[i] = toPromotionDTO(p)
	}
	return dtos, nil
}

// UpdatePromotion replaces a promotion's campaign fields. Assigned users are kept.
func (s *CatalogService) UpdatePromotion(ctx context.Context, id uuid.UUID, req UpdatePromotionRequest) (*PromotionDTO, error) {
	start, err := parseTime(req.StartDate, "startDate")
	if err != nil {
		return nil, err
	}
	end, err := parseTime(req.EndDate, "endDate")
	if err != nil {
		return nil, err
	}

	p, err := s.promotions.FindByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage("Promotion not found")
		}
		return nil, err
	}
	if err := p.Update(req.Title, req.Description, req.Percentage, start, end, s.now()); err != nil {
		return nil, err
	}
	if err := s.promotions.Update(ctx, p); err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage("Promotion not found")
		}
		return nil, errors.Wrap(err, "update promotion")
	}

	s.logger.Info("promotion updated", zap.String("promotion_id", id.String()))
	return toPromotionDTO(p), nil
}

// DeletePromotion removes a promotion. Coupons that referenced it lose their
// promotion scope.
func (s *CatalogService) DeletePromotion(ctx context.Context, id uuid.UUID) error {
	if err := s.promotions.Delete(ctx, id); err != nil {
		if domain.IsNotFound(err) {
			return domain.NewNotFoundMessage("Promotion not found")
		}
		return errors.Wrap(err, "delete promotion")
	}
	s.logger.Info("promotion deleted", zap.String("promotion_id", id.String()))
	return nil
}

// AssignUsersToPromotion adds users to a promotion's entitlement list.
func (s *CatalogService) AssignUsersToPromotion(ctx context.Context, id uuid.UUID, userIDs []uuid.UUID) (*PromotionDTO, error) {
	p, err := s.promotions.FindByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage("Promotion not found")
		}
		return nil, err
	}

	before := len(p.AssignedTo())
	if added := p.AssignUsers(userIDs, s.now()); added > 0 {
		if err := s.promotions.AddAssignees(ctx, id, p.AssignedTo()[before:]); err != nil {
			return nil, errors.Wrap(err, "assign users to promotion")
		}
		s.logger.Info("users assigned to promotion", zap.String("promotion_id", id.String()), zap.Int("added", added))
	}
	return toPromotionDTO(p), nil
}

// CreateDiscount creates a new discount.
func (s *CatalogService) CreateDiscount(ctx context.Context, req CreateDiscountRequest) (*DiscountDTO, error) {
	validUntil, err := parseTime(req.ValidUntil, "validUntil")
	if err != nil {
		return nil, err
	}

	d, err := discountDomain.NewDiscount(req.Code, req.Percentage, validUntil, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.discounts.Save(ctx, d); err != nil {
		return nil, errors.Wrap(err, "save discount")
	}

	s.logger.Info("discount created", zap.String("discount_id", d.ID().String()), zap.String("code", d.Code()))
	return toDiscountDTO(d), nil
}

// GetDiscount returns a discount by ID.
func (s *CatalogService) GetDiscount(ctx context.Context, id uuid.UUID) (*DiscountDTO, error) {
	d, err := s.discounts.FindByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage("Discount not found")
		}
		return nil, err
	}
	return toDiscountDTO(d), nil
}

// UpdateDiscount replaces a discount's fields.
func (s *CatalogService) UpdateDiscount(ctx context.Context, id uuid.UUID, req UpdateDiscountRequest) (*DiscountDTO, error) {
	validUntil, err := parseTime(req.ValidUntil, "validUntil")
	if err != nil {
		return nil, err
	}

	d, err := s.discounts.FindByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage("Discount not found")
		}
		return nil, err
	}
	if err := d.Update(req.Code, req.Percentage, validUntil, s.now()); err != nil {
		return nil, err
	}
	if err := s.discounts.Update(ctx, d); err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage("Discount not found")
		}
		return nil, errors.Wrap(err, "update discount")
	}

	s.logger.Info("discount updated", zap.String("discount_id", id.String()), zap.String("code", d.Code()))
	return toDiscountDTO(d), nil
}

// DeleteDiscount removes a discount. Coupons already issued from it remain
// valid on their own terms.
func (s *CatalogService) DeleteDiscount(ctx context.Context, id uuid.UUID) error {
	if err := s.discounts.Delete(ctx, id); err != nil {
		if domain.IsNotFound(err) {
			return domain.NewNotFoundMessage("Discount not found")
		}
		return errors.Wrap(err, "delete discount")
	}
	s.logger.Info("discount deleted", zap.String("discount_id", id.String()))
	return nil
}

// ListDiscounts returns every discount.
func (s *CatalogService) ListDiscounts(ctx context.Context) ([]*DiscountDTO, error) {
	discounts, err := s.discounts.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]*DiscountDTO, len(discounts))
	for i, d := range discounts {
		dtos[i] = toDiscountDTO(d)
	}
	return dtos, nil
}

func toPromotionDTO(p *promotionDomain.Promotion) *PromotionDTO {
	assigned := p.AssignedTo()
	if assigned == nil {
		assigned = []uuid.UUID{}
	}
	return &PromotionDTO{
		ID:          p.ID(),
		Title:       p.Title(),
		Description: p.Description(),
		Percentage:  p.Percentage(),
		StartDate:   p.StartDate(),
		EndDate:     p.EndDate(),
		AssignedTo:  assigned,
		CreatedAt:   p.CreatedAt(),
	}
}

func toDiscountDTO(d *discountDomain.Discount) *DiscountDTO {
	return &DiscountDTO{
		ID:         d.ID(),
		Code:       d.Code(),
		Percentage: d.Percentage(),
		ValidUntil: d.ValidUntil(),
		CreatedAt:  d.CreatedAt(),
	}
}
