package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	discountDomain "github.com/lumiere-jewels/service-coupon/internal/domain/discount"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

// DiscountModel is the GORM model for the discounts table.
type DiscountModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code       string    `gorm:"type:varchar(20);not null;index"`
	Percentage *float64
	ValidUntil *time.Time
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (DiscountModel) TableName() string { return "discounts" }

// GormDiscountRepository implements DiscountRepository using GORM.
type GormDiscountRepository struct {
	db *gorm.DB
}

// NewGormDiscountRepository creates a new GormDiscountRepository.
func NewGormDiscountRepository(db *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: db}
}

// Save persists a new discount.
func (r *GormDiscountRepository) Save(ctx context.Context, d *discountDomain.Discount) error {
	model := toDiscountModel(d)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID returns a discount by ID.
func (r *GormDiscountRepository) FindByID(ctx context.Context, id uuid.UUID) (*discountDomain.Discount, error) {
	var model DiscountModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "discount", id.String())
	}
	return toDiscountDomain(&model), nil
}

// FindByIDs returns the discounts whose IDs are in ids.
func (r *GormDiscountRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*discountDomain.Discount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []DiscountModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	return toDiscountDomains(models), nil
}

// ListAll returns every discount, newest first.
func (r *GormDiscountRepository) ListAll(ctx context.Context) ([]*discountDomain.Discount, error) {
	var models []DiscountModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toDiscountDomains(models), nil
}

// Update writes the discount's fields.
func (r *GormDiscountRepository) Update(ctx context.Context, d *discountDomain.Discount) error {
	result := r.db.WithContext(ctx).Model(&DiscountModel{}).Where("id = ?", d.ID()).Updates(map[string]interface{}{
		"code":        d.Code(),
		"percentage":  d.Percentage(),
		"valid_until": d.ValidUntil(),
		"updated_at":  d.UpdatedAt(),
	})
	if result.Error != nil {
		return errors.Wrap(result.Error, "update discount")
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("discount", d.ID().String())
	}
	return nil
}

// Delete removes a discount. Coupons already issued from it are kept.
func (r *GormDiscountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&DiscountModel{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete discount")
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("discount", id.String())
	}
	return nil
}

func toDiscountModel(d *discountDomain.Discount) DiscountModel {
	return DiscountModel{
		ID:         d.ID(),
		Code:       d.Code(),
		Percentage: d.Percentage(),
		ValidUntil: d.ValidUntil(),
		CreatedAt:  d.CreatedAt(),
		UpdatedAt:  d.UpdatedAt(),
	}
}

func toDiscountDomain(m *DiscountModel) *discountDomain.Discount {
	var until *time.Time
	if m.ValidUntil != nil {
		u := m.ValidUntil.UTC()
		until = &u
	}
	return discountDomain.Reconstruct(m.ID, m.Code, m.Percentage, until, m.CreatedAt, m.UpdatedAt)
}

func toDiscountDomains(models []DiscountModel) []*discountDomain.Discount {
	out := make([]*discountDomain.Discount, len(models))
	for i := range models {
		out[i] = toDiscountDomain(&models[i])
	}
	return out
}
