package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	couponDomain "github.com/lumiere-jewels/service-coupon/internal/domain/coupon"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

// CouponModel is the GORM model for the coupons table.
type CouponModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code         string     `gorm:"type:varchar(100);not null;index"`
	Percentage   float64    `gorm:"not null"`
	ValidUntil   time.Time  `gorm:"not null;index"`
	PromotionRef *uuid.UUID `gorm:"type:uuid;index"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`

	Assignments []CouponAssignmentModel `gorm:"foreignKey:CouponID"`
}

// TableName sets the table name.
func (CouponModel) TableName() string { return "coupons" }

// CouponAssignmentModel is the GORM model for the coupon_assignments table.
// The composite primary key makes the assignment list a set.
type CouponAssignmentModel struct {
	CouponID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (CouponAssignmentModel) TableName() string { return "coupon_assignments" }

// GormCouponRepository implements CouponRepository using GORM.
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository.
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// Save persists a new coupon and its assignments in one transaction.
func (r *GormCouponRepository) Save(ctx context.Context, c *couponDomain.Coupon) error {
	model := toCouponModel(c)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return errors.Wrap(err, "insert coupon")
		}
		if len(model.Assignments) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Assignments).Error; err != nil {
			return errors.Wrap(err, "insert coupon assignments")
		}
		return nil
	})
}

// FindByID returns a coupon by ID.
func (r *GormCouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*couponDomain.Coupon, error) {
	var model CouponModel
	if err := r.withAssignments(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "coupon", id.String())
	}
	return toCouponDomain(&model), nil
}

// FindByCode returns the most recently created coupon with the given code.
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*couponDomain.Coupon, error) {
	var model CouponModel
	if err := r.withAssignments(ctx).
		Where("code = ?", code).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		return nil, notFound(err, "coupon", code)
	}
	return toCouponDomain(&model), nil
}

// ExistsActiveCode reports whether a coupon with code is still valid at now.
func (r *GormCouponRepository) ExistsActiveCode(ctx context.Context, code string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&CouponModel{}).
		Where("code = ? AND valid_until > ?", code, now.UTC()).
		Count(&count).Error
	return count > 0, err
}

// FindByPromotionAndUser returns the oldest coupon referencing promotionRef
// that is assigned to userID.
func (r *GormCouponRepository) FindByPromotionAndUser(ctx context.Context, promotionRef, userID uuid.UUID) (*couponDomain.Coupon, error) {
	var model CouponModel
	if err := r.withAssignments(ctx).
		Joins("JOIN coupon_assignments ca ON ca.coupon_id = coupons.id").
		Where("coupons.promotion_ref = ? AND ca.user_id = ?", promotionRef, userID).
		Order("coupons.created_at ASC").
		First(&model).Error; err != nil {
		return nil, notFound(err, "coupon", promotionRef.String())
	}
	return toCouponDomain(&model), nil
}

// AddAssignees unions userIDs into the coupon's assignment set. Existing
// pairs are left untouched.
func (r *GormCouponRepository) AddAssignees(ctx context.Context, id uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&CouponAssignmentModel{}).
			Where("coupon_id = ?", id).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return errors.Wrap(err, "read assignment position")
		}

		now := time.Now().UTC()
		rows := make([]CouponAssignmentModel, 0, len(userIDs))
		for _, userID := range userIDs {
			rows = append(rows, CouponAssignmentModel{CouponID: id, UserID: userID, Position: next, CreatedAt: now})
			next++
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return errors.Wrap(err, "insert coupon assignments")
		}
		return tx.Model(&CouponModel{}).Where("id = ?", id).Update("updated_at", now).Error
	})
}

// ListAll returns every coupon, newest first.
func (r *GormCouponRepository) ListAll(ctx context.Context) ([]*couponDomain.Coupon, error) {
	var models []CouponModel
	if err := r.withAssignments(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toCouponDomains(models), nil
}

// ListActiveByUser returns coupons assigned to userID that are still valid at now.
func (r *GormCouponRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*couponDomain.Coupon, error) {
	var models []CouponModel
	if err := r.withAssignments(ctx).
		Joins("JOIN coupon_assignments ca ON ca.coupon_id = coupons.id").
		Where("ca.user_id = ? AND coupons.valid_until > ?", userID, now.UTC()).
		Order("coupons.created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toCouponDomains(models), nil
}

type refCount struct {
	Ref   uuid.UUID
	Total int64
}

// CountByPromotionRef counts coupons per referenced promotion or discount.
func (r *GormCouponRepository) CountByPromotionRef(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []refCount
	if err := r.db.WithContext(ctx).
		Model(&CouponModel{}).
		Select("promotion_ref AS ref, COUNT(*) AS total").
		Where("promotion_ref IS NOT NULL").
		Group("promotion_ref").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return refCounts(rows), nil
}

// CountByAssignee counts coupon assignments per user.
func (r *GormCouponRepository) CountByAssignee(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []refCount
	if err := r.db.WithContext(ctx).
		Model(&CouponAssignmentModel{}).
		Select("user_id AS ref, COUNT(*) AS total").
		Group("user_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return refCounts(rows), nil
}

func (r *GormCouponRepository) withAssignments(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Assignments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func refCounts(rows []refCount) map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		out[row.Ref] = row.Total
	}
	return out
}

// notFound translates gorm's missing-record error into a domain error.
func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(entity, id)
	}
	return err
}

func toCouponModel(c *couponDomain.Coupon) CouponModel {
	assignments := make([]CouponAssignmentModel, len(c.AssignedTo()))
	for i, userID := range c.AssignedTo() {
		assignments[i] = CouponAssignmentModel{
			CouponID:  c.ID(),
			UserID:    userID,
			Position:  i,
			CreatedAt: c.UpdatedAt(),
		}
	}
	return CouponModel{
		ID:           c.ID(),
		Code:         c.Code(),
		Percentage:   c.Percentage(),
		ValidUntil:   c.ValidUntil(),
		PromotionRef: c.PromotionRef(),
		CreatedBy:    c.CreatedBy(),
		CreatedAt:    c.CreatedAt(),
		UpdatedAt:    c.UpdatedAt(),
		Assignments:  assignments,
	}
}

func toCouponDomain(m *CouponModel) *couponDomain.Coupon {
	assigned := make([]uuid.UUID, len(m.Assignments))
	for i, a := range m.Assignments {
		assigned[i] = a.UserID
	}
	return couponDomain.Reconstruct(
		m.ID, m.Code, m.Percentage, m.ValidUntil.UTC(),
		assigned, m.PromotionRef, m.CreatedBy,
		m.CreatedAt, m.UpdatedAt,
	)
}

func toCouponDomains(models []CouponModel) []*couponDomain.Coupon {
	coupons := make([]*couponDomain.Coupon, len(models))
	for i := range models {
		coupons[i] = toCouponDomain(&models[i])
	}
	return coupons
}
