package coupon

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CouponRepository defines persistence operations for coupons.
type CouponRepository interface {
	// Save persists a new coupon together with its assignments.
	Save(ctx context.Context, c *Coupon) error

	FindByID(ctx context.Context, id uuid.UUID) (*Coupon, error)

	// FindByCode returns the most recently created coupon with exactly this code.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// ExistsActiveCode reports whether a coupon with code is valid after now.
	ExistsActiveCode(ctx context.Context, code string, now time.Time) (bool, error)

	// FindByPromotionAndUser returns a coupon referencing promotionRef that is
	// assigned to userID.
	FindByPromotionAndUser(ctx context.Context, promotionRef, userID uuid.UUID) (*Coupon, error)

	// AddAssignees unions userIDs into the coupon's assignment set.
	AddAssignees(ctx context.Context, id uuid.UUID, userIDs []uuid.UUID) error

	ListAll(ctx context.Context) ([]*Coupon, error)

	// ListActiveByUser returns coupons assigned to userID that are valid after now.
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*Coupon, error)

	// CountByPromotionRef counts coupons per referenced promotion or discount.
	CountByPromotionRef(ctx context.Context) (map[uuid.UUID]int64, error)

	// CountByAssignee counts coupon assignments per user.
	CountByAssignee(ctx context.Context) (map[uuid.UUID]int64, error)
}
