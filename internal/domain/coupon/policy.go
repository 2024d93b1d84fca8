package coupon

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumiere-jewels/service-coupon/internal/domain/user"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

// Messages surfaced to shoppers by validation.
const (
	MsgNotFound           = "Coupon not found"
	MsgExpired            = "Coupon expired"
	MsgPromotionForbidden = "Not authorized for this promotion"
	MsgCouponForbidden    = "Not authorized for this coupon"
)

// PromotionScope is the part of a referenced promotion that redemption rules read.
type PromotionScope struct {
	Percentage *float64
	AssignedTo []uuid.UUID
}

// Redeem decides whether caller may use c at now and returns the percentage
// that applies.
//
// Expiry is checked first. When the coupon's promotion carries a non-empty
// assignment list, that list alone decides (the coupon's own list is not
// consulted). Otherwise the coupon is redeemable when public, by admins, or by
// its assignees.
func Redeem(c *Coupon, promo *PromotionScope, caller *user.Identity, now time.Time) (float64, error) {
	if c.IsExpired(now) {
		return 0, domain.NewValidationError(MsgExpired)
	}

	if promo != nil && len(promo.AssignedTo) > 0 {
		if !caller.IsAdmin() && !caller.MemberOf(promo.AssignedTo) {
			return 0, domain.NewForbiddenError(MsgPromotionForbidden)
		}
		if pct, ok := PercentageOf(promo.Percentage); ok {
			return pct, nil
		}
		return c.percentage, nil
	}

	if c.IsPublic() || caller.IsAdmin() || caller.MemberOf(c.assignedTo) {
		return c.percentage, nil
	}
	return 0, domain.NewForbiddenError(MsgCouponForbidden)
}
