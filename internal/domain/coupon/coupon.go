package coupon

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

// DefaultValidity is how long a coupon issued from a discount without an
// expiry stays valid.
const DefaultValidity = 7 * 24 * time.Hour

// Coupon is the aggregate root for redeemable codes.
type Coupon struct {
	id           uuid.UUID
	code         string
	percentage   float64
	validUntil   time.Time
	assignedTo   []uuid.UUID
	promotionRef *uuid.UUID
	createdBy    *uuid.UUID
	createdAt    time.Time
	updatedAt    time.Time
}

// NewCoupon validates the inputs and creates a coupon. assignedTo is
// deduplicated keeping first-seen order.
func NewCoupon(code string, percentage float64, validUntil time.Time, assignedTo []uuid.UUID, promotionRef, createdBy *uuid.UUID, now time.Time) (*Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError("coupon code is required")
	}
	if !IsValidPercentage(percentage) || percentage < 1 || percentage > 100 {
		return nil, domain.NewValidationError("percentage must be between 1 and 100")
	}
	if validUntil.IsZero() {
		return nil, domain.NewValidationError("validUntil is required")
	}

	now = now.UTC()
	c := &Coupon{
		id:           uuid.New(),
		code:         code,
		percentage:   percentage,
		validUntil:   validUntil.UTC(),
		promotionRef: promotionRef,
		createdBy:    createdBy,
		createdAt:    now,
		updatedAt:    now,
	}
	c.AssignUsers(assignedTo, now)
	return c, nil
}

// Reconstruct rebuilds a Coupon from persistence.
func Reconstruct(id uuid.UUID, code string, percentage float64, validUntil time.Time, assignedTo []uuid.UUID, promotionRef, createdBy *uuid.UUID, createdAt, updatedAt time.Time) *Coupon {
	return &Coupon{
		id: id, code: code, percentage: percentage, validUntil: validUntil,
		assignedTo: assignedTo, promotionRef: promotionRef, createdBy: createdBy,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// IsExpired reports whether the coupon has expired at now. The expiry instant
// itself counts as expired.
func (c *Coupon) IsExpired(now time.Time) bool {
	return !c.validUntil.After(now)
}

// IsPublic reports whether anyone may redeem the coupon.
func (c *Coupon) IsPublic() bool {
	return len(c.assignedTo) == 0
}

// IsAssignedTo reports whether userID is in the coupon's assignment set.
func (c *Coupon) IsAssignedTo(userID uuid.UUID) bool {
	for _, id := range c.assignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// AssignUsers adds ids to the assignment set and returns how many were new.
func (c *Coupon) AssignUsers(ids []uuid.UUID, now time.Time) int {
	added := 0
	for _, id := range ids {
		if id == uuid.Nil || c.IsAssignedTo(id) {
			continue
		}
		c.assignedTo = append(c.assignedTo, id)
		added++
	}
	if added > 0 {
		c.updatedAt = now.UTC()
	}
	return added
}

// IsValidPercentage reports whether p is a usable number.
func IsValidPercentage(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0)
}

// PercentageOf unwraps an optional percentage read from another aggregate.
func PercentageOf(p *float64) (float64, bool) {
	if p == nil || !IsValidPercentage(*p) {
		return 0, false
	}
	return *p, true
}

// DiscountCode builds the code of a coupon issued to userID from a discount:
// the discount code, the last four characters of the user id and a four-digit
// suffix.
func DiscountCode(discountCode string, userID uuid.UUID, suffix int) string {
	s := userID.String()
	return fmt.Sprintf("%s-%s-%04d", discountCode, s[len(s)-4:], suffix%10000)
}

// Getters.
func (c *Coupon) ID() uuid.UUID            { return c.id }
func (c *Coupon) Code() string             { return c.code }
func (c *Coupon) Percentage() float64      { return c.percentage }
func (c *Coupon) ValidUntil() time.Time    { return c.validUntil }
func (c *Coupon) AssignedTo() []uuid.UUID  { return c.assignedTo }
func (c *Coupon) PromotionRef() *uuid.UUID { return c.promotionRef }
func (c *Coupon) CreatedBy() *uuid.UUID    { return c.createdBy }
func (c *Coupon) CreatedAt() time.Time     { return c.createdAt }
func (c *Coupon) UpdatedAt() time.Time     { return c.updatedAt }
