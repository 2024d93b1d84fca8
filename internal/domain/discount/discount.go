package discount

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

// Discount is a standalone percentage-off record used as the template for
// per-user coupon issuance.
type Discount struct {
	id         uuid.UUID
	code       string
	percentage *float64
	validUntil *time.Time
	createdAt  time.Time
	updatedAt  time.Time
}

// NewDiscount validates and creates a discount.
func NewDiscount(code string, percentage int, validUntil, now time.Time) (*Discount, error) {
	code, err := validateFields(code, percentage, validUntil, now)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	pct := float64(percentage)
	until := validUntil.UTC()
	return &Discount{
		id:         uuid.New(),
		code:       code,
		percentage: &pct,
		validUntil: &until,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Update replaces the discount fields under the same rules as NewDiscount.
func (d *Discount) Update(code string, percentage int, validUntil, now time.Time) error {
	code, err := validateFields(code, percentage, validUntil, now)
	if err != nil {
		return err
	}
	pct := float64(percentage)
	until := validUntil.UTC()
	d.code = code
	d.percentage = &pct
	d.validUntil = &until
	d.updatedAt = now.UTC()
	return nil
}

func validateFields(code string, percentage int, validUntil, now time.Time) (string, error) {
	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		return "", domain.NewValidationError("discount code must be 5-20 uppercase letters or digits")
	}
	if percentage < 1 || percentage > 100 {
		return "", domain.NewValidationError("percentage must be between 1 and 100")
	}
	if !validUntil.After(now) {
		return "", domain.NewValidationError("validUntil must be in the future")
	}
	return code, nil
}

// Reconstruct rebuilds a Discount from persistence.
func Reconstruct(id uuid.UUID, code string, percentage *float64, validUntil *time.Time, createdAt, updatedAt time.Time) *Discount {
	return &Discount{
		id: id, code: code, percentage: percentage, validUntil: validUntil,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Getters.
func (d *Discount) ID() uuid.UUID          { return d.id }
func (d *Discount) Code() string           { return d.code }
func (d *Discount) Percentage() *float64   { return d.percentage }
func (d *Discount) ValidUntil() *time.Time { return d.validUntil }
func (d *Discount) CreatedAt() time.Time   { return d.createdAt }
func (d *Discount) UpdatedAt() time.Time   { return d.updatedAt }

// DiscountRepository defines persistence operations for discounts.
type DiscountRepository interface {
	Save(ctx context.Context, d *Discount) error
	FindByID(ctx context.Context, id uuid.UUID) (*Discount, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Discount, error)
	ListAll(ctx context.Context) ([]*Discount, error)
	Update(ctx context.Context, d *Discount) error
	Delete(ctx context.Context, id uuid.UUID) error
}
