package application

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	couponDomain "github.com/lumiere-jewels/service-coupon/internal/domain/coupon"
	discountDomain "github.com/lumiere-jewels/service-coupon/internal/domain/discount"
	promotionDomain "github.com/lumiere-jewels/service-coupon/internal/domain/promotion"
	userDomain "github.com/lumiere-jewels/service-coupon/internal/domain/user"
	"github.com/lumiere-jewels/service-coupon/internal/lock"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
	"github.com/lumiere-jewels/service-coupon/pkg/events"
)

const maxCodeAttempts = 5

// DiscountIssuedMessage is returned alongside coupons issued from a discount.
const DiscountIssuedMessage = "Coupons assigned to users for discount."

// CreateCouponRequest holds data to create a coupon.
type CreateCouponRequest struct {
	Code       string   `json:"code"`
	Percentage *float64 `json:"percentage"`
	ValidUntil string   `json:"validUntil"`
	AssignedTo []string `json:"assignedTo"`
	Promotion  string   `json:"promotion"`
}

// AssignCouponRequest holds data to add users to a coupon.
type AssignCouponRequest struct {
	CouponID string   `json:"couponId"`
	UserIDs  []string `json:"userIds"`
}

// AssignDiscountRequest holds data to issue per-user coupons from a discount.
type AssignDiscountRequest struct {
	DiscountID string   `json:"discountId"`
	UserIDs    []string `json:"userIds"`
}

// ValidateCouponRequest holds the code to validate.
type ValidateCouponRequest struct {
	Code string `json:"code"`
}

// CouponDTO is the API response representation of a coupon.
type CouponDTO struct {
	ID         uuid.UUID   `json:"id"`
	Code       string      `json:"code"`
	Percentage float64     `json:"percentage"`
	ValidUntil time.Time   `json:"validUntil"`
	Expired    bool        `json:"expired"`
	AssignedTo []uuid.UUID `json:"assignedTo"`
	Promotion  *uuid.UUID  `json:"promotion,omitempty"`
	CreatedBy  *uuid.UUID  `json:"createdBy,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// CouponDetailDTO is a coupon with its assignees and promotion resolved.
type CouponDetailDTO struct {
	ID         uuid.UUID        `json:"id"`
	Code       string           `json:"code"`
	Percentage float64          `json:"percentage"`
	ValidUntil time.Time        `json:"validUntil"`
	Expired    bool             `json:"expired"`
	AssignedTo []UserSummaryDTO `json:"assignedTo"`
	Promotion  *PromotionRefDTO `json:"promotion,omitempty"`
	CreatedBy  *uuid.UUID       `json:"createdBy,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// PromotionRefDTO describes whatever a coupon's promotion reference points at.
// Kind is "promotion", "discount", or "unknown" when the record is gone.
type PromotionRefDTO struct {
	ID         uuid.UUID   `json:"id"`
	Kind       string      `json:"kind"`
	Title      string      `json:"title,omitempty"`
	Code       string      `json:"code,omitempty"`
	Percentage *float64    `json:"percentage,omitempty"`
	ValidUntil *time.Time  `json:"validUntil,omitempty"`
	AssignedTo []uuid.UUID `json:"assignedTo,omitempty"`
}

// UserSummaryDTO is the name/email projection of a user.
type UserSummaryDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// DiscountIssueDTO is the result of issuing coupons from a discount.
type DiscountIssueDTO struct {
	Message string       `json:"message"`
	Coupons []*CouponDTO `json:"coupons"`
}

// ValidationResultDTO is the result of validating a coupon code. It is
// returned on every outcome, including failures.
type ValidationResultDTO struct {
	Valid      bool       `json:"valid"`
	Percentage *float64   `json:"percentage,omitempty"`
	Coupon     *CouponDTO `json:"coupon,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// CouponService handles coupon issuance, assignment, validation and listing.
type CouponService struct {
	coupons         couponDomain.CouponRepository
	promotions      promotionDomain.PromotionRepository
	discounts       discountDomain.DiscountRepository
	users           userDomain.Repository
	locker          lock.KeyedLocker
	publisher       EventPublisher
	defaultValidity time.Duration
	logger          *zap.Logger

	now      func() time.Time
	randIntn func(n int) int
}

// NewCouponService creates a new CouponService. publisher may be nil.
func NewCouponService(
	coupons couponDomain.CouponRepository,
	promotions promotionDomain.PromotionRepository,
	discounts discountDomain.DiscountRepository,
	users userDomain.Repository,
	locker lock.KeyedLocker,
	publisher EventPublisher,
	defaultValidity time.Duration,
	logger *zap.Logger,
) *CouponService {
	if defaultValidity <= 0 {
		defaultValidity = couponDomain.DefaultValidity
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &CouponService{
		coupons:         coupons,
		promotions:      promotions,
		discounts:       discounts,
		users:           users,
		locker:          locker,
		publisher:       publisher,
		defaultValidity: defaultValidity,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
		randIntn:        lockedIntn(rng),
	}
}

// CreateCoupon creates a coupon, deriving code and percentage from the
// referenced promotion when one exists.
func (s *CouponService) CreateCoupon(ctx context.Context, caller *userDomain.Identity, req CreateCouponRequest) (*CouponDTO, error) {
	now := s.now()

	validUntil, err := parseTime(req.ValidUntil, "validUntil")
	if err != nil {
		return nil, err
	}
	assignedTo, err := ParseUUIDs(req.AssignedTo, "assignedTo")
	if err != nil {
		return nil, err
	}
	promotionRef, err := parseOptionalUUID(req.Promotion, "promotion")
	if err != nil {
		return nil, err
	}

	code := req.Code
	percentage := 0.0
	if req.Percentage != nil {
		percentage = *req.Percentage
	}

	if promotionRef != nil {
		promo, err := s.promotions.FindByID(ctx, *promotionRef)
		switch {
		case domain.IsNotFound(err):
			s.logger.Warn("referenced promotion not found, keeping request values",
				zap.String("promotion", promotionRef.String()))
		case err != nil:
			return nil, errors.Wrap(err, "load promotion")
		default:
			pct, ok := couponDomain.PercentageOf(promo.Percentage())
			if !ok {
				return nil, domain.NewValidationError("Promotion does not have a valid percentage")
			}
			code = promo.Title()
			percentage = pct
		}
	}

	var createdBy *uuid.UUID
	if caller != nil && caller.ID != uuid.Nil {
		id := caller.ID
		createdBy = &id
	}

	c, err := couponDomain.NewCoupon(code, percentage, validUntil, assignedTo, promotionRef, createdBy, now)
	if err != nil {
		return nil, err
	}

	taken, err := s.coupons.ExistsActiveCode(ctx, c.Code(), now)
	if err != nil {
		return nil, errors.Wrap(err, "check coupon code")
	}
	if taken {
		return nil, domain.NewValidationError("coupon code already in use")
	}

	if err := s.coupons.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save coupon")
	}

	s.logger.Info("coupon created",
		zap.String("coupon_id", c.ID().String()),
		zap.String("code", c.Code()),
		zap.Int("assignees", len(c.AssignedTo())),
	)
	s.publish(ctx, c.ID(), events.CouponCreated, events.CouponCreatedEvent{
		CouponID:     c.ID(),
		Code:         c.Code(),
		Percentage:   c.Percentage(),
		AssignedTo:   c.AssignedTo(),
		PromotionRef: c.PromotionRef(),
		CreatedBy:    c.CreatedBy(),
	})
	return toCouponDTO(c, now), nil
}

// AssignUsersToDiscountCoupons returns one coupon per entry of userIDs, reusing
// the coupon already issued for a (discount, user) pair and creating the rest.
// Duplicated user ids yield duplicated entries backed by one coupon. Coupons
// created before a failure are kept.
func (s *CouponService) AssignUsersToDiscountCoupons(ctx context.Context, caller *userDomain.Identity, discountID uuid.UUID, userIDs []uuid.UUID) (*DiscountIssueDTO, error) {
	if discountID == uuid.Nil || len(userIDs) == 0 {
		return nil, domain.NewValidationError("discountId and userIds[] are required")
	}
	for _, id := range userIDs {
		if id == uuid.Nil {
			return nil, domain.NewValidationError("userIds[] must not contain empty ids")
		}
	}

	d, err := s.discounts.FindByID(ctx, discountID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage("Discount not found")
		}
		return nil, errors.Wrap(err, "load discount")
	}
	percentage, ok := couponDomain.PercentageOf(d.Percentage())
	if !ok {
		return nil, domain.NewValidationError("Discount does not have a valid percentage")
	}

	unlock, err := s.locker.Lock(ctx, "coupon:discount:"+discountID.String())
	if err != nil {
		return nil, errors.Wrap(err, "lock discount")
	}
	defer unlock()

	now := s.now()
	validUntil := now.Add(s.defaultValidity)
	if d.ValidUntil() != nil {
		validUntil = *d.ValidUntil()
	}
	var createdBy *uuid.UUID
	if caller != nil && caller.ID != uuid.Nil {
		id := caller.ID
		createdBy = &id
	}

	result := make([]*CouponDTO, 0, len(userIDs))
	var createdIDs []uuid.UUID
	for _, userID := range userIDs {
		existing, err := s.coupons.FindByPromotionAndUser(ctx, discountID, userID)
		if err == nil {
			result = append(result, toCouponDTO(existing, now))
			continue
		}
		if !domain.IsNotFound(err) {
			return nil, errors.Wrapf(err, "find coupon for user %s", userID)
		}

		code, err := s.uniqueDiscountCode(ctx, d.Code(), userID, now)
		if err != nil {
			return nil, err
		}
		ref := discountID
		c, err := couponDomain.NewCoupon(code, percentage, validUntil, []uuid.UUID{userID}, &ref, createdBy, now)
		if err != nil {
			return nil, err
		}
		if err := s.coupons.Save(ctx, c); err != nil {
			return nil, errors.Wrapf(err, "save coupon for user %s", userID)
		}
		createdIDs = append(createdIDs, c.ID())
		result = append(result, toCouponDTO(c, now))
	}

	s.logger.Info("discount coupons issued",
		zap.String("discount_id", discountID.String()),
		zap.Int("requested", len(userIDs)),
		zap.Int("created", len(createdIDs)),
	)
	s.publish(ctx, discountID, events.CouponDiscountIssued, events.CouponDiscountIssuedEvent{
		DiscountID: discountID,
		UserIDs:    userIDs,
		CouponIDs:  createdIDs,
		Created:    len(createdIDs),
	})
	return &DiscountIssueDTO{Message: DiscountIssuedMessage, Coupons: result}, nil
}

// uniqueDiscountCode synthesizes a per-user code that no active coupon uses.
func (s *CouponService) uniqueDiscountCode(ctx context.Context, base string, userID uuid.UUID, now time.Time) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := couponDomain.DiscountCode(base, userID, s.randIntn(10000))
		taken, err := s.coupons.ExistsActiveCode(ctx, code, now)
		if err != nil {
			return "", errors.Wrap(err, "check coupon code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", domain.NewConflictError("could not allocate a unique coupon code")
}

// AssignUsersToCoupon adds userIDs to the coupon's assignment set.
func (s *CouponService) AssignUsersToCoupon(ctx context.Context, couponID uuid.UUID, userIDs []uuid.UUID) (*CouponDetailDTO, error) {
	if couponID == uuid.Nil {
		return nil, domain.NewValidationError("couponId is required")
	}

	c, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundMessage(couponDomain.MsgNotFound)
		}
		return nil, errors.Wrap(err, "load coupon")
	}

	now := s.now()
	before := append([]uuid.UUID(nil), c.AssignedTo()...)
	if added := c.AssignUsers(userIDs, now); added > 0 {
		if err := s.coupons.AddAssignees(ctx, couponID, c.AssignedTo()[len(before):]); err != nil {
			return nil, errors.Wrap(err, "assign users")
		}
		s.logger.Info("users assigned to coupon",
			zap.String("coupon_id", couponID.String()),
			zap.Int("added", added),
		)
		s.publish(ctx, couponID, events.CouponUsersAssigned, events.CouponUsersAssignedEvent{
			CouponID: couponID,
			UserIDs:  c.AssignedTo()[len(before):],
		})
	}

	details, err := s.resolve(ctx, []*couponDomain.Coupon{c}, now)
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// ValidateCoupon checks whether caller may redeem code right now. The result
// is always non-nil; err classifies the failure when Valid is false.
func (s *CouponService) ValidateCoupon(ctx context.Context, caller *userDomain.Identity, code string) (*ValidationResultDTO, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return invalid(domain.NewValidationError("code is required"))
	}

	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			return invalid(domain.NewNotFoundMessage(couponDomain.MsgNotFound))
		}
		s.logger.Error("coupon lookup failed", zap.String("code", code), zap.Error(err))
		return invalid(errors.Wrap(err, "load coupon"))
	}

	now := s.now()
	scope, err := s.promotionScope(ctx, c)
	if err != nil {
		s.logger.Error("promotion lookup failed", zap.String("coupon_id", c.ID().String()), zap.Error(err))
		return invalid(err)
	}

	pct, err := couponDomain.Redeem(c, scope, caller, now)
	if err != nil {
		return invalid(err)
	}
	return &ValidationResultDTO{Valid: true, Percentage: &pct, Coupon: toCouponDTO(c, now)}, nil
}

// promotionScope loads the promotion a coupon refers to. References to
// discounts or to deleted promotions yield a nil scope.
func (s *CouponService) promotionScope(ctx context.Context, c *couponDomain.Coupon) (*couponDomain.PromotionScope, error) {
	if c.PromotionRef() == nil {
		return nil, nil
	}
	promo, err := s.promotions.FindByID(ctx, *c.PromotionRef())
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load promotion")
	}
	return &couponDomain.PromotionScope{Percentage: promo.Percentage(), AssignedTo: promo.AssignedTo()}, nil
}

// ListAllCoupons returns every coupon with assignees and promotion resolved.
func (s *CouponService) ListAllCoupons(ctx context.Context) ([]*CouponDetailDTO, error) {
	coupons, err := s.coupons.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return s.resolve(ctx, coupons, s.now())
}

// ListCouponsForUser returns the unexpired coupons assigned to userID. Only
// that user may call it.
func (s *CouponService) ListCouponsForUser(ctx context.Context, caller *userDomain.Identity, userID uuid.UUID) ([]*CouponDetailDTO, error) {
	if !caller.Is(userID) {
		return nil, domain.NewForbiddenError("Not authorized to view these coupons")
	}
	now := s.now()
	coupons, err := s.coupons.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, errors.Wrap(err, "list user coupons")
	}
	return s.resolve(ctx, coupons, now)
}

// ListUsers returns the name/email projection of every user.
func (s *CouponService) ListUsers(ctx context.Context) ([]UserSummaryDTO, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	out := make([]UserSummaryDTO, len(users))
	for i, u := range users {
		out[i] = toUserSummary(u)
	}
	return out, nil
}

func (s *CouponService) publish(ctx context.Context, subject uuid.UUID, eventType string, data interface{}) {
	publishEvent(ctx, s.publisher, s.logger, subject, eventType, data)
}

func invalid(err error) (*ValidationResultDTO, error) {
	msg := domain.MessageOf(err)
	if msg == "" {
		msg = "internal server error"
	}
	return &ValidationResultDTO{Valid: false, Message: msg}, err
}

func toCouponDTO(c *couponDomain.Coupon, now time.Time) *CouponDTO {
	assigned := c.AssignedTo()
	if assigned == nil {
		assigned = []uuid.UUID{}
	}
	return &CouponDTO{
		ID:         c.ID(),
		Code:       c.Code(),
		Percentage: c.Percentage(),
		ValidUntil: c.ValidUntil(),
		Expired:    c.IsExpired(now),
		AssignedTo: assigned,
		Promotion:  c.PromotionRef(),
		CreatedBy:  c.CreatedBy(),
		CreatedAt:  c.CreatedAt(),
	}
}

func toUserSummary(u *userDomain.User) UserSummaryDTO {
	return UserSummaryDTO{ID: u.ID(), Name: u.Name(), Email: u.Email()}
}
