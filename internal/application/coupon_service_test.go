package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	couponDomain "github.com/lumiere-jewels/service-coupon/internal/domain/coupon"
	discountDomain "github.com/lumiere-jewels/service-coupon/internal/domain/discount"
	promotionDomain "github.com/lumiere-jewels/service-coupon/internal/domain/promotion"
	userDomain "github.com/lumiere-jewels/service-coupon/internal/domain/user"
	"github.com/lumiere-jewels/service-coupon/internal/lock"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
	"github.com/lumiere-jewels/service-coupon/pkg/events"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *CouponService
	coupons    *memCoupons
	promotions *memPromotions
	discounts  *memDiscounts
	users      *memUsers
	publisher  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		coupons:    &memCoupons{},
		promotions: newMemPromotions(),
		discounts:  newMemDiscounts(),
		users:      &memUsers{},
		publisher:  &recordingPublisher{},
	}
	f.svc = NewCouponService(f.coupons, f.promotions, f.discounts, f.users, lock.NewMemoryLocker(), f.publisher, 0, zap.NewNop())
	f.svc.now = func() time.Time { return testNow }
	f.svc.randIntn = func(int) int { return 42 }
	return f
}

func pct(v float64) *float64 { return &v }

func (f *fixture) addCoupon(t *testing.T, code string, percentage float64, validUntil time.Time, assigned []uuid.UUID, ref *uuid.UUID) *couponDomain.Coupon {
	t.Helper()
	c, err := couponDomain.NewCoupon(code, percentage, validUntil, assigned, ref, nil, testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.coupons.Save(context.Background(), c))
	f.coupons.saves = 0
	return c
}

func (f *fixture) addPromotion(percentage *float64, assigned []uuid.UUID) *promotionDomain.Promotion {
	p := promotionDomain.Reconstruct(uuid.New(), "Spring Sparkle", "Rings and bands", percentage,
		testNow, testNow.Add(30*24*time.Hour), assigned, testNow, testNow)
	f.promotions.items[p.ID()] = p
	return p
}

func (f *fixture) addDiscount(code string, percentage *float64, validUntil *time.Time) *discountDomain.Discount {
	d := discountDomain.Reconstruct(uuid.New(), code, percentage, validUntil, testNow, testNow)
	f.discounts.items[d.ID()] = d
	return d
}

func admin() *userDomain.Identity { return &userDomain.Identity{ID: uuid.New(), Role: userDomain.RoleAdmin} }

func member(id uuid.UUID) *userDomain.Identity {
	return &userDomain.Identity{ID: id, Role: userDomain.RoleUser}
}

func TestCreateCoupon_FromPromotionOverridesRequest(t *testing.T) {
	f := newFixture(t)
	promo := f.addPromotion(pct(30), nil)
	caller := admin()

	dto, err := f.svc.CreateCoupon(context.Background(), caller, CreateCouponRequest{
		Code:       "IGNORED",
		Percentage: pct(5),
		ValidUntil: "2026-06-01",
		Promotion:  promo.ID().String(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Spring Sparkle", dto.Code)
	assert.Equal(t, 30.0, dto.Percentage)
	assert.Equal(t, promo.ID(), *dto.Promotion)
	assert.Equal(t, caller.ID, *dto.CreatedBy)
	assert.Equal(t, []string{events.CouponCreated}, f.publisher.types())
}

func TestCreateCoupon_MissingPromotionKeepsRequestValues(t *testing.T) {
	f := newFixture(t)

	dto, err := f.svc.CreateCoupon(context.Background(), nil, CreateCouponRequest{
		Code:       "WELCOME5",
		Percentage: pct(5),
		ValidUntil: "2026-06-01T00:00:00Z",
		Promotion:  uuid.NewString(),
	})
	require.NoError(t, err)

	assert.Equal(t, "WELCOME5", dto.Code)
	assert.Equal(t, 5.0, dto.Percentage)
	assert.Nil(t, dto.CreatedBy)
}

func TestCreateCoupon_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture) CreateCouponRequest
		wantMsg string
	}{
		{
			name: "promotion without percentage",
			setup: func(f *fixture) CreateCouponRequest {
				p := f.addPromotion(nil, nil)
				return CreateCouponRequest{Code: "X", Percentage: pct(10), ValidUntil: "2026-06-01", Promotion: p.ID().String()}
			},
			wantMsg: "Promotion does not have a valid percentage",
		},
		{
			name: "missing percentage",
			setup: func(*fixture) CreateCouponRequest {
				return CreateCouponRequest{Code: "X", ValidUntil: "2026-06-01"}
			},
			wantMsg: "percentage must be between 1 and 100",
		},
		{
			name: "blank code",
			setup: func(*fixture) CreateCouponRequest {
				return CreateCouponRequest{Code: "  ", Percentage: pct(10), ValidUntil: "2026-06-01"}
			},
			wantMsg: "coupon code is required",
		},
		{
			name: "bad date",
			setup: func(*fixture) CreateCouponRequest {
				return CreateCouponRequest{Code: "X", Percentage: pct(10), ValidUntil: "next week"}
			},
			wantMsg: "invalid validUntil format (use RFC3339 or YYYY-MM-DD)",
		},
		{
			name: "bad assignee",
			setup: func(*fixture) CreateCouponRequest {
				return CreateCouponRequest{Code: "X", Percentage: pct(10), ValidUntil: "2026-06-01", AssignedTo: []string{"abc"}}
			},
			wantMsg: "invalid assignedTo: abc",
		},
		{
			name: "code already active",
			setup: func(f *fixture) CreateCouponRequest {
				f.addCoupon(t, "TAKEN", 10, testNow.Add(time.Hour), nil, nil)
				return CreateCouponRequest{Code: "TAKEN", Percentage: pct(10), ValidUntil: "2026-06-01"}
			},
			wantMsg: "coupon code already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateCoupon(context.Background(), nil, tt.setup(f))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, tt.wantMsg, domain.MessageOf(err))
			assert.Zero(t, f.coupons.saves)
		})
	}
}

func TestCreateCoupon_ExpiredCodeCanBeReused(t *testing.T) {
	f := newFixture(t)
	f.addCoupon(t, "REUSE", 10, testNow.Add(-time.Minute), nil, nil)

	_, err := f.svc.CreateCoupon(context.Background(), nil, CreateCouponRequest{Code: "REUSE", Percentage: pct(15), ValidUntil: "2026-06-01"})
	require.NoError(t, err)
}

func TestCreateCoupon_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.CreateCoupon(context.Background(), nil, CreateCouponRequest{Code: "OK10", Percentage: pct(10), ValidUntil: "2026-06-01"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.coupons.saves)
}

func TestValidateCoupon_TrimmedPublicCoupon(t *testing.T) {
	f := newFixture(t)
	f.addCoupon(t, "SAVE10", 10, testNow.Add(24*time.Hour), nil, nil)

	res, err := f.svc.ValidateCoupon(context.Background(), nil, "SAVE10 ")
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Equal(t, 10.0, *res.Percentage)
	assert.Equal(t, "SAVE10", res.Coupon.Code)
}

func TestValidateCoupon_Outcomes(t *testing.T) {
	owner, stranger, promoMember := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name      string
		setup     func(f *fixture) string
		caller    *userDomain.Identity
		wantValid bool
		wantPct   float64
		wantErr   error
		wantMsg   string
	}{
		{
			name:    "blank code",
			setup:   func(*fixture) string { return "   " },
			wantErr: domain.ErrValidation,
			wantMsg: "code is required",
		},
		{
			name:    "unknown code",
			setup:   func(*fixture) string { return "NOPE" },
			wantErr: domain.ErrNotFound,
			wantMsg: "Coupon not found",
		},
		{
			name: "expired beats admin",
			setup: func(f *fixture) string {
				f.addCoupon(t, "OLD", 10, testNow, nil, nil)
				return "OLD"
			},
			caller:  admin(),
			wantErr: domain.ErrValidation,
			wantMsg: "Coupon expired",
		},
		{
			name: "private coupon stranger",
			setup: func(f *fixture) string {
				f.addCoupon(t, "MINE", 10, testNow.Add(time.Hour), []uuid.UUID{owner}, nil)
				return "MINE"
			},
			caller:  member(stranger),
			wantErr: domain.ErrForbidden,
			wantMsg: "Not authorized for this coupon",
		},
		{
			name: "private coupon anonymous",
			setup: func(f *fixture) string {
				f.addCoupon(t, "MINE", 10, testNow.Add(time.Hour), []uuid.UUID{owner}, nil)
				return "MINE"
			},
			wantErr: domain.ErrForbidden,
			wantMsg: "Not authorized for this coupon",
		},
		{
			name: "private coupon owner",
			setup: func(f *fixture) string {
				f.addCoupon(t, "MINE", 12, testNow.Add(time.Hour), []uuid.UUID{owner}, nil)
				return "MINE"
			},
			caller:    member(owner),
			wantValid: true,
			wantPct:   12,
		},
		{
			name: "promotion member gets promotion percentage",
			setup: func(f *fixture) string {
				p := f.addPromotion(pct(40), []uuid.UUID{promoMember})
				ref := p.ID()
				f.addCoupon(t, "PROMO", 10, testNow.Add(time.Hour), nil, &ref)
				return "PROMO"
			},
			caller:    member(promoMember),
			wantValid: true,
			wantPct:   40,
		},
		{
			name: "promotion list overrides coupon list",
			setup: func(f *fixture) string {
				p := f.addPromotion(pct(40), []uuid.UUID{promoMember})
				ref := p.ID()
				f.addCoupon(t, "PROMO", 10, testNow.Add(time.Hour), []uuid.UUID{owner}, &ref)
				return "PROMO"
			},
			caller:  member(owner),
			wantErr: domain.ErrForbidden,
			wantMsg: "Not authorized for this promotion",
		},
		{
			name: "discount reference uses coupon rules",
			setup: func(f *fixture) string {
				d := f.addDiscount("GOLD20", pct(20), nil)
				ref := d.ID()
				f.addCoupon(t, "GOLD20-0001-0042", 20, testNow.Add(time.Hour), []uuid.UUID{owner}, &ref)
				return "GOLD20-0001-0042"
			},
			caller:    member(owner),
			wantValid: true,
			wantPct:   20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code := tt.setup(f)

			res, err := f.svc.ValidateCoupon(context.Background(), tt.caller, code)
			require.NotNil(t, res)
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.wantMsg, res.Message)
				assert.Nil(t, res.Percentage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPct, *res.Percentage)
		})
	}
}

func TestAssignUsersToDiscountCoupons_DuplicateUserCreatesOnce(t *testing.T) {
	f := newFixture(t)
	d := f.addDiscount("GOLD20", pct(20), nil)
	u1 := uuid.MustParse("3f0c7e9a-1b2c-4d5e-8f90-a1b2c3d41234")

	res, err := f.svc.AssignUsersToDiscountCoupons(context.Background(), nil, d.ID(), []uuid.UUID{u1, u1})
	require.NoError(t, err)

	require.Len(t, res.Coupons, 2)
	assert.Equal(t, res.Coupons[0].ID, res.Coupons[1].ID)
	assert.Equal(t, 1, f.coupons.saves)
	assert.Equal(t, DiscountIssuedMessage, res.Message)

	c := res.Coupons[0]
	assert.Equal(t, "GOLD20-1234-0042", c.Code)
	assert.Equal(t, 20.0, c.Percentage)
	assert.Equal(t, testNow.Add(7*24*time.Hour), c.ValidUntil)
	assert.Equal(t, []uuid.UUID{u1}, c.AssignedTo)
	assert.Equal(t, d.ID(), *c.Promotion)
}

func TestAssignUsersToDiscountCoupons_SecondCallReusesCoupons(t *testing.T) {
	f := newFixture(t)
	until := testNow.Add(48 * time.Hour)
	d := f.addDiscount("SILVER", pct(15), &until)
	users := []uuid.UUID{uuid.New(), uuid.New()}

	first, err := f.svc.AssignUsersToDiscountCoupons(context.Background(), nil, d.ID(), users)
	require.NoError(t, err)
	second, err := f.svc.AssignUsersToDiscountCoupons(context.Background(), nil, d.ID(), users)
	require.NoError(t, err)

	for i := range users {
		assert.Equal(t, first.Coupons[i].ID, second.Coupons[i].ID)
		assert.Equal(t, until, first.Coupons[i].ValidUntil)
	}
	assert.Equal(t, 2, f.coupons.saves)
}

func TestAssignUsersToDiscountCoupons_ConcurrentCallsCreateOnce(t *testing.T) {
	f := newFixture(t)
	d := f.addDiscount("GOLD20", pct(20), nil)
	u := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AssignUsersToDiscountCoupons(context.Background(), nil, d.ID(), []uuid.UUID{u})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.coupons.saves)
}

func TestAssignUsersToDiscountCoupons_RetriesCodeCollision(t *testing.T) {
	f := newFixture(t)
	d := f.addDiscount("GOLD20", pct(20), nil)
	u := uuid.MustParse("3f0c7e9a-1b2c-4d5e-8f90-a1b2c3d41234")
	f.addCoupon(t, "GOLD20-1234-0042", 5, testNow.Add(time.Hour), nil, nil)

	suffixes := []int{42, 7}
	f.svc.randIntn = func(int) int {
		n := suffixes[0]
		suffixes = suffixes[1:]
		return n
	}

	res, err := f.svc.AssignUsersToDiscountCoupons(context.Background(), nil, d.ID(), []uuid.UUID{u})
	require.NoError(t, err)
	assert.Equal(t, "GOLD20-1234-0007", res.Coupons[0].Code)
}

func TestAssignUsersToDiscountCoupons_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	d := f.addDiscount("GOLD20", pct(20), nil)
	u := uuid.MustParse("3f0c7e9a-1b2c-4d5e-8f90-a1b2c3d41234")
	f.addCoupon(t, "GOLD20-1234-0042", 5, testNow.Add(time.Hour), nil, nil)

	_, err := f.svc.AssignUsersToDiscountCoupons(context.Background(), nil, d.ID(), []uuid.UUID{u})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAssignUsersToDiscountCoupons_Rejections(t *testing.T) {
	f := newFixture(t)
	noPct := f.addDiscount("EMPTY1", nil, nil)
	valid := f.addDiscount("GOLD20", pct(20), nil)
	u := uuid.New()

	tests := []struct {
		name       string
		discountID uuid.UUID
		userIDs    []uuid.UUID
		wantErr    error
		wantMsg    string
	}{
		{name: "missing discount id", userIDs: []uuid.UUID{u}, wantErr: domain.ErrValidation, wantMsg: "discountId and userIds[] are required"},
		{name: "no users", discountID: valid.ID(), wantErr: domain.ErrValidation, wantMsg: "discountId and userIds[] are required"},
		{name: "unknown discount", discountID: uuid.New(), userIDs: []uuid.UUID{u}, wantErr: domain.ErrNotFound, wantMsg: "Discount not found"},
		{name: "discount without percentage", discountID: noPct.ID(), userIDs: []uuid.UUID{u}, wantErr: domain.ErrValidation, wantMsg: "Discount does not have a valid percentage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AssignUsersToDiscountCoupons(context.Background(), nil, tt.discountID, tt.userIDs)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, domain.MessageOf(err))
		})
	}
	assert.Zero(t, f.coupons.saves)
}

type failingSecondSave struct {
	*memCoupons
}

func (f failingSecondSave) Save(ctx context.Context, c *couponDomain.Coupon) error {
	if f.saves >= 1 {
		return errors.New("disk full")
	}
	return f.memCoupons.Save(ctx, c)
}

func TestAssignUsersToDiscountCoupons_KeepsCouponsCreatedBeforeFailure(t *testing.T) {
	f := newFixture(t)
	d := f.addDiscount("GOLD20", pct(20), nil)
	f.svc.coupons = failingSecondSave{f.coupons}
	u1, u2 := uuid.New(), uuid.New()

	_, err := f.svc.AssignUsersToDiscountCoupons(context.Background(), nil, d.ID(), []uuid.UUID{u1, u2})
	require.Error(t, err)

	kept, err := f.coupons.FindByPromotionAndUser(context.Background(), d.ID(), u1)
	require.NoError(t, err)
	assert.True(t, kept.IsAssignedTo(u1))
}

func TestAssignUsersToCoupon(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	f.users.items = []*userDomain.User{userDomain.Reconstruct(b, "Meera", "meera@example.com", userDomain.RoleUser)}
	c := f.addCoupon(t, "SHARE", 10, testNow.Add(time.Hour), []uuid.UUID{a}, nil)

	dto, err := f.svc.AssignUsersToCoupon(context.Background(), c.ID(), []uuid.UUID{a, b, b})
	require.NoError(t, err)
	require.Len(t, dto.AssignedTo, 2)
	assert.Equal(t, a, dto.AssignedTo[0].ID)
	assert.Equal(t, "Meera", dto.AssignedTo[1].Name)
	assert.Equal(t, []string{events.CouponUsersAssigned}, f.publisher.types())

	_, err = f.svc.AssignUsersToCoupon(context.Background(), c.ID(), []uuid.UUID{b})
	require.NoError(t, err)
	assert.Len(t, f.publisher.types(), 1)

	_, err = f.svc.AssignUsersToCoupon(context.Background(), uuid.New(), []uuid.UUID{a})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "Coupon not found", domain.MessageOf(err))
}

func TestListCouponsForUser(t *testing.T) {
	f := newFixture(t)
	u1, u2 := uuid.New(), uuid.New()
	live := f.addCoupon(t, "LIVE", 10, testNow.Add(time.Hour), []uuid.UUID{u2}, nil)
	f.addCoupon(t, "GONE", 10, testNow, []uuid.UUID{u2}, nil)

	_, err := f.svc.ListCouponsForUser(context.Background(), member(u1), u2)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, "Not authorized to view these coupons", domain.MessageOf(err))

	_, err = f.svc.ListCouponsForUser(context.Background(), nil, u2)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.svc.ListCouponsForUser(context.Background(), member(u2), u2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, live.ID(), got[0].ID)
}

func TestListAllCoupons_ResolvesReferences(t *testing.T) {
	f := newFixture(t)
	u := uuid.New()
	f.users.items = []*userDomain.User{userDomain.Reconstruct(u, "Kiran", "kiran@example.com", "")}
	promo := f.addPromotion(pct(25), nil)
	disc := f.addDiscount("GOLD20", pct(20), nil)
	promoRef, discRef, goneRef := promo.ID(), disc.ID(), uuid.New()
	f.addCoupon(t, "P", 25, testNow.Add(time.Hour), []uuid.UUID{u}, &promoRef)
	f.addCoupon(t, "D", 20, testNow.Add(time.Hour), nil, &discRef)
	f.addCoupon(t, "G", 20, testNow.Add(time.Hour), []uuid.UUID{uuid.New()}, &goneRef)

	got, err := f.svc.ListAllCoupons(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	byCode := map[string]*CouponDetailDTO{}
	for _, c := range got {
		byCode[c.Code] = c
	}
	assert.Equal(t, "promotion", byCode["P"].Promotion.Kind)
	assert.Equal(t, "Spring Sparkle", byCode["P"].Promotion.Title)
	assert.Equal(t, "kiran@example.com", byCode["P"].AssignedTo[0].Email)
	assert.Equal(t, "discount", byCode["D"].Promotion.Kind)
	assert.Equal(t, "GOLD20", byCode["D"].Promotion.Code)
	assert.Equal(t, "unknown", byCode["G"].Promotion.Kind)
	assert.Empty(t, byCode["G"].AssignedTo[0].Name)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	f.users.items = []*userDomain.User{
		userDomain.Reconstruct(uuid.New(), "Asha", "asha@example.com", userDomain.RoleAdmin),
		userDomain.Reconstruct(uuid.New(), "Ravi", "ravi@example.com", userDomain.RoleUser),
	}

	got, err := f.svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Asha", got[0].Name)
	assert.Equal(t, "ravi@example.com", got[1].Email)
}
