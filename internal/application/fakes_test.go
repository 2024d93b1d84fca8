package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	couponDomain "github.com/lumiere-jewels/service-coupon/internal/domain/coupon"
	discountDomain "github.com/lumiere-jewels/service-coupon/internal/domain/discount"
	promotionDomain "github.com/lumiere-jewels/service-coupon/internal/domain/promotion"
	userDomain "github.com/lumiere-jewels/service-coupon/internal/domain/user"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
	"github.com/lumiere-jewels/service-coupon/pkg/kafka"
)

type memCoupons struct {
	mu      sync.Mutex
	coupons []*couponDomain.Coupon
	saveErr error
	saves   int
}

func (m *memCoupons) Save(_ context.Context, c *couponDomain.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.coupons = append(m.coupons, c)
	return nil
}

func (m *memCoupons) FindByID(_ context.Context, id uuid.UUID) (*couponDomain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if c.ID() == id {
			return c, nil
		}
	}
	return nil, domain.NewNotFoundError("coupon", id.String())
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*couponDomain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.coupons) - 1; i >= 0; i-- {
		if m.coupons[i].Code() == code {
			return m.coupons[i], nil
		}
	}
	return nil, domain.NewNotFoundError("coupon", code)
}

func (m *memCoupons) ExistsActiveCode(_ context.Context, code string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if c.Code() == code && !c.IsExpired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCoupons) FindByPromotionAndUser(_ context.Context, ref, userID uuid.UUID) (*couponDomain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if c.PromotionRef() != nil && *c.PromotionRef() == ref && c.IsAssignedTo(userID) {
			return c, nil
		}
	}
	return nil, domain.NewNotFoundError("coupon", ref.String())
}

func (m *memCoupons) AddAssignees(_ context.Context, id uuid.UUID, userIDs []uuid.UUID) error {
	return nil
}

func (m *memCoupons) ListAll(_ context.Context) ([]*couponDomain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*couponDomain.Coupon(nil), m.coupons...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, nil
}

func (m *memCoupons) ListActiveByUser(_ context.Context, userID uuid.UUID, now time.Time) ([]*couponDomain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*couponDomain.Coupon
	for _, c := range m.coupons {
		if c.IsAssignedTo(userID) && !c.IsExpired(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCoupons) CountByPromotionRef(_ context.Context) (map[uuid.UUID]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]int64)
	for _, c := range m.coupons {
		if c.PromotionRef() != nil {
			out[*c.PromotionRef()]++
		}
	}
	return out, nil
}

func (m *memCoupons) CountByAssignee(_ context.Context) (map[uuid.UUID]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]int64)
	for _, c := range m.coupons {
		for _, id := range c.AssignedTo() {
			out[id]++
		}
	}
	return out, nil
}

type memPromotions struct {
	items map[uuid.UUID]*promotionDomain.Promotion
}

func newMemPromotions(ps ...*promotionDomain.Promotion) *memPromotions {
	m := &memPromotions{items: make(map[uuid.UUID]*promotionDomain.Promotion)}
	for _, p := range ps {
		m.items[p.ID()] = p
	}
	return m
}

func (m *memPromotions) Save(_ context.Context, p *promotionDomain.Promotion) error {
	m.items[p.ID()] = p
	return nil
}

func (m *memPromotions) FindByID(_ context.Context, id uuid.UUID) (*promotionDomain.Promotion, error) {
	if p, ok := m.items[id]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("promotion", id.String())
}

func (m *memPromotions) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*promotionDomain.Promotion, error) {
	var out []*promotionDomain.Promotion
	for _, id := range ids {
		if p, ok := m.items[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPromotions) ListAll(_ context.Context) ([]*promotionDomain.Promotion, error) {
	var out []*promotionDomain.Promotion
	for _, p := range m.items {
		out = append(out, p)
	}
	return out, nil
}

func (m *memPromotions) Update(_ context.Context, p *promotionDomain.Promotion) error {
	if _, ok := m.items[p.ID()]; !ok {
		return domain.NewNotFoundError("promotion", p.ID().String())
	}
	m.items[p.ID()] = p
	return nil
}

func (m *memPromotions) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return domain.NewNotFoundError("promotion", id.String())
	}
	delete(m.items, id)
	return nil
}

func (m *memPromotions) AddAssignees(_ context.Context, _ uuid.UUID, _ []uuid.UUID) error {
	return nil
}

type memDiscounts struct {
	items map[uuid.UUID]*discountDomain.Discount
}

func newMemDiscounts(ds ...*discountDomain.Discount) *memDiscounts {
	m := &memDiscounts{items: make(map[uuid.UUID]*discountDomain.Discount)}
	for _, d := range ds {
		m.items[d.ID()] = d
	}
	return m
}

func (m *memDiscounts) Save(_ context.Context, d *discountDomain.Discount) error {
	m.items[d.ID()] = d
	return nil
}

func (m *memDiscounts) FindByID(_ context.Context, id uuid.UUID) (*discountDomain.Discount, error) {
	if d, ok := m.items[id]; ok {
		return d, nil
	}
	return nil, domain.NewNotFoundError("discount", id.String())
}

func (m *memDiscounts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*discountDomain.Discount, error) {
	var out []*discountDomain.Discount
	for _, id := range ids {
		if d, ok := m.items[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDiscounts) ListAll(_ context.Context) ([]*discountDomain.Discount, error) {
	var out []*discountDomain.Discount
	for _, d := range m.items {
		out = append(out, d)
	}
	return out, nil
}

func (m *memDiscounts) Update(_ context.Context, d *discountDomain.Discount) error {
	if _, ok := m.items[d.ID()]; !ok {
		return domain.NewNotFoundError("discount", d.ID().String())
	}
	m.items[d.ID()] = d
	return nil
}

func (m *memDiscounts) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return domain.NewNotFoundError("discount", id.String())
	}
	delete(m.items, id)
	return nil
}

type memUsers struct {
	items []*userDomain.User
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*userDomain.User, error) {
	for _, u := range m.items {
		if u.ID() == id {
			return u, nil
		}
	}
	return nil, domain.NewNotFoundError("user", id.String())
}

func (m *memUsers) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*userDomain.User, error) {
	var out []*userDomain.User
	for _, id := range ids {
		for _, u := range m.items {
			if u.ID() == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (m *memUsers) ListAll(_ context.Context) ([]*userDomain.User, error) {
	return m.items, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, e kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
