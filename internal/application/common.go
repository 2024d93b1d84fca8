package application

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	couponDomain "github.com/lumiere-jewels/service-coupon/internal/domain/coupon"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
	"github.com/lumiere-jewels/service-coupon/pkg/events"
	"github.com/lumiere-jewels/service-coupon/pkg/kafka"
)

// EventPublisher publishes CloudEvents. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// publishEvent emits an event on the coupon topic. Failures are logged and
// never surface to the caller.
func publishEvent(ctx context.Context, publisher EventPublisher, logger *zap.Logger, subject uuid.UUID, eventType string, data interface{}) {
	if publisher == nil {
		return
	}
	ce, err := kafka.NewCloudEvent(events.Source, eventType, data)
	if err != nil {
		logger.Error("failed to build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	ce.Subject = subject.String()
	if err := publisher.PublishEvent(ctx, events.TopicCouponEvents, ce); err != nil {
		logger.Error("failed to publish event",
			zap.String("type", eventType),
			zap.String("subject", ce.Subject),
			zap.Error(err),
		)
	}
}

// ParseUUID parses an id, reporting field in the validation message. An empty
// string yields uuid.Nil.
func ParseUUID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("invalid " + field + ": " + raw)
	}
	return id, nil
}

// ParseUUIDs parses a list of ids.
func ParseUUIDs(raw []string, field string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseUUID(r, field)
		if err != nil {
			return nil, err
		}
		if id == uuid.Nil {
			return nil, domain.NewValidationError(field + " must not contain empty ids")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalUUID(raw, field string) (*uuid.UUID, error) {
	id, err := ParseUUID(raw, field)
	if err != nil || id == uuid.Nil {
		return nil, err
	}
	return &id, nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// parseTime accepts RFC3339 timestamps as well as the date and
// datetime-local values sent by HTML forms, which are read as UTC.
func parseTime(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.NewValidationError("invalid " + field + " format (use RFC3339 or YYYY-MM-DD)")
}

// lockedIntn makes a *rand.Rand safe for concurrent use.
func lockedIntn(rng *rand.Rand) func(n int) int {
	var mu sync.Mutex
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return rng.Intn(n)
	}
}

// resolve turns coupons into detail DTOs, batching the user, promotion and
// discount lookups.
func (s *CouponService) resolve(ctx context.Context, coupons []*couponDomain.Coupon, now time.Time) ([]*CouponDetailDTO, error) {
	userIDs := make(map[uuid.UUID]struct{})
	refIDs := make(map[uuid.UUID]struct{})
	for _, c := range coupons {
		for _, id := range c.AssignedTo() {
			userIDs[id] = struct{}{}
		}
		if ref := c.PromotionRef(); ref != nil {
			refIDs[*ref] = struct{}{}
		}
	}

	users, err := s.users.FindByIDs(ctx, keys(userIDs))
	if err != nil {
		return nil, err
	}
	userByID := make(map[uuid.UUID]UserSummaryDTO, len(users))
	for _, u := range users {
		userByID[u.ID()] = toUserSummary(u)
	}

	refs := make(map[uuid.UUID]*PromotionRefDTO, len(refIDs))
	if len(refIDs) > 0 {
		promos, err := s.promotions.FindByIDs(ctx, keys(refIDs))
		if err != nil {
			return nil, err
		}
		for _, p := range promos {
			end := p.EndDate()
			refs[p.ID()] = &PromotionRefDTO{
				ID: p.ID(), Kind: "promotion", Title: p.Title(),
				Percentage: p.Percentage(), ValidUntil: &end, AssignedTo: p.AssignedTo(),
			}
		}
		discounts, err := s.discounts.FindByIDs(ctx, keys(refIDs))
		if err != nil {
			return nil, err
		}
		for _, d := range discounts {
			refs[d.ID()] = &PromotionRefDTO{
				ID: d.ID(), Kind: "discount", Code: d.Code(),
				Percentage: d.Percentage(), ValidUntil: d.ValidUntil(),
			}
		}
	}

	out := make([]*CouponDetailDTO, len(coupons))
	for i, c := range coupons {
		assigned := make([]UserSummaryDTO, 0, len(c.AssignedTo()))
		for _, id := range c.AssignedTo() {
			if u, ok := userByID[id]; ok {
				assigned = append(assigned, u)
				continue
			}
			assigned = append(assigned, UserSummaryDTO{ID: id})
		}
		var ref *PromotionRefDTO
		if id := c.PromotionRef(); id != nil {
			ref = refs[*id]
			if ref == nil {
				ref = &PromotionRefDTO{ID: *id, Kind: "unknown"}
			}
		}
		out[i] = &CouponDetailDTO{
			ID:         c.ID(),
			Code:       c.Code(),
			Percentage: c.Percentage(),
			ValidUntil: c.ValidUntil(),
			Expired:    c.IsExpired(now),
			AssignedTo: assigned,
			Promotion:  ref,
			CreatedBy:  c.CreatedBy(),
			CreatedAt:  c.CreatedAt(),
		}
	}
	return out, nil
}

func keys(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
