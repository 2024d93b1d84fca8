// Package events defines the Kafka topics, CloudEvent types and payloads
// exchanged between the coupon service and its neighbours.
package events

import "github.com/google/uuid"

// Topics.
const (
	TopicCouponEvents   = "coupon.events"
	TopicDiscountEvents = "discount.events"
)

// Event types published on TopicCouponEvents.
const (
	CouponCreated        = "coupon.created"
	CouponUsersAssigned  = "coupon.users_assigned"
	CouponDiscountIssued = "coupon.discount_issued"
)

// Event types consumed from TopicDiscountEvents.
const (
	DiscountUsersAssigned = "discount.users_assigned"
)

// Source is the CloudEvents source attribute for events emitted here.
const Source = "service-coupon"

// CouponCreatedEvent is emitted after a coupon is persisted.
type CouponCreatedEvent struct {
	CouponID     uuid.UUID   `json:"coupon_id"`
	Code         string      `json:"code"`
	Percentage   float64     `json:"percentage"`
	AssignedTo   []uuid.UUID `json:"assigned_to"`
	PromotionRef *uuid.UUID  `json:"promotion_ref,omitempty"`
	CreatedBy    *uuid.UUID  `json:"created_by,omitempty"`
}

// CouponUsersAssignedEvent is emitted after users are added to a coupon.
type CouponUsersAssignedEvent struct {
	CouponID uuid.UUID   `json:"coupon_id"`
	UserIDs  []uuid.UUID `json:"user_ids"`
}

// CouponDiscountIssuedEvent is emitted after a batch of per-user coupons is
// issued from a discount.
type CouponDiscountIssuedEvent struct {
	DiscountID uuid.UUID   `json:"discount_id"`
	UserIDs    []uuid.UUID `json:"user_ids"`
	CouponIDs  []uuid.UUID `json:"coupon_ids"`
	Created    int         `json:"created"`
}

// DiscountUsersAssignedEvent asks for per-user coupons to be issued from a discount.
type DiscountUsersAssignedEvent struct {
	DiscountID uuid.UUID   `json:"discount_id"`
	UserIDs    []uuid.UUID `json:"user_ids"`
}
