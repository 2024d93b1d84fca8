package application

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	couponDomain "github.com/lumiere-jewels/service-coupon/internal/domain/coupon"
	discountDomain "github.com/lumiere-jewels/service-coupon/internal/domain/discount"
	promotionDomain "github.com/lumiere-jewels/service-coupon/internal/domain/promotion"
	userDomain "github.com/lumiere-jewels/service-coupon/internal/domain/user"
)

// ChartDTO is the labels/datasets shape consumed by the admin charts.
type ChartDTO struct {
	Labels   []string     `json:"labels"`
	Datasets []DatasetDTO `json:"datasets"`
}

// DatasetDTO is one series of a chart.
type DatasetDTO struct {
	Label string  `json:"label"`
	Data  []int64 `json:"data"`
}

// ReportService aggregates coupon activity for the admin dashboard.
type ReportService struct {
	coupons    couponDomain.CouponRepository
	promotions promotionDomain.PromotionRepository
	discounts  discountDomain.DiscountRepository
	users      userDomain.Repository
	logger     *zap.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(
	coupons couponDomain.CouponRepository,
	promotions promotionDomain.PromotionRepository,
	discounts discountDomain.DiscountRepository,
	users userDomain.Repository,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{coupons: coupons, promotions: promotions, discounts: discounts, users: users, logger: logger}
}

// DiscountUsage reports coupons issued per discount, labelled by discount code.
func (s *ReportService) DiscountUsage(ctx context.Context) (*ChartDTO, error) {
	counts, err := s.coupons.CountByPromotionRef(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count coupons by reference")
	}
	discounts, err := s.discounts.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}

	labels := make([]string, len(discounts))
	data := make([]int64, len(discounts))
	for i, d := range discounts {
		labels[i] = d.Code()
		data[i] = counts[d.ID()]
	}
	return sortedChart("Coupons issued", labels, data), nil
}

// PromotionPerformance reports coupons per promotion, labelled by title.
func (s *ReportService) PromotionPerformance(ctx context.Context) (*ChartDTO, error) {
	counts, err := s.coupons.CountByPromotionRef(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count coupons by reference")
	}
	promos, err := s.promotions.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}

	labels := make([]string, len(promos))
	data := make([]int64, len(promos))
	for i, p := range promos {
		labels[i] = p.Title()
		data[i] = counts[p.ID()]
	}
	return sortedChart("Coupons created", labels, data), nil
}

// UserActivity reports coupon assignments per user, labelled by user name.
// Users without coupons are left out.
func (s *ReportService) UserActivity(ctx context.Context) (*ChartDTO, error) {
	counts, err := s.coupons.CountByAssignee(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count coupons by assignee")
	}
	ids := make([]uuid.UUID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load users")
	}

	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID()] = u.Name()
	}
	labels := make([]string, 0, len(counts))
	data := make([]int64, 0, len(counts))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			name = id.String()
		}
		labels = append(labels, name)
		data = append(data, counts[id])
	}
	return sortedChart("Coupons assigned", labels, data), nil
}

// sortedChart orders entries by count descending, then label.
func sortedChart(series string, labels []string, data []int64) *ChartDTO {
	idx := make([]int, len(labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if data[idx[a]] != data[idx[b]] {
			return data[idx[a]] > data[idx[b]]
		}
		return labels[idx[a]] < labels[idx[b]]
	})

	chart := &ChartDTO{
		Labels:   make([]string, len(idx)),
		Datasets: []DatasetDTO{{Label: series, Data: make([]int64, len(idx))}},
	}
	for i, j := range idx {
		chart.Labels[i] = labels[j]
		chart.Datasets[0].Data[i] = data[j]
	}
	return chart
}
