package promotion

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

// MaxDuration is the longest a promotion may run.
const MaxDuration = 90 * 24 * time.Hour

// Promotion is a marketing campaign with an optional list of entitled users.
type Promotion struct {
	id          uuid.UUID
	title       string
	description string
	percentage  *float64
	startDate   time.Time
	endDate     time.Time
	assignedTo  []uuid.UUID
	createdAt   time.Time
	updatedAt   time.Time
}

// NewPromotion validates the campaign fields and creates a promotion.
func NewPromotion(title, description string, percentage float64, startDate, endDate time.Time, assignedTo []uuid.UUID, now time.Time) (*Promotion, error) {
	title, description, err := validateFields(title, description, percentage, startDate, endDate)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	p := &Promotion{
		id:          uuid.New(),
		title:       title,
		description: description,
		percentage:  &percentage,
		startDate:   startDate.UTC(),
		endDate:     endDate.UTC(),
		createdAt:   now,
		updatedAt:   now,
	}
	p.AssignUsers(assignedTo, now)
	return p, nil
}

// Update replaces the campaign fields under the same rules as NewPromotion.
// The entitlement list is left untouched.
func (p *Promotion) Update(title, description string, percentage float64, startDate, endDate, now time.Time) error {
	title, description, err := validateFields(title, description, percentage, startDate, endDate)
	if err != nil {
		return err
	}
	p.title = title
	p.description = description
	p.percentage = &percentage
	p.startDate = startDate.UTC()
	p.endDate = endDate.UTC()
	p.updatedAt = now.UTC()
	return nil
}

func validateFields(title, description string, percentage float64, startDate, endDate time.Time) (string, string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	switch {
	case title == "":
		return "", "", domain.NewValidationError("promotion title is required")
	case utf8.RuneCountInString(title) > 50:
		return "", "", domain.NewValidationError("title cannot exceed 50 characters")
	case startsWithDigit(title):
		return "", "", domain.NewValidationError("title cannot start with a number")
	case description == "":
		return "", "", domain.NewValidationError("description is required")
	case utf8.RuneCountInString(description) > 200:
		return "", "", domain.NewValidationError("description cannot exceed 200 characters")
	case startsWithDigit(description):
		return "", "", domain.NewValidationError("description cannot start with a number")
	case percentage < 1 || percentage > 100:
		return "", "", domain.NewValidationError("percentage must be between 1 and 100")
	case startDate.IsZero() || endDate.IsZero():
		return "", "", domain.NewValidationError("start and end dates are required")
	case !endDate.After(startDate):
		return "", "", domain.NewValidationError("end date must be after start date")
	case endDate.Sub(startDate) > MaxDuration:
		return "", "", domain.NewValidationError("promotion cannot exceed 90 days")
	}
	return title, description, nil
}

// Reconstruct rebuilds a Promotion from persistence.
func Reconstruct(id uuid.UUID, title, description string, percentage *float64, startDate, endDate time.Time, assignedTo []uuid.UUID, createdAt, updatedAt time.Time) *Promotion {
	return &Promotion{
		id: id, title: title, description: description, percentage: percentage,
		startDate: startDate, endDate: endDate, assignedTo: assignedTo,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// AssignUsers unions ids into the entitlement list and returns how many were new.
func (p *Promotion) AssignUsers(ids []uuid.UUID, now time.Time) int {
	seen := make(map[uuid.UUID]struct{}, len(p.assignedTo))
	for _, id := range p.assignedTo {
		seen[id] = struct{}{}
	}
	added := 0
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		p.assignedTo = append(p.assignedTo, id)
		added++
	}
	if added > 0 {
		p.updatedAt = now.UTC()
	}
	return added
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsDigit(r)
}

// Getters.
func (p *Promotion) ID() uuid.UUID           { return p.id }
func (p *Promotion) Title() string           { return p.title }
func (p *Promotion) Description() string     { return p.description }
func (p *Promotion) Percentage() *float64    { return p.percentage }
func (p *Promotion) StartDate() time.Time    { return p.startDate }
func (p *Promotion) EndDate() time.Time      { return p.endDate }
func (p *Promotion) AssignedTo() []uuid.UUID { return p.assignedTo }
func (p *Promotion) CreatedAt() time.Time    { return p.createdAt }
func (p *Promotion) UpdatedAt() time.Time    { return p.updatedAt }

// PromotionRepository defines persistence operations for promotions.
type PromotionRepository interface {
	Save(ctx context.Context, p *Promotion) error
	FindByID(ctx context.Context, id uuid.UUID) (*Promotion, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Promotion, error)
	ListAll(ctx context.Context) ([]*Promotion, error)
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddAssignees(ctx context.Context, id uuid.UUID, userIDs []uuid.UUID) error
}
