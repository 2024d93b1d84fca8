package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	promotionDomain "github.com/lumiere-jewels/service-coupon/internal/domain/promotion"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

// PromotionModel is the GORM model for the promotions table.
type PromotionModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"type:varchar(50);not null"`
	Description string    `gorm:"type:varchar(200);not null"`
	Percentage  *float64
	StartDate   time.Time `gorm:"not null"`
	EndDate     time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`

	Assignments []PromotionAssignmentModel `gorm:"foreignKey:PromotionID"`
}

// TableName sets the table name.
func (PromotionModel) TableName() string { return "promotions" }

// PromotionAssignmentModel is the GORM model for the promotion_assignments table.
type PromotionAssignmentModel struct {
	PromotionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (PromotionAssignmentModel) TableName() string { return "promotion_assignments" }

// GormPromotionRepository implements PromotionRepository using GORM.
type GormPromotionRepository struct {
	db *gorm.DB
}

// NewGormPromotionRepository creates a new GormPromotionRepository.
func NewGormPromotionRepository(db *gorm.DB) *GormPromotionRepository {
	return &GormPromotionRepository{db: db}
}

// Save persists a new promotion and its assignments.
func (r *GormPromotionRepository) Save(ctx context.Context, p *promotionDomain.Promotion) error {
	model := toPromotionModel(p)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return errors.Wrap(err, "insert promotion")
		}
		if len(model.Assignments) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Assignments).Error
	})
}

// FindByID returns a promotion by ID.
func (r *GormPromotionRepository) FindByID(ctx context.Context, id uuid.UUID) (*promotionDomain.Promotion, error) {
	var model PromotionModel
	if err := r.withAssignments(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "promotion", id.String())
	}
	return toPromotionDomain(&model), nil
}

// FindByIDs returns the promotions whose IDs are in ids. Unknown IDs are skipped.
func (r *GormPromotionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*promotionDomain.Promotion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []PromotionModel
	if err := r.withAssignments(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	return toPromotionDomains(models), nil
}

// ListAll returns every promotion, newest first.
func (r *GormPromotionRepository) ListAll(ctx context.Context) ([]*promotionDomain.Promotion, error) {
	var models []PromotionModel
	if err := r.withAssignments(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toPromotionDomains(models), nil
}

// Update writes the promotion's campaign fields. Assignments are managed by
// AddAssignees.
func (r *GormPromotionRepository) Update(ctx context.Context, p *promotionDomain.Promotion) error {
	result := r.db.WithContext(ctx).Model(&PromotionModel{}).Where("id = ?", p.ID()).Updates(map[string]interface{}{
		"title":       p.Title(),
		"description": p.Description(),
		"percentage":  p.Percentage(),
		"start_date":  p.StartDate(),
		"end_date":    p.EndDate(),
		"updated_at":  p.UpdatedAt(),
	})
	if result.Error != nil {
		return errors.Wrap(result.Error, "update promotion")
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("promotion", p.ID().String())
	}
	return nil
}

// Delete removes a promotion and its assignments.
func (r *GormPromotionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("promotion_id = ?", id).Delete(&PromotionAssignmentModel{}).Error; err != nil {
			return errors.Wrap(err, "delete promotion assignments")
		}
		result := tx.Where("id = ?", id).Delete(&PromotionModel{})
		if result.Error != nil {
			return errors.Wrap(result.Error, "delete promotion")
		}
		if result.RowsAffected == 0 {
			return domain.NewNotFoundError("promotion", id.String())
		}
		return nil
	})
}

// AddAssignees unions userIDs into the promotion's assignment set.
func (r *GormPromotionRepository) AddAssignees(ctx context.Context, id uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]PromotionAssignmentModel, len(userIDs))
	for i, userID := range userIDs {
		rows[i] = PromotionAssignmentModel{PromotionID: id, UserID: userID, CreatedAt: now}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return errors.Wrap(err, "insert promotion assignments")
		}
		return tx.Model(&PromotionModel{}).Where("id = ?", id).Update("updated_at", now).Error
	})
}

func (r *GormPromotionRepository) withAssignments(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Assignments", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	})
}

func toPromotionModel(p *promotionDomain.Promotion) PromotionModel {
	assignments := make([]PromotionAssignmentModel, len(p.AssignedTo()))
	for i, userID := range p.AssignedTo() {
		assignments[i] = PromotionAssignmentModel{PromotionID: p.ID(), UserID: userID, CreatedAt: p.UpdatedAt()}
	}
	return PromotionModel{
		ID:          p.ID(),
		Title:       p.Title(),
		Description: p.Description(),
		Percentage:  p.Percentage(),
		StartDate:   p.StartDate(),
		EndDate:     p.EndDate(),
		CreatedAt:   p.CreatedAt(),
		UpdatedAt:   p.UpdatedAt(),
		Assignments: assignments,
	}
}

func toPromotionDomain(m *PromotionModel) *promotionDomain.Promotion {
	assigned := make([]uuid.UUID, len(m.Assignments))
	for i, a := range m.Assignments {
		assigned[i] = a.UserID
	}
	return promotionDomain.Reconstruct(
		m.ID, m.Title, m.Description, m.Percentage,
		m.StartDate.UTC(), m.EndDate.UTC(), assigned,
		m.CreatedAt, m.UpdatedAt,
	)
}

func toPromotionDomains(models []PromotionModel) []*promotionDomain.Promotion {
	out := make([]*promotionDomain.Promotion, len(models))
	for i := range models {
		out[i] = toPromotionDomain(&models[i])
	}
	return out
}
