package persistence

import (
	"context"
	"errors"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/avwx/portal/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPlanRepository implements PlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// FindByKey finds a plan by its stable key
func (r *GormPlanRepository) FindByKey(ctx context.Context, key string) (*account.Plan, error) {
	var model models.PlanModel
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripePriceID finds the plan bound to a billing price reference
func (r *GormPlanRepository) FindByStripePriceID(ctx context.Context, priceID string) (*account.Plan, error) {
	if priceID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.PlanModel
	if err := r.db.WithContext(ctx).Where("stripe_price_id = ?", priceID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns the full catalog ordered by level
func (r *GormPlanRepository) FindAll(ctx context.Context) ([]*account.Plan, error) {
	var planModels []*models.PlanModel
	if err := r.db.WithContext(ctx).Order("level ASC").Find(&planModels).Error; err != nil {
		return nil, err
	}

	plans := make([]*account.Plan, len(planModels))
	for i, model := range planModels {
		plans[i] = model.ToDomain()
	}
	return plans, nil
}

// Save inserts or updates a catalog entry, keyed by the plan key
func (r *GormPlanRepository) Save(ctx context.Context, plan *account.Plan) error {
	model := models.PlanModelFromDomain(plan)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "level", "price_cents", "call_limit", "stripe_price_id", "updated_at"}),
		}).
		Create(model).Error
}

var _ account.PlanRepository = (*GormPlanRepository)(nil)
