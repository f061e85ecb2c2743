package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/avwx/portal/internal/infrastructure/logger"
	"github.com/avwx/portal/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormAccountRepository implements AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Create creates a new account with its tokens
func (r *GormAccountRepository) Create(ctx context.Context, acct *account.Account) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.AccountModelFromDomain(acct)
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return syncTokens(tx, acct)
	})
	if err != nil {
		return err
	}
	publishEvents(ctx, acct)
	return nil
}

// Save persists changes to an account and replaces its token set
func (r *GormAccountRepository) Save(ctx context.Context, acct *account.Account) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.AccountModelFromDomain(acct)
		result := tx.Omit("Tokens", "Plan").Save(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return syncTokens(tx, acct)
	})
	if err != nil {
		return err
	}
	publishEvents(ctx, acct)
	return nil
}

// publishEvents drains the aggregate's pending domain events to the
// request-scoped structured log once the transaction has committed.
func publishEvents(ctx context.Context, acct *account.Account) {
	events := acct.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	log := logger.FromContext(ctx)
	for _, event := range events {
		log.Info("Domain event",
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_type", event.AggregateType()),
			zap.String("aggregate_id", event.AggregateID().String()),
			zap.Time("occurred_at", event.OccurredAt()))
	}
	acct.ClearDomainEvents()
}

// syncTokens makes the stored token rows match the aggregate's token set
func syncTokens(tx *gorm.DB, acct *account.Account) error {
	keep := make([]uuid.UUID, 0, len(acct.Tokens))
	for i := range acct.Tokens {
		keep = append(keep, acct.Tokens[i].ID)
	}

	query := tx.Where("account_id = ?", acct.ID)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	if err := query.Delete(&models.TokenModel{}).Error; err != nil {
		return err
	}

	for i := range acct.Tokens {
		model := models.TokenModelFromDomain(acct.ID, &acct.Tokens[i])
		if err := tx.Save(model).Error; err != nil {
			return err
		}
	}

	return nil
}

// Delete permanently removes an account with its tokens and usage rows
func (r *GormAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.TokenUsageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.TokenModel{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.AccountModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// FindByID finds an account by ID with tokens and plan loaded
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return r.findOne(ctx, "accounts.id = ?", id)
}

// FindByEmail finds an account by email with tokens and plan loaded
func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	if email == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "LOWER(email) = ?", strings.ToLower(email))
}

// FindByCustomerID finds the account holding a billing customer reference
func (r *GormAccountRepository) FindByCustomerID(ctx context.Context, customerID string) (*account.Account, error) {
	if customerID == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "customer_id = ?", customerID)
}

// FindByTokenValue finds the account owning a token value
func (r *GormAccountRepository) FindByTokenValue(ctx context.Context, value string) (*account.Account, error) {
	if value == "" {
		return nil, shared.ErrNotFound
	}

	var token models.TokenModel
	if err := r.db.WithContext(ctx).Where("value = ?", value).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return r.FindByID(ctx, token.AccountID)
}

func (r *GormAccountRepository) findOne(ctx context.Context, cond string, args ...any) (*account.Account, error) {
	var model models.AccountModel
	err := r.db.WithContext(ctx).
		Preload("Tokens", func(db *gorm.DB) *gorm.DB {
			return db.Order("tokens.created_at ASC")
		}).
		Preload("Plan").
		Where(cond, args...).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return model.ToDomain(), nil
}

// ExistsByEmail checks if an email is already registered
func (r *GormAccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TokenValueExists checks whether any account holds the token value
func (r *GormAccountRepository) TokenValueExists(ctx context.Context, value string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.TokenModel{}).
		Where("value = ?", value).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ account.AccountRepository = (*GormAccountRepository)(nil)
