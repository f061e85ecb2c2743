package persistence

import (
	"context"
	"time"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUsageStore implements UsageStore over the daily counter table
type GormUsageStore struct {
	db *gorm.DB
}

// NewGormUsageStore creates a new GormUsageStore
func NewGormUsageStore(db *gorm.DB) *GormUsageStore {
	return &GormUsageStore{db: db}
}

// CountsByDay returns daily call counts since the given day, keyed by
// UTC day then token ID
func (s *GormUsageStore) CountsByDay(ctx context.Context, accountID uuid.UUID, since time.Time) (map[time.Time]map[uuid.UUID]int64, error) {
	var rows []models.TokenUsageModel
	if err := s.db.WithContext(ctx).
		Where("account_id = ? AND day >= ?", accountID, since).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[time.Time]map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		day := time.Date(row.Day.Year(), row.Day.Month(), row.Day.Day(), 0, 0, 0, 0, time.UTC)
		byToken, ok := counts[day]
		if !ok {
			byToken = make(map[uuid.UUID]int64)
			counts[day] = byToken
		}
		byToken[row.TokenID] += row.Calls
	}

	return counts, nil
}

// Record adds calls to a token's counter for the given UTC day.
// The (token, day) row is upserted so concurrent writers accumulate.
func (s *GormUsageStore) Record(ctx context.Context, accountID, tokenID uuid.UUID, day time.Time, calls int64) error {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	row := models.TokenUsageModel{
		ID:        uuid.New(),
		AccountID: accountID,
		TokenID:   tokenID,
		Day:       day,
		Calls:     calls,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]any{
				"calls":      gorm.Expr("token_usage_daily.calls + ?", calls),
				"updated_at": time.Now(),
			}),
		}).
		Create(&row).Error
}

var _ account.UsageStore = (*GormUsageStore)(nil)
