package account

import (
	"context"
	"sync"
	"time"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageService builds per-account API usage reports with a short-lived
// in-process cache. A cached report is reused while it is fresh and the
// account's token count is unchanged; issuing or deleting a token makes
// the next request recompute.
type UsageService struct {
	accounts account.AccountRepository
	usage    account.UsageStore
	logger   *zap.Logger

	mu    sync.RWMutex
	cache map[uuid.UUID]*account.UsageCache

	now func() time.Time
}

// NewUsageService creates a new usage service
func NewUsageService(accounts account.AccountRepository, usage account.UsageStore, logger *zap.Logger) *UsageService {
	return &UsageService{
		accounts: accounts,
		usage:    usage,
		logger:   logger,
		cache:    make(map[uuid.UUID]*account.UsageCache),
		now:      time.Now,
	}
}

// GetUsageReport returns the account's usage over the reporting window
func (s *UsageService) GetUsageReport(ctx context.Context, accountID uuid.UUID) (*UsageReportResult, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tokenCount := len(acct.Tokens)

	// No tokens means nothing to aggregate: skip the store and the cache
	if tokenCount == 0 {
		since := account.UsageWindowStart(now)
		report := account.BuildUsageReport(nil, nil, since, account.UsageWindowDays)
		return toUsageResult(report, false), nil
	}

	s.mu.RLock()
	cached := s.cache[accountID]
	s.mu.RUnlock()

	if cached.Valid(now, tokenCount) {
		return toUsageResult(cached.Report, true), nil
	}

	since := account.UsageWindowStart(now)
	counts, err := s.usage.CountsByDay(ctx, accountID, since)
	if err != nil {
		return nil, err
	}

	report := account.BuildUsageReport(acct.Tokens, counts, since, account.UsageWindowDays)

	s.mu.Lock()
	s.cache[accountID] = account.NewUsageCache(report, tokenCount, now)
	s.mu.Unlock()

	s.logger.Debug("Usage report rebuilt",
		zap.String("account_id", accountID.String()),
		zap.Int("tokens", tokenCount))

	return toUsageResult(report, false), nil
}

// InvalidateUsage drops any cached report for the account
func (s *UsageService) InvalidateUsage(accountID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, accountID)
	s.mu.Unlock()
}

func toUsageResult(report *account.UsageReport, cached bool) *UsageReportResult {
	result := &UsageReportResult{
		Since:  report.Since,
		Days:   len(report.Days),
		Tokens: make([]TokenUsage, 0, len(report.Tokens)),
		Total:  report.Total,
		Cached: cached,
	}

	for _, series := range report.Tokens {
		result.Tokens = append(result.Tokens, toTokenUsage(series))
	}
	if report.Development != nil {
		dev := toTokenUsage(*report.Development)
		result.Development = &dev
	}

	return result
}

func toTokenUsage(series account.UsageSeries) TokenUsage {
	return TokenUsage{
		TokenID:   series.TokenID,
		TokenName: series.TokenName,
		Counts:    series.Counts,
		Total:     series.Total,
	}
}
