package account

import (
	"context"
	"testing"
	"time"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUsageService(accounts *MockAccountRepository, usage *MockUsageStore) *UsageService {
	return NewUsageService(accounts, usage, zap.NewNop())
}

func TestUsageService_GetUsageReport(t *testing.T) {
	accounts := new(MockAccountRepository)
	usage := new(MockUsageStore)
	service := newUsageService(accounts, usage)
	ctx := context.Background()

	acct := testAccount(t)
	token, err := acct.IssueToken(ctx, "App", nil)
	require.NoError(t, err)
	dev, err := acct.IssueDevelopmentToken(ctx, nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }
	since := account.UsageWindowStart(now)

	counts := map[time.Time]map[uuid.UUID]int64{
		since:                   {token.ID: 10, dev.ID: 3},
		since.AddDate(0, 0, 29): {token.ID: 5},
	}

	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)
	usage.On("CountsByDay", ctx, acct.ID, since).Return(counts, nil)

	result, err := service.GetUsageReport(ctx, acct.ID)

	require.NoError(t, err)
	assert.Equal(t, account.UsageWindowDays, result.Days)
	assert.False(t, result.Cached)
	require.Len(t, result.Total, account.UsageWindowDays)
	assert.Equal(t, int64(10), result.Total[0], "development calls are excluded from the total")
	assert.Equal(t, int64(5), result.Total[29])
	require.NotNil(t, result.Development)
	assert.Equal(t, int64(3), result.Development.Total)
	require.Len(t, result.Tokens, 1)
	assert.Equal(t, int64(10), result.Tokens[0].Counts[0])
	assert.Equal(t, int64(5), result.Tokens[0].Counts[29])
}

func TestUsageService_GetUsageReport_NoTokens(t *testing.T) {
	accounts := new(MockAccountRepository)
	usage := new(MockUsageStore)
	service := newUsageService(accounts, usage)
	ctx := context.Background()

	acct := testAccount(t)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)

	result, err := service.GetUsageReport(ctx, acct.ID)

	require.NoError(t, err)
	assert.Equal(t, account.UsageWindowDays, result.Days)
	assert.Empty(t, result.Tokens)
	require.Len(t, result.Total, account.UsageWindowDays)
	assert.False(t, result.Cached)

	// A second read is still built inline, never cached
	again, err := service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, again.Cached)

	usage.AssertNotCalled(t, "CountsByDay")
}

func TestUsageService_GetUsageReport_ServesCachedReport(t *testing.T) {
	accounts := new(MockAccountRepository)
	usage := new(MockUsageStore)
	service := newUsageService(accounts, usage)
	ctx := context.Background()

	acct := testAccount(t)
	_, err := acct.IssueToken(ctx, "App", nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)
	usage.On("CountsByDay", ctx, acct.ID, account.UsageWindowStart(now)).
		Return(map[time.Time]map[uuid.UUID]int64{}, nil).Once()

	first, err := service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, second.Cached)

	usage.AssertNumberOfCalls(t, "CountsByDay", 1)
}

func TestUsageService_GetUsageReport_CacheExpiresAfterTTL(t *testing.T) {
	accounts := new(MockAccountRepository)
	usage := new(MockUsageStore)
	service := newUsageService(accounts, usage)
	ctx := context.Background()

	acct := testAccount(t)
	_, err := acct.IssueToken(ctx, "App", nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)
	usage.On("CountsByDay", ctx, acct.ID, account.UsageWindowStart(now)).
		Return(map[time.Time]map[uuid.UUID]int64{}, nil)

	_, err = service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)

	service.now = func() time.Time { return now.Add(account.UsageCacheTTL + time.Second) }

	result, err := service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, result.Cached)

	usage.AssertNumberOfCalls(t, "CountsByDay", 2)
}

func TestUsageService_GetUsageReport_TokenCountChangeInvalidatesCache(t *testing.T) {
	accounts := new(MockAccountRepository)
	usage := new(MockUsageStore)
	service := newUsageService(accounts, usage)
	ctx := context.Background()

	acct := testAccount(t)
	_, err := acct.IssueToken(ctx, "First", nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)
	usage.On("CountsByDay", ctx, acct.ID, account.UsageWindowStart(now)).
		Return(map[time.Time]map[uuid.UUID]int64{}, nil)

	_, err = service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)

	// A new token invalidates the cache even though the TTL has not passed
	_, err = acct.IssueToken(ctx, "Second", nil)
	require.NoError(t, err)

	result, err := service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	require.Len(t, result.Tokens, 2)

	usage.AssertNumberOfCalls(t, "CountsByDay", 2)
}

func TestUsageService_InvalidateUsage(t *testing.T) {
	accounts := new(MockAccountRepository)
	usage := new(MockUsageStore)
	service := newUsageService(accounts, usage)
	ctx := context.Background()

	acct := testAccount(t)
	_, err := acct.IssueToken(ctx, "App", nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)
	usage.On("CountsByDay", ctx, acct.ID, account.UsageWindowStart(now)).
		Return(map[time.Time]map[uuid.UUID]int64{}, nil)

	_, err = service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)

	service.InvalidateUsage(acct.ID)

	result, err := service.GetUsageReport(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, result.Cached)

	usage.AssertNumberOfCalls(t, "CountsByDay", 2)
}
