package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/avwx/portal/internal/infrastructure/auth"
	"github.com/avwx/portal/internal/infrastructure/config"
)

// MockAccountRepository is a mock implementation of account.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acct *account.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *MockAccountRepository) Save(ctx context.Context, acct *account.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByCustomerID(ctx context.Context, customerID string) (*account.Account, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByTokenValue(ctx context.Context, value string) (*account.Account, error) {
	args := m.Called(ctx, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) TokenValueExists(ctx context.Context, value string) (bool, error) {
	args := m.Called(ctx, value)
	return args.Bool(0), args.Error(1)
}

// MockMailingList is a mock implementation of MailingList
type MockMailingList struct {
	mock.Mock
}

func (m *MockMailingList) Subscribe(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "auth-service-test-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "portal-test",
		MaxRefreshCount:        2,
	})
}

func newAuthTestService(accounts *MockAccountRepository, mailing MailingList) *AuthService {
	return NewAuthService(accounts, newTestJWTService(), auth.NewInMemoryTokenBlacklist(), mailing, zap.NewNop())
}

func testAccount(t *testing.T) *account.Account {
	t.Helper()
	acct, err := account.NewAccount("pilot@example.com", "SecurePass123")
	require.NoError(t, err)
	return acct
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func TestAuthService_Register(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	accounts.On("ExistsByEmail", ctx, "pilot@example.com").Return(false, nil)
	accounts.On("Create", ctx, mock.AnythingOfType("*account.Account")).Return(nil)

	result, err := service.Register(ctx, RegisterInput{
		Email:     "pilot@example.com",
		Password:  "SecurePass123",
		FirstName: "Amelia",
	})

	require.NoError(t, err)
	assert.Equal(t, "pilot@example.com", result.Account.Email)
	assert.Equal(t, "Amelia", result.Account.FirstName)
	assert.Equal(t, account.PlanKeyFree, result.Account.PlanKey)
	accounts.AssertExpectations(t)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	accounts.On("ExistsByEmail", ctx, "pilot@example.com").Return(true, nil)

	_, err := service.Register(ctx, RegisterInput{
		Email:    "pilot@example.com",
		Password: "SecurePass123",
	})

	assertDomainCode(t, err, "EMAIL_TAKEN")
	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_Register_SubscribesToMailingList(t *testing.T) {
	accounts := new(MockAccountRepository)
	mailing := new(MockMailingList)
	service := newAuthTestService(accounts, mailing)
	ctx := context.Background()

	accounts.On("ExistsByEmail", ctx, "pilot@example.com").Return(false, nil)
	accounts.On("Create", ctx, mock.AnythingOfType("*account.Account")).Return(nil)
	mailing.On("Subscribe", ctx, "pilot@example.com").Return(nil)

	_, err := service.Register(ctx, RegisterInput{
		Email:     "pilot@example.com",
		Password:  "SecurePass123",
		Subscribe: true,
	})

	require.NoError(t, err)
	mailing.AssertExpectations(t)
}

func TestAuthService_Register_MailingFailureIsNotFatal(t *testing.T) {
	accounts := new(MockAccountRepository)
	mailing := new(MockMailingList)
	service := newAuthTestService(accounts, mailing)
	ctx := context.Background()

	accounts.On("ExistsByEmail", ctx, "pilot@example.com").Return(false, nil)
	accounts.On("Create", ctx, mock.AnythingOfType("*account.Account")).Return(nil)
	mailing.On("Subscribe", ctx, "pilot@example.com").Return(errors.New("mailchimp down"))

	_, err := service.Register(ctx, RegisterInput{
		Email:     "pilot@example.com",
		Password:  "SecurePass123",
		Subscribe: true,
	})

	assert.NoError(t, err)
}

func TestAuthService_Login(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	acct := testAccount(t)
	accounts.On("FindByEmail", ctx, "pilot@example.com").Return(acct, nil)

	result, err := service.Login(ctx, LoginInput{
		Email:    "pilot@example.com",
		Password: "SecurePass123",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, acct.ID, result.Account.ID)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	accounts.On("FindByEmail", ctx, "pilot@example.com").Return(testAccount(t), nil)

	_, err := service.Login(ctx, LoginInput{
		Email:    "pilot@example.com",
		Password: "WrongPass999",
	})

	assertDomainCode(t, err, "INVALID_CREDENTIALS")
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	accounts.On("FindByEmail", ctx, "nobody@example.com").Return(nil, shared.ErrNotFound)

	_, err := service.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "whatever1"})

	assertDomainCode(t, err, "INVALID_CREDENTIALS")
}

func TestAuthService_Login_DisabledAccount(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	acct := testAccount(t)
	require.NoError(t, acct.Disable())
	accounts.On("FindByEmail", ctx, "pilot@example.com").Return(acct, nil)

	_, err := service.Login(ctx, LoginInput{Email: "pilot@example.com", Password: "SecurePass123"})

	assertDomainCode(t, err, "ACCOUNT_DISABLED")
}

func TestAuthService_RefreshToken(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	acct := testAccount(t)
	accounts.On("FindByEmail", ctx, acct.Email).Return(acct, nil)
	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)

	login, err := service.Login(ctx, LoginInput{Email: acct.Email, Password: "SecurePass123"})
	require.NoError(t, err)

	result, err := service.RefreshToken(ctx, RefreshTokenInput{RefreshToken: login.RefreshToken})

	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEqual(t, login.RefreshToken, result.RefreshToken)
}

func TestAuthService_RefreshToken_Invalid(t *testing.T) {
	service := newAuthTestService(new(MockAccountRepository), nil)

	_, err := service.RefreshToken(context.Background(), RefreshTokenInput{RefreshToken: "not.a.token"})

	assertDomainCode(t, err, "TOKEN_INVALID")
}

func TestAuthService_RefreshToken_MaxCountExceeded(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	acct := testAccount(t)
	accounts.On("FindByEmail", ctx, acct.Email).Return(acct, nil)
	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)

	login, err := service.Login(ctx, LoginInput{Email: acct.Email, Password: "SecurePass123"})
	require.NoError(t, err)

	refreshToken := login.RefreshToken
	for i := 0; i < 2; i++ {
		result, err := service.RefreshToken(ctx, RefreshTokenInput{RefreshToken: refreshToken})
		require.NoError(t, err)
		refreshToken = result.RefreshToken
	}

	_, err = service.RefreshToken(ctx, RefreshTokenInput{RefreshToken: refreshToken})
	assertDomainCode(t, err, "TOKEN_MAX_REFRESH")
}

func TestAuthService_ChangePassword(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	acct := testAccount(t)
	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)
	accounts.On("Save", ctx, acct).Return(nil)

	err := service.ChangePassword(ctx, ChangePasswordInput{
		AccountID:   acct.ID,
		OldPassword: "SecurePass123",
		NewPassword: "EvenSaferPass456",
	})

	require.NoError(t, err)
	assert.True(t, acct.VerifyPassword("EvenSaferPass456"))
	accounts.AssertExpectations(t)
}

func TestAuthService_ChangePassword_WrongOldPassword(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	acct := testAccount(t)
	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)

	err := service.ChangePassword(ctx, ChangePasswordInput{
		AccountID:   acct.ID,
		OldPassword: "WrongPass999",
		NewPassword: "EvenSaferPass456",
	})

	assert.Error(t, err)
	accounts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Logout_BlacklistsToken(t *testing.T) {
	accounts := new(MockAccountRepository)
	blacklist := auth.NewInMemoryTokenBlacklist()
	service := NewAuthService(accounts, newTestJWTService(), blacklist, nil, zap.NewNop())
	ctx := context.Background()

	err := service.Logout(ctx, LogoutInput{
		AccountID: uuid.New(),
		TokenJTI:  "jti-123",
		ExpiresAt: time.Now().Add(time.Hour),
	})

	require.NoError(t, err)
	revoked, err := blacklist.IsBlacklisted(ctx, "jti-123")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestAuthService_CurrentAccount(t *testing.T) {
	accounts := new(MockAccountRepository)
	service := newAuthTestService(accounts, nil)
	ctx := context.Background()

	acct := testAccount(t)
	accounts.On("FindByID", ctx, acct.ID).Return(acct, nil)

	info, err := service.CurrentAccount(ctx, acct.ID)

	require.NoError(t, err)
	assert.Equal(t, acct.Email, info.Email)

	accounts.On("FindByID", ctx, mock.AnythingOfType("uuid.UUID")).Return(nil, shared.ErrNotFound)
	_, err = service.CurrentAccount(ctx, uuid.New())
	assertDomainCode(t, err, "ACCOUNT_NOT_FOUND")
}
