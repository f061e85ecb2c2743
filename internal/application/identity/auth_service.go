package identity

import (
	"context"
	"time"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/avwx/portal/internal/infrastructure/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MailingList subscribes addresses to the portal's mailing list
type MailingList interface {
	Subscribe(ctx context.Context, email string) error
}

// AuthService handles registration and authentication
type AuthService struct {
	accounts   account.AccountRepository
	jwtService *auth.JWTService
	blacklist  auth.TokenBlacklist
	mailing    MailingList
	logger     *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	accounts account.AccountRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	mailing MailingList,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		accounts:   accounts,
		jwtService: jwtService,
		blacklist:  blacklist,
		mailing:    mailing,
		logger:     logger,
	}
}

// Register creates a new account
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	s.logger.Info("Registration attempt", zap.String("email", input.Email))

	exists, err := s.accounts.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error("Failed to check email existence", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to register account")
	}
	if exists {
		return nil, shared.NewDomainError("EMAIL_TAKEN", "An account with this email already exists")
	}

	acct, err := account.NewAccount(input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	if err := acct.SetName(input.FirstName, input.LastName); err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		s.logger.Error("Failed to create account", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to register account")
	}

	// Mailing list subscription is best effort, registration never fails on it
	if input.Subscribe && s.mailing != nil {
		if err := s.mailing.Subscribe(ctx, acct.Email); err != nil {
			s.logger.Warn("Mailing list subscription failed",
				zap.String("email", acct.Email),
				zap.Error(err))
		}
	}

	s.logger.Info("Account registered",
		zap.String("email", acct.Email),
		zap.String("account_id", acct.ID.String()))

	return &RegisterResult{Account: toAccountInfo(acct)}, nil
}

// Login authenticates an account and returns a token pair
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	s.logger.Info("Login attempt", zap.String("email", input.Email))

	acct, err := s.accounts.FindByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Warn("Account not found during login", zap.String("email", input.Email))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	if !acct.IsActive() {
		s.logger.Warn("Login attempt for disabled account", zap.String("email", input.Email))
		return nil, shared.NewDomainError("ACCOUNT_DISABLED", "Account has been disabled")
	}

	if !acct.VerifyPassword(input.Password) {
		s.logger.Warn("Invalid password attempt", zap.String("email", input.Email))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	tokenPair, err := s.jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		AccountID: acct.ID,
		Email:     acct.Email,
	})
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
	}

	s.logger.Info("Account logged in",
		zap.String("email", acct.Email),
		zap.String("account_id", acct.ID.String()),
		zap.String("ip", input.IP))

	return &LoginResult{
		AccessToken:           tokenPair.AccessToken,
		RefreshToken:          tokenPair.RefreshToken,
		AccessTokenExpiresAt:  tokenPair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: tokenPair.RefreshTokenExpiresAt,
		TokenType:             tokenPair.TokenType,
		Account:               toAccountInfo(acct),
	}, nil
}

// RefreshToken exchanges a valid refresh token for a new token pair
func (s *AuthService) RefreshToken(ctx context.Context, input RefreshTokenInput) (*RefreshTokenResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		s.logger.Warn("Refresh token validation failed", zap.Error(err))

		switch err {
		case auth.ErrExpiredToken:
			return nil, shared.NewDomainError("TOKEN_EXPIRED", "Refresh token has expired")
		case auth.ErrInvalidToken:
			return nil, shared.NewDomainError("TOKEN_INVALID", "Invalid refresh token")
		case auth.ErrMaxRefreshExceeded:
			return nil, shared.NewDomainError("TOKEN_MAX_REFRESH", "Maximum token refresh count exceeded. Please log in again")
		default:
			return nil, shared.NewDomainError("TOKEN_ERROR", "Failed to validate refresh token")
		}
	}

	accountID, err := claims.GetAccountUUID()
	if err != nil {
		return nil, shared.NewDomainError("TOKEN_INVALID", "Invalid account ID in token")
	}

	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		s.logger.Warn("Account not found during token refresh", zap.String("account_id", accountID.String()))
		return nil, shared.NewDomainError("ACCOUNT_NOT_FOUND", "Account not found")
	}
	if !acct.IsActive() {
		return nil, shared.NewDomainError("ACCOUNT_DISABLED", "Account is no longer active")
	}

	tokenPair, err := s.jwtService.RefreshTokenPair(input.RefreshToken, acct.Email)
	if err != nil {
		s.logger.Warn("Token refresh failed", zap.Error(err))

		switch err {
		case auth.ErrMaxRefreshExceeded:
			return nil, shared.NewDomainError("TOKEN_MAX_REFRESH", "Maximum token refresh count exceeded. Please log in again")
		default:
			return nil, shared.NewDomainError("TOKEN_ERROR", "Failed to refresh token")
		}
	}

	return &RefreshTokenResult{
		AccessToken:           tokenPair.AccessToken,
		RefreshToken:          tokenPair.RefreshToken,
		AccessTokenExpiresAt:  tokenPair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: tokenPair.RefreshTokenExpiresAt,
		TokenType:             tokenPair.TokenType,
	}, nil
}

// Logout revokes the current session's access token
func (s *AuthService) Logout(ctx context.Context, input LogoutInput) error {
	if input.TokenJTI != "" && s.blacklist != nil {
		ttl := time.Until(input.ExpiresAt)
		if ttl > 0 {
			if err := s.blacklist.AddToBlacklist(ctx, input.TokenJTI, ttl); err != nil {
				s.logger.Error("Failed to blacklist token on logout", zap.Error(err))
				return shared.NewDomainError("INTERNAL_ERROR", "Failed to log out")
			}
		}
	}

	s.logger.Info("Account logged out", zap.String("account_id", input.AccountID.String()))
	return nil
}

// ChangePassword changes an account's password and logs out other sessions
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	acct, err := s.accounts.FindByID(ctx, input.AccountID)
	if err != nil {
		return shared.NewDomainError("ACCOUNT_NOT_FOUND", "Account not found")
	}

	if err := acct.ChangePassword(input.OldPassword, input.NewPassword); err != nil {
		return err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		s.logger.Error("Failed to save account after password change", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to update password")
	}

	if s.blacklist != nil {
		ttl := s.jwtService.GetRefreshTokenExpiration()
		if err := s.blacklist.AddAccountTokensToBlacklist(ctx, acct.ID.String(), ttl); err != nil {
			s.logger.Warn("Failed to invalidate existing sessions after password change", zap.Error(err))
		}
	}

	s.logger.Info("Account password changed", zap.String("account_id", input.AccountID.String()))

	return nil
}

// CurrentAccount loads the authenticated account's profile
func (s *AuthService) CurrentAccount(ctx context.Context, accountID uuid.UUID) (*AccountInfo, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, shared.NewDomainError("ACCOUNT_NOT_FOUND", "Account not found")
	}

	info := toAccountInfo(acct)
	return &info, nil
}

func toAccountInfo(acct *account.Account) AccountInfo {
	info := AccountInfo{
		ID:            acct.ID,
		Email:         acct.Email,
		FirstName:     acct.FirstName,
		LastName:      acct.LastName,
		EmailVerified: acct.EmailVerified,
	}
	if acct.Plan != nil {
		info.PlanKey = acct.Plan.Key
	} else {
		info.PlanKey = account.PlanKeyFree
	}
	return info
}
