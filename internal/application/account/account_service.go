package account

import (
	"context"
	"strings"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenService handles the API token lifecycle for an account
type TokenService struct {
	accounts account.AccountRepository
	logger   *zap.Logger
}

// NewTokenService creates a new token service
func NewTokenService(accounts account.AccountRepository, logger *zap.Logger) *TokenService {
	return &TokenService{
		accounts: accounts,
		logger:   logger,
	}
}

// ListTokens returns all tokens held by the account
func (s *TokenService) ListTokens(ctx context.Context, accountID uuid.UUID) ([]TokenInfo, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	infos := make([]TokenInfo, 0, len(acct.Tokens))
	for i := range acct.Tokens {
		infos = append(infos, toTokenInfo(&acct.Tokens[i]))
	}

	return infos, nil
}

// CreateToken issues a new application token
func (s *TokenService) CreateToken(ctx context.Context, input CreateTokenInput) (*TokenInfo, error) {
	acct, err := s.accounts.FindByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	token, err := acct.IssueToken(ctx, input.Name, s.tokenUniqueness())
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("Token issued",
		zap.String("account_id", acct.ID.String()),
		zap.String("token_id", token.ID.String()))

	info := toTokenInfo(token)
	return &info, nil
}

// UpdateToken renames a token and toggles its active flag
func (s *TokenService) UpdateToken(ctx context.Context, input UpdateTokenInput) (*TokenInfo, error) {
	acct, err := s.accounts.FindByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	active := true
	if current := acct.Tokens.Find(input.TokenID); current != nil {
		active = current.Active
	}
	if input.Active != nil {
		active = *input.Active
	}

	token, err := acct.UpdateToken(input.TokenID, input.Name, active)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return nil, err
	}

	info := toTokenInfo(token)
	return &info, nil
}

// RefreshToken rotates a token's value, keeping its identity
func (s *TokenService) RefreshToken(ctx context.Context, accountID, tokenID uuid.UUID) (*TokenInfo, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	token, err := acct.RefreshToken(ctx, tokenID, s.tokenUniqueness())
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("Token refreshed",
		zap.String("account_id", acct.ID.String()),
		zap.String("token_id", token.ID.String()))

	info := toTokenInfo(token)
	return &info, nil
}

// DeleteToken removes an application token. The development token is
// bound to the subscription and can only be revoked by cancelling it.
func (s *TokenService) DeleteToken(ctx context.Context, accountID, tokenID uuid.UUID) error {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	token := acct.Tokens.Find(tokenID)
	if token == nil {
		return shared.NewDomainError("TOKEN_NOT_FOUND", "Token not found")
	}
	if token.IsDevelopment() {
		return shared.NewDomainError("TOKEN_PROTECTED", "The development token cannot be deleted directly")
	}

	if err := acct.RemoveToken(tokenID); err != nil {
		return err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return err
	}

	s.logger.Info("Token removed",
		zap.String("account_id", acct.ID.String()),
		zap.String("token_id", tokenID.String()))

	return nil
}

func (s *TokenService) tokenUniqueness() account.UniquenessCheck {
	return func(ctx context.Context, value string) (bool, error) {
		exists, err := s.accounts.TokenValueExists(ctx, value)
		if err != nil {
			return false, err
		}
		return !exists, nil
	}
}

func toTokenInfo(t *account.Token) TokenInfo {
	return TokenInfo{
		ID:        t.ID,
		Name:      t.Name,
		Value:     t.Value,
		Kind:      string(t.Kind),
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// MailingList removes addresses from the marketing list when an account
// closes. Removal is best effort and never blocks the deletion.
type MailingList interface {
	Unsubscribe(ctx context.Context, email string) error
}

// AccountService handles account profile and deletion
type AccountService struct {
	accounts account.AccountRepository
	gateway  BillingGateway
	mailing  MailingList
	logger   *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(accounts account.AccountRepository, gateway BillingGateway, mailing MailingList, logger *zap.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		gateway:  gateway,
		mailing:  mailing,
		logger:   logger,
	}
}

// UpdateProfile sets the account holder's name
func (s *AccountService) UpdateProfile(ctx context.Context, accountID uuid.UUID, first, last string) error {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := acct.SetName(first, last); err != nil {
		return err
	}

	return s.accounts.Save(ctx, acct)
}

// DeleteAccount permanently removes an account. The caller must confirm
// by retyping the account email. Any active subscription is cancelled
// with the billing provider before the local delete.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID uuid.UUID, confirmEmail string) error {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	if !strings.EqualFold(confirmEmail, acct.Email) {
		return shared.NewDomainError("EMAIL_MISMATCH", "The confirmation email does not match the account email")
	}

	if acct.SubscriptionID != "" {
		if err := s.gateway.CancelSubscription(ctx, acct.SubscriptionID); err != nil {
			s.logger.Error("Failed to cancel subscription before account deletion",
				zap.String("account_id", acct.ID.String()),
				zap.String("subscription_id", acct.SubscriptionID),
				zap.Error(err))
			return err
		}
	}

	if err := s.accounts.Delete(ctx, accountID); err != nil {
		return err
	}

	if s.mailing != nil {
		if err := s.mailing.Unsubscribe(ctx, acct.Email); err != nil {
			s.logger.Warn("Mailing list removal failed",
				zap.String("email", acct.Email),
				zap.Error(err))
		}
	}

	s.logger.Info("Account deleted", zap.String("account_id", accountID.String()))

	return nil
}
