package account

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/avwx/portal/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AccountStatus represents the status of an account
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusDisabled AccountStatus = "disabled"
)

// Password cost for bcrypt
const bcryptCost = 12

// Account represents a portal user and is the aggregate root for
// authentication, API tokens, and subscription state
type Account struct {
	shared.BaseAggregateRoot
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Status         AccountStatus
	Plan           *Plan // nil until a plan is assigned
	CustomerID     string
	SubscriptionID string
	Tokens         TokenSet
	EmailVerified  bool
}

// NewAccount creates a new active account with a hashed password
func NewAccount(email, password string) (*Account, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return nil, shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}

	acct := &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:      passwordHash,
		Status:            AccountStatusActive,
		Tokens:            make(TokenSet, 0),
	}

	acct.AddDomainEvent(NewAccountCreatedEvent(acct))

	return acct, nil
}

// SetName sets the account holder's name
func (a *Account) SetName(first, last string) error {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if len(first) > 100 || len(last) > 100 {
		return shared.NewDomainError("INVALID_NAME", "Name cannot exceed 100 characters")
	}

	a.FirstName = first
	a.LastName = last
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	return nil
}

// VerifyPassword verifies if the provided password matches
func (a *Account) VerifyPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
	return err == nil
}

// ChangePassword changes the account password after verifying the old one
func (a *Account) ChangePassword(oldPassword, newPassword string) error {
	if !a.VerifyPassword(oldPassword) {
		return shared.NewDomainError("INVALID_PASSWORD", "Current password is incorrect")
	}

	return a.SetPassword(newPassword)
}

// SetPassword sets a new password without checking the old one
func (a *Account) SetPassword(newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}

	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	return nil
}

// MarkEmailVerified records that the account email has been confirmed
func (a *Account) MarkEmailVerified() {
	a.EmailVerified = true
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// Disable disables the account. Disabled accounts keep their tokens but
// cannot issue new ones and cannot log in.
func (a *Account) Disable() error {
	if a.Status == AccountStatusDisabled {
		return shared.NewDomainError("ALREADY_DISABLED", "Account is already disabled")
	}

	a.Status = AccountStatusDisabled
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewAccountDisabledEvent(a))

	return nil
}

// Enable re-enables a disabled account
func (a *Account) Enable() error {
	if a.Status == AccountStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Account is already active")
	}

	a.Status = AccountStatusActive
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	return nil
}

// IsActive returns true if the account is active
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IssueToken issues a new application token for the account
func (a *Account) IssueToken(ctx context.Context, name string, isUnique UniquenessCheck) (*Token, error) {
	if !a.IsActive() {
		return nil, shared.NewDomainError("ACCOUNT_DISABLED", "Disabled accounts cannot issue tokens")
	}

	token, err := NewToken(ctx, name, isUnique)
	if err != nil {
		return nil, err
	}

	a.Tokens = append(a.Tokens, *token)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewTokenIssuedEvent(a, token))

	return a.Tokens.Find(token.ID), nil
}

// IssueDevelopmentToken grants the development token that accompanies a
// paid subscription. Each account holds at most one; issuing when one
// already exists is a no-op returning the existing token.
func (a *Account) IssueDevelopmentToken(ctx context.Context, isUnique UniquenessCheck) (*Token, error) {
	if !a.IsActive() {
		return nil, shared.NewDomainError("ACCOUNT_DISABLED", "Disabled accounts cannot issue tokens")
	}

	if existing := a.Tokens.Development(); existing != nil {
		return existing, nil
	}

	token, err := NewDevelopmentToken(ctx, isUnique)
	if err != nil {
		return nil, err
	}

	a.Tokens = append(a.Tokens, *token)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewTokenIssuedEvent(a, token))

	return a.Tokens.Find(token.ID), nil
}

// RefreshToken rotates the value of an existing token
func (a *Account) RefreshToken(ctx context.Context, tokenID uuid.UUID, isUnique UniquenessCheck) (*Token, error) {
	token := a.Tokens.Find(tokenID)
	if token == nil {
		return nil, shared.NewDomainError("TOKEN_NOT_FOUND", "Token not found")
	}

	if err := token.Refresh(ctx, isUnique); err != nil {
		return nil, err
	}

	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewTokenRefreshedEvent(a, token))

	return token, nil
}

// UpdateToken changes a token's name and active flag
func (a *Account) UpdateToken(tokenID uuid.UUID, name string, active bool) (*Token, error) {
	token := a.Tokens.Find(tokenID)
	if token == nil {
		return nil, shared.NewDomainError("TOKEN_NOT_FOUND", "Token not found")
	}

	if err := token.Rename(name); err != nil {
		return nil, err
	}
	token.SetActive(active)

	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	return token, nil
}

// RemoveToken deletes a token from the account
func (a *Account) RemoveToken(tokenID uuid.UUID) error {
	kept := make(TokenSet, 0, len(a.Tokens))
	var removed *Token
	for i := range a.Tokens {
		if a.Tokens[i].ID == tokenID {
			removed = &a.Tokens[i]
			continue
		}
		kept = append(kept, a.Tokens[i])
	}

	if removed == nil {
		return shared.NewDomainError("TOKEN_NOT_FOUND", "Token not found")
	}

	a.AddDomainEvent(NewTokenRemovedEvent(a, removed))

	a.Tokens = kept
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	return nil
}

// removeDevelopmentToken drops the development token if present
func (a *Account) removeDevelopmentToken() {
	if dev := a.Tokens.Development(); dev != nil {
		_ = a.RemoveToken(dev.ID)
	}
}

// HasPaidPlan returns true when the account's current plan is paid
func (a *Account) HasPaidPlan() bool {
	return a.Plan.IsPaid()
}

// SetPlan assigns a subscription plan and billing references to the
// account. Moving onto a paid plan is recorded as a plan change event.
func (a *Account) SetPlan(plan *Plan, customerID, subscriptionID string) error {
	if plan == nil {
		return shared.NewDomainError("INVALID_PLAN", "Plan cannot be nil")
	}

	previous := a.Plan
	a.Plan = plan
	if customerID != "" {
		a.CustomerID = customerID
	}
	a.SubscriptionID = subscriptionID
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewPlanChangedEvent(a, previous, plan))

	return nil
}

// ClearSubscription drops the account to the given free plan, clears
// the billing subscription reference, and revokes the development token
func (a *Account) ClearSubscription(freePlan *Plan) error {
	if freePlan == nil || freePlan.IsPaid() {
		return shared.NewDomainError("INVALID_PLAN", "A free plan is required to clear a subscription")
	}

	previous := a.Plan
	a.Plan = freePlan
	a.SubscriptionID = ""
	a.removeDevelopmentToken()
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewSubscriptionCancelledEvent(a, previous))

	return nil
}

// Validation functions

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	if len(email) > 200 {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}

	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}

	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot be empty")
	}
	if len(password) < 8 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 8 characters")
	}
	if len(password) > 128 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot exceed 128 characters")
	}

	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
