package identity

import (
	"time"

	"github.com/google/uuid"
)

// RegisterInput contains the input for account registration
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Subscribe bool // Join the mailing list
}

// RegisterResult contains the result of a successful registration
type RegisterResult struct {
	Account AccountInfo
}

// LoginInput contains the input for account login
type LoginInput struct {
	Email    string
	Password string
	IP       string // Client IP for login tracking
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	TokenType             string
	Account               AccountInfo
}

// AccountInfo contains basic account information returned to the client
type AccountInfo struct {
	ID            uuid.UUID
	Email         string
	FirstName     string
	LastName      string
	PlanKey       string
	EmailVerified bool
}

// RefreshTokenInput contains the input for token refresh
type RefreshTokenInput struct {
	RefreshToken string
}

// RefreshTokenResult contains the result of a token refresh
type RefreshTokenResult struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	TokenType             string
}

// LogoutInput contains the input for account logout
type LogoutInput struct {
	AccountID uuid.UUID
	TokenJTI  string // JWT ID for blacklisting
	ExpiresAt time.Time
}

// ChangePasswordInput contains the input for password change
type ChangePasswordInput struct {
	AccountID   uuid.UUID
	OldPassword string
	NewPassword string
}
