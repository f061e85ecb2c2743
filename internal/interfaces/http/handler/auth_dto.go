package handler

import (
	"time"

	"github.com/avwx/portal/internal/application/identity"
)

// RegisterRequest is the payload for account registration
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=128,strongpassword"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Subscribe bool   `json:"subscribe"`
}

// LoginRequest is the payload for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest is the payload for refreshing a session
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest is the payload for changing the account password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128,strongpassword"`
}

// AccountResponse is the public representation of an account
type AccountResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Plan          string `json:"plan"`
	EmailVerified bool   `json:"email_verified"`
}

// TokenPairResponse carries a freshly issued session token pair
type TokenPairResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// LoginResponse is returned from login
type LoginResponse struct {
	TokenPairResponse
	Account AccountResponse `json:"account"`
}

func toAccountResponse(info identity.AccountInfo) AccountResponse {
	return AccountResponse{
		ID:            info.ID.String(),
		Email:         info.Email,
		FirstName:     info.FirstName,
		LastName:      info.LastName,
		Plan:          info.PlanKey,
		EmailVerified: info.EmailVerified,
	}
}
