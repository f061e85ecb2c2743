package account

import (
	"time"

	"github.com/google/uuid"
)

// TokenInfo is the API representation of an issued token.
type TokenInfo struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Kind      string    `json:"kind"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateTokenInput carries a request to issue a new application token.
type CreateTokenInput struct {
	AccountID uuid.UUID `json:"-"`
	Name      string    `json:"name" binding:"required,min=1,max=100"`
}

// UpdateTokenInput renames a token and toggles its active flag.
type UpdateTokenInput struct {
	AccountID uuid.UUID `json:"-"`
	TokenID   uuid.UUID `json:"-"`
	Name      string    `json:"name" binding:"required,min=1,max=100"`
	Active    *bool     `json:"active"`
}

// PlanInfo is the API representation of a subscription plan.
type PlanInfo struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	PriceCents int64  `json:"price_cents"`
	CallLimit  int64  `json:"call_limit"`
}

// ChangePlanInput carries a request to move an account to another plan.
type ChangePlanInput struct {
	AccountID uuid.UUID `json:"-"`
	PlanKey   string    `json:"plan" binding:"required"`
}

// ChangePlanResult reports the outcome of a plan change. When the change
// requires payment collection, CheckoutURL is set and the plan has not
// switched yet; the billing webhook completes the change.
type ChangePlanResult struct {
	PlanKey     string `json:"plan"`
	Changed     bool   `json:"changed"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// TokenUsage is one token's daily call counts inside the report window.
type TokenUsage struct {
	TokenID   uuid.UUID `json:"token_id"`
	TokenName string    `json:"token_name"`
	Counts    []int64   `json:"counts"`
	Total     int64     `json:"total"`
}

// UsageReportResult is the aggregated usage report for an account.
// Total aligns index-for-index with the report's day window and sums
// application tokens only.
type UsageReportResult struct {
	Since       time.Time    `json:"since"`
	Days        int          `json:"days"`
	Tokens      []TokenUsage `json:"tokens"`
	Development *TokenUsage  `json:"development,omitempty"`
	Total       []int64      `json:"total"`
	Cached      bool         `json:"cached"`
}
