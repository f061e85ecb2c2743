package models

import (
	"time"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountModel is the persistence model for the Account aggregate
type AccountModel struct {
	AggregateModel
	Email          string                `gorm:"type:varchar(200);not null;uniqueIndex"`
	PasswordHash   string                `gorm:"type:varchar(255);not null"`
	FirstName      string                `gorm:"type:varchar(100)"`
	LastName       string                `gorm:"type:varchar(100)"`
	Status         account.AccountStatus `gorm:"type:varchar(20);not null;default:'active'"`
	PlanID         *uuid.UUID            `gorm:"type:uuid;index"`
	CustomerID     string                `gorm:"type:varchar(100);index"`
	SubscriptionID string                `gorm:"type:varchar(100)"`
	EmailVerified  bool                  `gorm:"not null;default:false"`

	Tokens []TokenModel `gorm:"foreignKey:AccountID"`
	Plan   *PlanModel   `gorm:"foreignKey:PlanID"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account aggregate
func (m *AccountModel) ToDomain() *account.Account {
	acct := &account.Account{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Status:         m.Status,
		CustomerID:     m.CustomerID,
		SubscriptionID: m.SubscriptionID,
		EmailVerified:  m.EmailVerified,
		Tokens:         make(account.TokenSet, 0, len(m.Tokens)),
	}

	if m.Plan != nil {
		acct.Plan = m.Plan.ToDomain()
	}

	for i := range m.Tokens {
		acct.Tokens = append(acct.Tokens, *m.Tokens[i].ToDomain())
	}

	return acct
}

// FromDomain populates the persistence model from a domain Account
func (m *AccountModel) FromDomain(a *account.Account) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.Email = a.Email
	m.PasswordHash = a.PasswordHash
	m.FirstName = a.FirstName
	m.LastName = a.LastName
	m.Status = a.Status
	m.CustomerID = a.CustomerID
	m.SubscriptionID = a.SubscriptionID
	m.EmailVerified = a.EmailVerified

	if a.Plan != nil {
		planID := a.Plan.ID
		m.PlanID = &planID
	} else {
		m.PlanID = nil
	}
}

// AccountModelFromDomain creates a new persistence model from a domain Account
func AccountModelFromDomain(a *account.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// TokenModel is the persistence model for API tokens
type TokenModel struct {
	BaseModel
	AccountID uuid.UUID         `gorm:"type:uuid;not null;index"`
	Value     string            `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string            `gorm:"type:varchar(100);not null"`
	Kind      account.TokenKind `gorm:"type:varchar(10);not null;default:'app'"`
	Active    bool              `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (TokenModel) TableName() string {
	return "tokens"
}

// ToDomain converts the persistence model to a domain Token
func (m *TokenModel) ToDomain() *account.Token {
	return &account.Token{
		BaseEntity: m.BaseModel.ToDomain(),
		Value:      m.Value,
		Name:       m.Name,
		Kind:       m.Kind,
		Active:     m.Active,
	}
}

// TokenModelFromDomain creates a persistence model from a domain Token
func TokenModelFromDomain(accountID uuid.UUID, t *account.Token) *TokenModel {
	m := &TokenModel{
		AccountID: accountID,
		Value:     t.Value,
		Name:      t.Name,
		Kind:      t.Kind,
		Active:    t.Active,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// PlanModel is the persistence model for the plan catalog
type PlanModel struct {
	BaseModel
	Key           string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name          string `gorm:"type:varchar(100);not null"`
	Level         int    `gorm:"not null;default:0"`
	PriceCents    int64  `gorm:"not null;default:0"`
	CallLimit     int64  `gorm:"not null;default:0"`
	StripePriceID string `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (PlanModel) TableName() string {
	return "plans"
}

// ToDomain converts the persistence model to a domain Plan
func (m *PlanModel) ToDomain() *account.Plan {
	return &account.Plan{
		BaseEntity:    m.BaseModel.ToDomain(),
		Key:           m.Key,
		Name:          m.Name,
		Level:         m.Level,
		PriceCents:    m.PriceCents,
		CallLimit:     m.CallLimit,
		StripePriceID: m.StripePriceID,
	}
}

// PlanModelFromDomain creates a persistence model from a domain Plan
func PlanModelFromDomain(p *account.Plan) *PlanModel {
	m := &PlanModel{
		Key:           p.Key,
		Name:          p.Name,
		Level:         p.Level,
		PriceCents:    p.PriceCents,
		CallLimit:     p.CallLimit,
		StripePriceID: p.StripePriceID,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// TokenUsageModel is the persistence model for daily per-token call
// counters. One row per token per UTC day.
type TokenUsageModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_token_day"`
	Day       time.Time `gorm:"type:date;not null;uniqueIndex:idx_token_day"`
	Calls     int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TokenUsageModel) TableName() string {
	return "token_usage_daily"
}
