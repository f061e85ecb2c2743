package account

import (
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant for Account
const AggregateTypeAccount = "Account"

// Account domain event types
const (
	EventTypeAccountCreated        = "AccountCreated"
	EventTypeAccountDisabled       = "AccountDisabled"
	EventTypeTokenIssued           = "TokenIssued"
	EventTypeTokenRefreshed        = "TokenRefreshed"
	EventTypeTokenRemoved          = "TokenRemoved"
	EventTypePlanChanged           = "PlanChanged"
	EventTypeSubscriptionCancelled = "SubscriptionCancelled"
)

// AccountCreatedEvent is published when an account is registered
type AccountCreatedEvent struct {
	shared.BaseDomainEvent
	Email string `json:"email"`
}

// NewAccountCreatedEvent creates a new AccountCreatedEvent
func NewAccountCreatedEvent(acct *Account) *AccountCreatedEvent {
	return &AccountCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountCreated, AggregateTypeAccount, acct.ID),
		Email:           acct.Email,
	}
}

// AccountDisabledEvent is published when an account is disabled
type AccountDisabledEvent struct {
	shared.BaseDomainEvent
	Email string `json:"email"`
}

// NewAccountDisabledEvent creates a new AccountDisabledEvent
func NewAccountDisabledEvent(acct *Account) *AccountDisabledEvent {
	return &AccountDisabledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountDisabled, AggregateTypeAccount, acct.ID),
		Email:           acct.Email,
	}
}

// TokenIssuedEvent is published when a new API token is created
type TokenIssuedEvent struct {
	shared.BaseDomainEvent
	TokenID   uuid.UUID `json:"token_id"`
	TokenName string    `json:"token_name"`
	TokenKind TokenKind `json:"token_kind"`
}

// NewTokenIssuedEvent creates a new TokenIssuedEvent
func NewTokenIssuedEvent(acct *Account, token *Token) *TokenIssuedEvent {
	return &TokenIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTokenIssued, AggregateTypeAccount, acct.ID),
		TokenID:         token.ID,
		TokenName:       token.Name,
		TokenKind:       token.Kind,
	}
}

// TokenRefreshedEvent is published when a token value is rotated
type TokenRefreshedEvent struct {
	shared.BaseDomainEvent
	TokenID   uuid.UUID `json:"token_id"`
	TokenKind TokenKind `json:"token_kind"`
}

// NewTokenRefreshedEvent creates a new TokenRefreshedEvent
func NewTokenRefreshedEvent(acct *Account, token *Token) *TokenRefreshedEvent {
	return &TokenRefreshedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTokenRefreshed, AggregateTypeAccount, acct.ID),
		TokenID:         token.ID,
		TokenKind:       token.Kind,
	}
}

// TokenRemovedEvent is published when a token is deleted
type TokenRemovedEvent struct {
	shared.BaseDomainEvent
	TokenID   uuid.UUID `json:"token_id"`
	TokenKind TokenKind `json:"token_kind"`
}

// NewTokenRemovedEvent creates a new TokenRemovedEvent
func NewTokenRemovedEvent(acct *Account, token *Token) *TokenRemovedEvent {
	return &TokenRemovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTokenRemoved, AggregateTypeAccount, acct.ID),
		TokenID:         token.ID,
		TokenKind:       token.Kind,
	}
}

// PlanChangedEvent is published when an account's subscription plan changes
type PlanChangedEvent struct {
	shared.BaseDomainEvent
	OldPlanKey string `json:"old_plan_key,omitempty"`
	NewPlanKey string `json:"new_plan_key"`
	Upgrade    bool   `json:"upgrade"`
}

// NewPlanChangedEvent creates a new PlanChangedEvent
func NewPlanChangedEvent(acct *Account, oldPlan, newPlan *Plan) *PlanChangedEvent {
	event := &PlanChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePlanChanged, AggregateTypeAccount, acct.ID),
		NewPlanKey:      newPlan.Key,
		Upgrade:         ComparePlans(newPlan, oldPlan) > 0,
	}
	if oldPlan != nil {
		event.OldPlanKey = oldPlan.Key
	}
	return event
}

// SubscriptionCancelledEvent is published when a paid subscription ends
type SubscriptionCancelledEvent struct {
	shared.BaseDomainEvent
	OldPlanKey string `json:"old_plan_key,omitempty"`
}

// NewSubscriptionCancelledEvent creates a new SubscriptionCancelledEvent
func NewSubscriptionCancelledEvent(acct *Account, oldPlan *Plan) *SubscriptionCancelledEvent {
	event := &SubscriptionCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionCancelled, AggregateTypeAccount, acct.ID),
	}
	if oldPlan != nil {
		event.OldPlanKey = oldPlan.Key
	}
	return event
}
