package account

import (
	"context"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutSessionInput carries what the billing provider needs to start
// a hosted checkout for a paid plan.
type CheckoutSessionInput struct {
	CustomerID string
	PriceID    string
	PlanKey    string
	AccountID  uuid.UUID
}

// CheckoutSessionOutput is the created checkout session reference
type CheckoutSessionOutput struct {
	SessionID string
	URL       string
}

// BillingGateway abstracts the payment provider used for subscriptions.
// This decouples PlanService from the concrete Stripe adapter.
type BillingGateway interface {
	// CreateCustomer creates a billing customer and returns its ID
	CreateCustomer(ctx context.Context, email string, accountID uuid.UUID) (string, error)

	// CreateCheckoutSession starts a hosted checkout for a subscription
	CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSessionOutput, error)

	// ChangeSubscription moves an active subscription to a new price
	ChangeSubscription(ctx context.Context, subscriptionID, newPriceID string) error

	// CancelSubscription cancels an active subscription immediately
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// CreatePortalSession opens a hosted billing portal session for the
	// customer and returns its URL
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// PlanService handles the plan catalog and subscription changes
type PlanService struct {
	accounts account.AccountRepository
	plans    account.PlanRepository
	gateway  BillingGateway
	logger   *zap.Logger
}

// NewPlanService creates a new plan service
func NewPlanService(
	accounts account.AccountRepository,
	plans account.PlanRepository,
	gateway BillingGateway,
	logger *zap.Logger,
) *PlanService {
	return &PlanService{
		accounts: accounts,
		plans:    plans,
		gateway:  gateway,
		logger:   logger,
	}
}

// ListPlans returns the plan catalog ordered by level
func (s *PlanService) ListPlans(ctx context.Context) ([]PlanInfo, error) {
	plans, err := s.plans.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]PlanInfo, 0, len(plans))
	for _, p := range plans {
		infos = append(infos, toPlanInfo(p))
	}

	return infos, nil
}

// ChangePlan moves an account to another plan.
//
// Switching between paid plans reuses the existing subscription and takes
// effect immediately. Moving to a free plan cancels the subscription and
// revokes the development token. Moving from free onto a paid plan has no
// subscription to reuse, so the result carries a checkout URL instead and
// the plan switches when the provider confirms payment via webhook.
func (s *PlanService) ChangePlan(ctx context.Context, input ChangePlanInput) (*ChangePlanResult, error) {
	acct, err := s.accounts.FindByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	target, err := s.plans.FindByKey(ctx, input.PlanKey)
	if err != nil {
		return nil, shared.NewDomainError("PLAN_NOT_FOUND", "Unknown plan: "+input.PlanKey)
	}

	if currentPlanKey(acct) == target.Key {
		return &ChangePlanResult{PlanKey: target.Key, Changed: false}, nil
	}

	if !target.IsPaid() {
		return s.downgradeToFree(ctx, acct, target)
	}

	if acct.SubscriptionID != "" {
		return s.switchSubscription(ctx, acct, target)
	}

	return s.startCheckout(ctx, acct, target)
}

// CancelSubscription drops the account back to the free plan
func (s *PlanService) CancelSubscription(ctx context.Context, accountID uuid.UUID) (*ChangePlanResult, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	freePlan, err := s.plans.FindByKey(ctx, account.PlanKeyFree)
	if err != nil {
		return nil, err
	}

	if currentPlanKey(acct) == freePlan.Key && acct.SubscriptionID == "" {
		return &ChangePlanResult{PlanKey: freePlan.Key, Changed: false}, nil
	}

	return s.downgradeToFree(ctx, acct, freePlan)
}

// BillingPortal opens a hosted billing portal session so the account
// holder can manage payment methods and invoices with the provider.
func (s *PlanService) BillingPortal(ctx context.Context, accountID uuid.UUID) (string, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}

	if acct.CustomerID == "" {
		return "", shared.NewDomainError("NO_BILLING_ACCOUNT", "No billing account exists yet; subscribe to a paid plan first")
	}

	url, err := s.gateway.CreatePortalSession(ctx, acct.CustomerID)
	if err != nil {
		s.logger.Error("Failed to create billing portal session",
			zap.String("account_id", acct.ID.String()),
			zap.Error(err))
		return "", err
	}

	return url, nil
}

// downgradeToFree cancels billing first so a provider failure never
// leaves a paying subscription behind a free account.
func (s *PlanService) downgradeToFree(ctx context.Context, acct *account.Account, freePlan *account.Plan) (*ChangePlanResult, error) {
	if acct.SubscriptionID != "" {
		if err := s.gateway.CancelSubscription(ctx, acct.SubscriptionID); err != nil {
			s.logger.Error("Failed to cancel subscription",
				zap.String("account_id", acct.ID.String()),
				zap.String("subscription_id", acct.SubscriptionID),
				zap.Error(err))
			return nil, err
		}
	}

	if err := acct.ClearSubscription(freePlan); err != nil {
		return nil, err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription cancelled",
		zap.String("account_id", acct.ID.String()),
		zap.String("plan", freePlan.Key))

	return &ChangePlanResult{PlanKey: freePlan.Key, Changed: true}, nil
}

func (s *PlanService) switchSubscription(ctx context.Context, acct *account.Account, target *account.Plan) (*ChangePlanResult, error) {
	if err := s.gateway.ChangeSubscription(ctx, acct.SubscriptionID, target.StripePriceID); err != nil {
		s.logger.Error("Failed to change subscription price",
			zap.String("account_id", acct.ID.String()),
			zap.String("subscription_id", acct.SubscriptionID),
			zap.String("plan", target.Key),
			zap.Error(err))
		return nil, err
	}

	if err := acct.SetPlan(target, "", acct.SubscriptionID); err != nil {
		return nil, err
	}

	// Paid plans carry a development token; restore it if missing
	if _, err := acct.IssueDevelopmentToken(ctx, s.tokenUniqueness()); err != nil {
		return nil, err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("Plan changed",
		zap.String("account_id", acct.ID.String()),
		zap.String("plan", target.Key))

	return &ChangePlanResult{PlanKey: target.Key, Changed: true}, nil
}

func (s *PlanService) startCheckout(ctx context.Context, acct *account.Account, target *account.Plan) (*ChangePlanResult, error) {
	if acct.CustomerID == "" {
		customerID, err := s.gateway.CreateCustomer(ctx, acct.Email, acct.ID)
		if err != nil {
			s.logger.Error("Failed to create billing customer",
				zap.String("account_id", acct.ID.String()),
				zap.Error(err))
			return nil, err
		}

		acct.CustomerID = customerID
		if err := s.accounts.Save(ctx, acct); err != nil {
			return nil, err
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionInput{
		CustomerID: acct.CustomerID,
		PriceID:    target.StripePriceID,
		PlanKey:    target.Key,
		AccountID:  acct.ID,
	})
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("account_id", acct.ID.String()),
			zap.String("plan", target.Key),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Checkout session created",
		zap.String("account_id", acct.ID.String()),
		zap.String("plan", target.Key),
		zap.String("session_id", session.SessionID))

	return &ChangePlanResult{
		PlanKey:     currentPlanKey(acct),
		CheckoutURL: session.URL,
	}, nil
}

// currentPlanKey treats accounts that never subscribed as free tier
func currentPlanKey(acct *account.Account) string {
	if acct.Plan == nil {
		return account.PlanKeyFree
	}
	return acct.Plan.Key
}

func (s *PlanService) tokenUniqueness() account.UniquenessCheck {
	return func(ctx context.Context, value string) (bool, error) {
		exists, err := s.accounts.TokenValueExists(ctx, value)
		if err != nil {
			return false, err
		}
		return !exists, nil
	}
}

func toPlanInfo(p *account.Plan) PlanInfo {
	return PlanInfo{
		Key:        p.Key,
		Name:       p.Name,
		Level:      p.Level,
		PriceCents: p.PriceCents,
		CallLimit:  p.CallLimit,
	}
}
