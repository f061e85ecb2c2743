package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// ErrInvalidSignature is returned when the webhook payload fails
// signature verification
var ErrInvalidSignature = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")

// WebhookResult describes the outcome of processing a webhook event
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// WebhookService processes Stripe billing events and keeps account
// subscription state in sync with the provider.
//
// Events referencing unknown customers are acknowledged and dropped:
// returning an error would make Stripe retry an event we can never
// process.
type WebhookService struct {
	accounts      account.AccountRepository
	plans         account.PlanRepository
	idempotency   shared.IdempotencyStore
	webhookSecret string
	logger        *zap.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	accounts account.AccountRepository,
	plans account.PlanRepository,
	idempotency shared.IdempotencyStore,
	webhookSecret string,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		accounts:      accounts,
		plans:         plans,
		idempotency:   idempotency,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// HandleEvent verifies and processes a raw webhook delivery
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		s.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return nil, ErrInvalidSignature
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	if s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, event.ID, shared.DefaultIdempotencyConfig().TTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !fresh {
			s.logger.Debug("Skipping duplicate webhook event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
			result.Message = "duplicate event"
			return result, nil
		}
	}

	switch event.Type {
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, &event)
	case "customer.subscription.updated":
		err = s.handleSubscriptionUpdated(ctx, &event)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, &event)
	default:
		s.logger.Debug("Ignoring unhandled webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		result.Message = "event type not handled"
		return result, nil
	}

	if err != nil {
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return nil, err
	}

	result.Processed = true
	return result, nil
}

// handleCheckoutCompleted completes a plan change started through a
// hosted checkout: the account moves onto the paid plan named in the
// session metadata and receives its development token.
func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	customerID := customerRef(session.Customer)
	if customerID == "" {
		return fmt.Errorf("checkout session %s has no customer", session.ID)
	}

	acct, err := s.findAccount(ctx, customerID, event.ID)
	if err != nil || acct == nil {
		return err
	}

	planKey := session.Metadata["plan"]
	plan, err := s.plans.FindByKey(ctx, planKey)
	if err != nil {
		return fmt.Errorf("unknown plan %q on checkout session %s: %w", planKey, session.ID, err)
	}

	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	if err := acct.SetPlan(plan, customerID, subscriptionID); err != nil {
		return err
	}
	if _, err := acct.IssueDevelopmentToken(ctx, s.tokenUniqueness()); err != nil {
		return err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return err
	}

	s.logger.Info("Checkout completed",
		zap.String("account_id", acct.ID.String()),
		zap.String("plan", plan.Key),
		zap.String("subscription_id", subscriptionID))

	return nil
}

// handleSubscriptionUpdated syncs the account's plan with the price on
// the provider's subscription record
func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	acct, err := s.findAccount(ctx, customerRef(sub.Customer), event.ID)
	if err != nil || acct == nil {
		return err
	}

	if sub.Status == stripe.SubscriptionStatusCanceled {
		return s.clearSubscription(ctx, acct)
	}

	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("subscription %s has no items", sub.ID)
	}
	priceID := sub.Items.Data[0].Price.ID

	plan, err := s.plans.FindByStripePriceID(ctx, priceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Subscription price not in plan catalog, skipping event",
				zap.String("event_id", event.ID),
				zap.String("price_id", priceID))
			return nil
		}
		return err
	}

	if acct.Plan != nil && acct.Plan.Key == plan.Key && acct.SubscriptionID == sub.ID {
		return nil
	}

	if err := acct.SetPlan(plan, "", sub.ID); err != nil {
		return err
	}
	if _, err := acct.IssueDevelopmentToken(ctx, s.tokenUniqueness()); err != nil {
		return err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return err
	}

	s.logger.Info("Subscription synced",
		zap.String("account_id", acct.ID.String()),
		zap.String("plan", plan.Key),
		zap.String("subscription_id", sub.ID))

	return nil
}

// handleSubscriptionDeleted drops the account to the free plan when the
// provider reports the subscription gone
func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	acct, err := s.findAccount(ctx, customerRef(sub.Customer), event.ID)
	if err != nil || acct == nil {
		return err
	}

	return s.clearSubscription(ctx, acct)
}

func (s *WebhookService) clearSubscription(ctx context.Context, acct *account.Account) error {
	if acct.SubscriptionID == "" && !acct.HasPaidPlan() {
		return nil
	}

	freePlan, err := s.plans.FindByKey(ctx, account.PlanKeyFree)
	if err != nil {
		return err
	}

	if err := acct.ClearSubscription(freePlan); err != nil {
		return err
	}

	if err := s.accounts.Save(ctx, acct); err != nil {
		return err
	}

	s.logger.Info("Subscription cleared",
		zap.String("account_id", acct.ID.String()))

	return nil
}

// findAccount resolves a billing customer to an account. Unknown
// customers resolve to (nil, nil) so the caller acknowledges the event.
func (s *WebhookService) findAccount(ctx context.Context, customerID, eventID string) (*account.Account, error) {
	if customerID == "" {
		s.logger.Warn("Webhook event has no customer reference",
			zap.String("event_id", eventID))
		return nil, nil
	}

	acct, err := s.accounts.FindByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No account for billing customer, skipping event",
				zap.String("event_id", eventID),
				zap.String("customer_id", customerID))
			return nil, nil
		}
		return nil, err
	}

	return acct, nil
}

func (s *WebhookService) tokenUniqueness() account.UniquenessCheck {
	return func(ctx context.Context, value string) (bool, error) {
		exists, err := s.accounts.TokenValueExists(ctx, value)
		if err != nil {
			return false, err
		}
		return !exists, nil
	}
}

func customerRef(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
