package billing

import (
	"context"
	"fmt"

	appaccount "github.com/avwx/portal/internal/application/account"
	"github.com/avwx/portal/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/subscription"
	"go.uber.org/zap"
)

// StripeAdapter implements the billing gateway against Stripe
type StripeAdapter struct {
	config *config.StripeConfig
	logger *zap.Logger
}

// compile-time interface check
var _ appaccount.BillingGateway = (*StripeAdapter)(nil)

// NewStripeAdapter creates a new Stripe adapter and initializes the
// package-level Stripe client key
func NewStripeAdapter(cfg *config.StripeConfig, logger *zap.Logger) (*StripeAdapter, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("stripe: secret key is required")
	}

	stripe.Key = cfg.SecretKey

	return &StripeAdapter{
		config: cfg,
		logger: logger,
	}, nil
}

// CreateCustomer creates a new customer in Stripe
func (a *StripeAdapter) CreateCustomer(ctx context.Context, email string, accountID uuid.UUID) (string, error) {
	a.logger.Debug("Creating Stripe customer",
		zap.String("account_id", accountID.String()),
		zap.String("email", email))

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"account_id": accountID.String(),
		},
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe customer",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return "", fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	a.logger.Info("Created Stripe customer",
		zap.String("account_id", accountID.String()),
		zap.String("customer_id", cust.ID))

	return cust.ID, nil
}

// CreateCheckoutSession starts a hosted checkout for a subscription.
// The plan key travels in the session metadata so the webhook can
// resolve the target plan when payment completes.
func (a *StripeAdapter) CreateCheckoutSession(ctx context.Context, input appaccount.CheckoutSessionInput) (*appaccount.CheckoutSessionOutput, error) {
	a.logger.Debug("Creating Stripe checkout session",
		zap.String("account_id", input.AccountID.String()),
		zap.String("plan", input.PlanKey))

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(input.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(input.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(a.config.SuccessURL),
		CancelURL:  stripe.String(a.config.CancelURL),
	}
	params.Context = ctx
	params.Metadata = map[string]string{
		"account_id": input.AccountID.String(),
		"plan":       input.PlanKey,
	}

	sess, err := session.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe checkout session",
			zap.String("account_id", input.AccountID.String()),
			zap.String("plan", input.PlanKey),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	a.logger.Info("Created Stripe checkout session",
		zap.String("account_id", input.AccountID.String()),
		zap.String("session_id", sess.ID))

	return &appaccount.CheckoutSessionOutput{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}

// ChangeSubscription moves an active subscription to a new price,
// prorating the difference on the next invoice
func (a *StripeAdapter) ChangeSubscription(ctx context.Context, subscriptionID, newPriceID string) error {
	a.logger.Debug("Updating Stripe subscription",
		zap.String("subscription_id", subscriptionID),
		zap.String("new_price", newPriceID))

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := subscription.Get(subscriptionID, getParams)
	if err != nil {
		a.logger.Error("Failed to get Stripe subscription",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return fmt.Errorf("stripe: failed to get subscription: %w", err)
	}

	if len(sub.Items.Data) == 0 {
		return fmt.Errorf("stripe: subscription %s has no items", subscriptionID)
	}
	itemID := sub.Items.Data[0].ID

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(newPriceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx

	updated, err := subscription.Update(subscriptionID, params)
	if err != nil {
		a.logger.Error("Failed to update Stripe subscription",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return fmt.Errorf("stripe: failed to update subscription: %w", err)
	}

	a.logger.Info("Updated Stripe subscription",
		zap.String("subscription_id", updated.ID),
		zap.String("new_price", newPriceID),
		zap.String("status", string(updated.Status)))

	return nil
}

// CancelSubscription cancels a subscription immediately
func (a *StripeAdapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	a.logger.Debug("Canceling Stripe subscription",
		zap.String("subscription_id", subscriptionID))

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := subscription.Cancel(subscriptionID, params)
	if err != nil {
		a.logger.Error("Failed to cancel Stripe subscription",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return fmt.Errorf("stripe: failed to cancel subscription: %w", err)
	}

	a.logger.Info("Canceled Stripe subscription",
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))

	return nil
}

// CreatePortalSession opens a hosted billing portal session
func (a *StripeAdapter) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(a.config.PortalURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		a.logger.Error("Failed to create billing portal session",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return "", fmt.Errorf("stripe: failed to create portal session: %w", err)
	}

	a.logger.Debug("Created billing portal session",
		zap.String("customer_id", customerID),
		zap.String("session_id", sess.ID))

	return sess.URL, nil
}
