package billing

import (
	"context"

	appaccount "github.com/avwx/portal/internal/application/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/google/uuid"
)

var errBillingDisabled = shared.NewDomainError("BILLING_DISABLED", "Billing is not configured on this deployment")

// DisabledGateway stands in for Stripe when no secret key is configured.
// Free-tier operation works; anything touching payments fails cleanly.
type DisabledGateway struct{}

var _ appaccount.BillingGateway = DisabledGateway{}

func (DisabledGateway) CreateCustomer(_ context.Context, _ string, _ uuid.UUID) (string, error) {
	return "", errBillingDisabled
}

func (DisabledGateway) CreateCheckoutSession(_ context.Context, _ appaccount.CheckoutSessionInput) (*appaccount.CheckoutSessionOutput, error) {
	return nil, errBillingDisabled
}

func (DisabledGateway) ChangeSubscription(_ context.Context, _, _ string) error {
	return errBillingDisabled
}

func (DisabledGateway) CancelSubscription(_ context.Context, _ string) error {
	return errBillingDisabled
}

func (DisabledGateway) CreatePortalSession(_ context.Context, _ string) (string, error) {
	return "", errBillingDisabled
}
