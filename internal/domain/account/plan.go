package account

import (
	"github.com/avwx/portal/internal/domain/shared"
)

// Plan describes a subscription tier from the plan catalog
type Plan struct {
	shared.BaseEntity
	Key           string // Stable identifier, e.g. "free", "pro"
	Name          string // Display name
	Level         int    // Ordering rank for upgrade/downgrade comparison
	PriceCents    int64  // Monthly price in cents; 0 for free tiers
	CallLimit     int64  // Daily API call limit; negative means unlimited
	StripePriceID string // Billing provider price reference; empty for free tiers
}

// Well-known plan keys seeded into the catalog
const (
	PlanKeyFree       = "free"
	PlanKeyBasic      = "basic"
	PlanKeyPro        = "pro"
	PlanKeyEnterprise = "enterprise"
)

// IsPaid returns true when the plan carries a nonzero price
func (p *Plan) IsPaid() bool {
	return p != nil && p.PriceCents > 0
}

// ComparePlans orders two plans by level. A nil plan sorts below every
// real plan, so accounts that never subscribed compare as the floor.
// Returns -1 when a ranks below b, 0 when equal, 1 when a ranks above b.
func ComparePlans(a, b *Plan) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Level < b.Level:
		return -1
	case a.Level > b.Level:
		return 1
	default:
		return 0
	}
}
