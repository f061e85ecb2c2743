package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountRepository defines the interface for account persistence.
// Save persists the aggregate including its token set.
type AccountRepository interface {
	// Create creates a new account
	Create(ctx context.Context, acct *Account) error

	// Save persists changes to an account and its tokens
	Save(ctx context.Context, acct *Account) error

	// Delete permanently removes an account with its tokens
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByID finds an account by ID, tokens and plan loaded
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// FindByEmail finds an account by email, tokens and plan loaded
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByCustomerID finds the account holding a billing customer reference
	FindByCustomerID(ctx context.Context, customerID string) (*Account, error)

	// FindByTokenValue finds the account owning a token value
	FindByTokenValue(ctx context.Context, value string) (*Account, error)

	// ExistsByEmail checks if an email is already registered
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// TokenValueExists checks whether any account holds the token value
	TokenValueExists(ctx context.Context, value string) (bool, error)
}

// PlanRepository defines the interface for the plan catalog
type PlanRepository interface {
	// FindByKey finds a plan by its stable key
	FindByKey(ctx context.Context, key string) (*Plan, error)

	// FindByStripePriceID finds the plan bound to a billing price reference
	FindByStripePriceID(ctx context.Context, priceID string) (*Plan, error)

	// FindAll returns the full catalog ordered by level
	FindAll(ctx context.Context) ([]*Plan, error)

	// Save inserts or updates a catalog entry
	Save(ctx context.Context, plan *Plan) error
}

// UsageStore reads recorded API call counts for usage reporting
type UsageStore interface {
	// CountsByDay returns daily call counts since the given day, keyed by
	// UTC day then token ID
	CountsByDay(ctx context.Context, accountID uuid.UUID, since time.Time) (map[time.Time]map[uuid.UUID]int64, error)

	// Record adds calls to a token's counter for the given UTC day
	Record(ctx context.Context, accountID, tokenID uuid.UUID, day time.Time, calls int64) error
}
