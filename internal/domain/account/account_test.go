package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan(key string, level int, price int64) *Plan {
	plan := &Plan{
		Key:        key,
		Name:       key,
		Level:      level,
		PriceCents: price,
	}
	return plan
}

func TestNewAccount(t *testing.T) {
	t.Run("creates active account", func(t *testing.T) {
		acct, err := NewAccount("Pilot@Example.com", "Password123")

		require.NoError(t, err)
		assert.Equal(t, "pilot@example.com", acct.Email)
		assert.Equal(t, AccountStatusActive, acct.Status)
		assert.NotEmpty(t, acct.PasswordHash)
		assert.Nil(t, acct.Plan)
		assert.Empty(t, acct.Tokens)

		events := acct.GetDomainEvents()
		require.Len(t, events, 1)
		_, ok := events[0].(*AccountCreatedEvent)
		assert.True(t, ok)
	})

	t.Run("fails with invalid email", func(t *testing.T) {
		_, err := NewAccount("not-an-email", "Password123")
		assert.Error(t, err)
	})

	t.Run("fails with short password", func(t *testing.T) {
		_, err := NewAccount("pilot@example.com", "short")
		assert.Error(t, err)
	})
}

func TestAccount_Password(t *testing.T) {
	acct, err := NewAccount("pilot@example.com", "Password123")
	require.NoError(t, err)

	t.Run("verifies correct password", func(t *testing.T) {
		assert.True(t, acct.VerifyPassword("Password123"))
		assert.False(t, acct.VerifyPassword("wrong"))
	})

	t.Run("changes password with old password check", func(t *testing.T) {
		err := acct.ChangePassword("wrong", "NewPassword1")
		assert.Error(t, err)

		require.NoError(t, acct.ChangePassword("Password123", "NewPassword1"))
		assert.True(t, acct.VerifyPassword("NewPassword1"))
	})
}

func TestAccount_IssueToken(t *testing.T) {
	ctx := context.Background()

	t.Run("issues token for active account", func(t *testing.T) {
		acct, err := NewAccount("pilot@example.com", "Password123")
		require.NoError(t, err)
		acct.ClearDomainEvents()

		token, err := acct.IssueToken(ctx, "CLI", nil)

		require.NoError(t, err)
		assert.Equal(t, "CLI", token.Name)
		require.Len(t, acct.Tokens, 1)
		assert.Equal(t, token.ID, acct.Tokens[0].ID)

		events := acct.GetDomainEvents()
		require.Len(t, events, 1)
		issued, ok := events[0].(*TokenIssuedEvent)
		require.True(t, ok)
		assert.Equal(t, TokenKindApp, issued.TokenKind)
	})

	t.Run("disabled account cannot issue", func(t *testing.T) {
		acct, err := NewAccount("pilot@example.com", "Password123")
		require.NoError(t, err)
		require.NoError(t, acct.Disable())

		_, err = acct.IssueToken(ctx, "CLI", nil)
		assert.Error(t, err)
		assert.Empty(t, acct.Tokens)
	})
}

func TestAccount_IssueDevelopmentToken(t *testing.T) {
	ctx := context.Background()

	t.Run("holds at most one development token", func(t *testing.T) {
		acct, err := NewAccount("pilot@example.com", "Password123")
		require.NoError(t, err)

		first, err := acct.IssueDevelopmentToken(ctx, nil)
		require.NoError(t, err)

		second, err := acct.IssueDevelopmentToken(ctx, nil)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, acct.Tokens, 1)
	})
}

func TestAccount_RefreshToken(t *testing.T) {
	ctx := context.Background()
	acct, err := NewAccount("pilot@example.com", "Password123")
	require.NoError(t, err)

	token, err := acct.IssueToken(ctx, "CLI", nil)
	require.NoError(t, err)
	old := token.Value

	t.Run("rotates value in place", func(t *testing.T) {
		refreshed, err := acct.RefreshToken(ctx, token.ID, nil)

		require.NoError(t, err)
		assert.NotEqual(t, old, refreshed.Value)
		assert.Equal(t, refreshed.Value, acct.Tokens[0].Value)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		other, err := NewToken(ctx, "elsewhere", nil)
		require.NoError(t, err)

		_, err = acct.RefreshToken(ctx, other.ID, nil)
		assert.Error(t, err)
	})
}

func TestAccount_UpdateToken(t *testing.T) {
	ctx := context.Background()
	acct, err := NewAccount("pilot@example.com", "Password123")
	require.NoError(t, err)

	token, err := acct.IssueToken(ctx, "CLI", nil)
	require.NoError(t, err)

	t.Run("updates name and active flag", func(t *testing.T) {
		updated, err := acct.UpdateToken(token.ID, "Paused CLI", false)

		require.NoError(t, err)
		assert.Equal(t, "Paused CLI", updated.Name)
		assert.False(t, updated.Active)
		assert.False(t, acct.Tokens[0].Active)
	})
}

func TestAccount_RemoveToken(t *testing.T) {
	ctx := context.Background()

	t.Run("removes existing token", func(t *testing.T) {
		acct, err := NewAccount("pilot@example.com", "Password123")
		require.NoError(t, err)

		token, err := acct.IssueToken(ctx, "CLI", nil)
		require.NoError(t, err)
		acct.ClearDomainEvents()

		require.NoError(t, acct.RemoveToken(token.ID))
		assert.Empty(t, acct.Tokens)

		events := acct.GetDomainEvents()
		require.Len(t, events, 1)
		_, ok := events[0].(*TokenRemovedEvent)
		assert.True(t, ok)
	})

	t.Run("missing token is an error", func(t *testing.T) {
		acct, err := NewAccount("pilot@example.com", "Password123")
		require.NoError(t, err)

		other, err := NewToken(ctx, "elsewhere", nil)
		require.NoError(t, err)

		assert.Error(t, acct.RemoveToken(other.ID))
	})
}

func TestAccount_SetPlan(t *testing.T) {
	acct, err := NewAccount("pilot@example.com", "Password123")
	require.NoError(t, err)
	acct.ClearDomainEvents()

	pro := testPlan(PlanKeyPro, 2, 2900)

	t.Run("assigns plan and billing references", func(t *testing.T) {
		require.NoError(t, acct.SetPlan(pro, "cus_123", "sub_123"))

		assert.Equal(t, pro, acct.Plan)
		assert.Equal(t, "cus_123", acct.CustomerID)
		assert.Equal(t, "sub_123", acct.SubscriptionID)
		assert.True(t, acct.HasPaidPlan())

		events := acct.GetDomainEvents()
		require.Len(t, events, 1)
		changed, ok := events[0].(*PlanChangedEvent)
		require.True(t, ok)
		assert.True(t, changed.Upgrade)
		assert.Equal(t, PlanKeyPro, changed.NewPlanKey)
	})

	t.Run("keeps customer across plan changes", func(t *testing.T) {
		basic := testPlan(PlanKeyBasic, 1, 900)
		require.NoError(t, acct.SetPlan(basic, "", "sub_456"))

		assert.Equal(t, "cus_123", acct.CustomerID)
		assert.Equal(t, "sub_456", acct.SubscriptionID)
	})

	t.Run("rejects nil plan", func(t *testing.T) {
		assert.Error(t, acct.SetPlan(nil, "", ""))
	})
}

func TestAccount_ClearSubscription(t *testing.T) {
	ctx := context.Background()
	free := testPlan(PlanKeyFree, 0, 0)
	pro := testPlan(PlanKeyPro, 2, 2900)

	t.Run("drops to free plan and revokes development token", func(t *testing.T) {
		acct, err := NewAccount("pilot@example.com", "Password123")
		require.NoError(t, err)
		require.NoError(t, acct.SetPlan(pro, "cus_123", "sub_123"))

		_, err = acct.IssueDevelopmentToken(ctx, nil)
		require.NoError(t, err)
		_, err = acct.IssueToken(ctx, "CLI", nil)
		require.NoError(t, err)

		require.NoError(t, acct.ClearSubscription(free))

		assert.Equal(t, free, acct.Plan)
		assert.Empty(t, acct.SubscriptionID)
		assert.False(t, acct.HasPaidPlan())
		assert.Nil(t, acct.Tokens.Development())
		assert.Len(t, acct.Tokens, 1)
	})

	t.Run("requires a free plan", func(t *testing.T) {
		acct, err := NewAccount("pilot@example.com", "Password123")
		require.NoError(t, err)

		assert.Error(t, acct.ClearSubscription(pro))
		assert.Error(t, acct.ClearSubscription(nil))
	})
}

func TestComparePlans(t *testing.T) {
	free := testPlan(PlanKeyFree, 0, 0)
	pro := testPlan(PlanKeyPro, 2, 2900)

	t.Run("nil sorts below any plan", func(t *testing.T) {
		assert.Equal(t, 0, ComparePlans(nil, nil))
		assert.Equal(t, -1, ComparePlans(nil, free))
		assert.Equal(t, 1, ComparePlans(free, nil))
	})

	t.Run("orders by level", func(t *testing.T) {
		assert.Equal(t, -1, ComparePlans(free, pro))
		assert.Equal(t, 1, ComparePlans(pro, free))
		assert.Equal(t, 0, ComparePlans(pro, pro))
	})
}
