package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appaccount "github.com/avwx/portal/internal/application/account"
	"github.com/avwx/portal/internal/application/identity"
	"github.com/avwx/portal/internal/domain/account"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/avwx/portal/internal/infrastructure/auth"
	"github.com/avwx/portal/internal/infrastructure/config"
	"github.com/avwx/portal/internal/infrastructure/persistence"
	"github.com/avwx/portal/internal/infrastructure/persistence/models"
	"github.com/avwx/portal/internal/interfaces/http/middleware"
	"github.com/avwx/portal/internal/interfaces/http/router"
)

// fakeGateway satisfies the billing gateway without talking to Stripe
type fakeGateway struct {
	checkoutURL string
	portalURL   string
}

func (g *fakeGateway) CreateCustomer(_ context.Context, _ string, _ uuid.UUID) (string, error) {
	return "cus_fake", nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, _ appaccount.CheckoutSessionInput) (*appaccount.CheckoutSessionOutput, error) {
	return &appaccount.CheckoutSessionOutput{SessionID: "cs_fake", URL: g.checkoutURL}, nil
}

func (g *fakeGateway) ChangeSubscription(_ context.Context, _, _ string) error {
	return nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, _ string) error {
	return nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, _ string) (string, error) {
	return g.portalURL, nil
}

type testServer struct {
	engine   *gin.Engine
	accounts *persistence.GormAccountRepository
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.PlanModel{},
		&models.AccountModel{},
		&models.TokenModel{},
		&models.TokenUsageModel{},
	))

	accounts := persistence.NewGormAccountRepository(db)
	plans := persistence.NewGormPlanRepository(db)
	usageStore := persistence.NewGormUsageStore(db)

	ctx := context.Background()
	require.NoError(t, plans.Save(ctx, &account.Plan{
		BaseEntity: shared.BaseEntity{ID: uuid.New()}, Key: account.PlanKeyFree, Name: "Free", Level: 0, PriceCents: 0, CallLimit: 4000,
	}))
	require.NoError(t, plans.Save(ctx, &account.Plan{
		BaseEntity: shared.BaseEntity{ID: uuid.New()}, Key: account.PlanKeyPro, Name: "Pro", Level: 2, PriceCents: 1000,
		CallLimit: 400000, StripePriceID: "price_pro",
	}))

	log := zap.NewNop()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "handler-test-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "portal-test",
		MaxRefreshCount:        10,
	})
	blacklist := auth.NewInMemoryTokenBlacklist()
	gateway := &fakeGateway{
		checkoutURL: "https://checkout.example.com/cs_fake",
		portalURL:   "https://billing.example.com/p/fake",
	}

	authService := identity.NewAuthService(accounts, jwtService, blacklist, nil, log)
	tokenService := appaccount.NewTokenService(accounts, log)
	usageService := appaccount.NewUsageService(accounts, usageStore, log)
	planService := appaccount.NewPlanService(accounts, plans, gateway, log)
	accountService := appaccount.NewAccountService(accounts, gateway, nil, log)

	engine := gin.New()
	engine.Use(middleware.RequestID())

	r := router.New(engine)
	r.Register(
		NewAuthHandler(authService, log),
		NewTokenHandler(tokenService, usageService, log),
		NewPlanHandler(planService, log),
		NewUsageHandler(usageService, log),
		NewAccountHandler(accountService, log),
	)
	r.Setup("/api/v1", middleware.JWT(middleware.JWTConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
		Logger:         log,
		SkipPaths: []string{
			"/api/v1/auth/register",
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
		},
	}))

	return &testServer{engine: engine, accounts: accounts}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// register creates an account and returns a usable access token
func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    email,
		"password": "SecurePass123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": "SecurePass123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func TestAuthEndpoints(t *testing.T) {
	srv := setupTestServer(t)

	t.Run("register then login", func(t *testing.T) {
		token := srv.register(t, "pilot@example.com")
		assert.NotEmpty(t, token)
	})

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
			"email":    "pilot@example.com",
			"password": "SecurePass123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "EMAIL_TAKEN")
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"email":    "pilot@example.com",
			"password": "WrongPass123",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
	})

	t.Run("invalid payload rejected", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
			"email": "not-an-email",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("password without digits rejected", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
			"email":    "weak@example.com",
			"password": "OnlyLettersHere",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("me returns the account", func(t *testing.T) {
		token := srv.register(t, "me@example.com")
		w := srv.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "me@example.com")
		assert.Contains(t, w.Body.String(), `"plan":"free"`)
	})

	t.Run("me requires auth", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logout revokes the session token", func(t *testing.T) {
		token := srv.register(t, "bye@example.com")

		w := srv.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = srv.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTokenEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	token := srv.register(t, "tokens@example.com")

	var tokenID string

	t.Run("create token", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/v1/tokens", token, gin.H{"name": "Weather App"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp struct {
			Data appaccount.TokenInfo `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Weather App", resp.Data.Name)
		assert.Equal(t, "app", resp.Data.Kind)
		assert.NotEmpty(t, resp.Data.Value)
		tokenID = resp.Data.ID.String()
	})

	t.Run("list tokens", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/v1/tokens", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Weather App")
	})

	t.Run("rename token", func(t *testing.T) {
		w := srv.do(t, http.MethodPut, "/api/v1/tokens/"+tokenID, token, gin.H{"name": "Renamed App"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "Renamed App")
	})

	t.Run("refresh rotates the value", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/v1/tokens", token, nil)
		var before struct {
			Data []appaccount.TokenInfo `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))
		require.Len(t, before.Data, 1)

		w = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tokens/%s/refresh", tokenID), token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var after struct {
			Data appaccount.TokenInfo `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
		assert.NotEqual(t, before.Data[0].Value, after.Data.Value)
	})

	t.Run("invalid token ID rejected", func(t *testing.T) {
		w := srv.do(t, http.MethodDelete, "/api/v1/tokens/not-a-uuid", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete token", func(t *testing.T) {
		w := srv.do(t, http.MethodDelete, "/api/v1/tokens/"+tokenID, token, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = srv.do(t, http.MethodDelete, "/api/v1/tokens/"+tokenID, token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPlanEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	token := srv.register(t, "plans@example.com")

	t.Run("list plans", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/v1/plans", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"key":"free"`)
		assert.Contains(t, w.Body.String(), `"key":"pro"`)
	})

	t.Run("portal requires a billing account", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/v1/plans/portal", token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "NO_BILLING_ACCOUNT")
	})

	t.Run("upgrade returns a checkout URL", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/v1/plans/change", token, gin.H{"plan": "pro"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Data appaccount.ChangePlanResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Changed)
		assert.Equal(t, "https://checkout.example.com/cs_fake", resp.Data.CheckoutURL)
	})

	t.Run("unknown plan is a 404", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/v1/plans/change", token, gin.H{"plan": "platinum"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "PLAN_NOT_FOUND")
	})

	t.Run("portal opens once a billing customer exists", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/v1/plans/portal", token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "https://billing.example.com/p/fake")
	})
}

func TestUsageEndpoint(t *testing.T) {
	srv := setupTestServer(t)
	token := srv.register(t, "usage@example.com")

	t.Run("empty report without tokens is never cached", func(t *testing.T) {
		var resp struct {
			Data appaccount.UsageReportResult `json:"data"`
		}

		for range 2 {
			w := srv.do(t, http.MethodGet, "/api/v1/usage", token, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, 30, resp.Data.Days)
			assert.Empty(t, resp.Data.Tokens)
			assert.False(t, resp.Data.Cached)
		}

		require.Len(t, resp.Data.Total, 30)
		for _, c := range resp.Data.Total {
			assert.Zero(t, c)
		}
	})

	t.Run("second read is cached, refresh drops the cache", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/v1/tokens", token, gin.H{"name": "Dashboard"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = srv.do(t, http.MethodGet, "/api/v1/usage", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data appaccount.UsageReportResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Cached)

		w = srv.do(t, http.MethodGet, "/api/v1/usage", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Data.Cached)

		w = srv.do(t, http.MethodGet, "/api/v1/usage?refresh=true", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Cached)
	})
}

func TestAccountEndpoints(t *testing.T) {
	srv := setupTestServer(t)

	t.Run("update profile", func(t *testing.T) {
		token := srv.register(t, "profile@example.com")

		w := srv.do(t, http.MethodPut, "/api/v1/account/profile", token, gin.H{
			"first_name": "Amelia",
			"last_name":  "Earhart",
		})
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = srv.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Contains(t, w.Body.String(), "Amelia")
	})

	t.Run("delete requires matching confirmation email", func(t *testing.T) {
		token := srv.register(t, "delete@example.com")

		w := srv.do(t, http.MethodDelete, "/api/v1/account", token, gin.H{
			"confirm_email": "wrong@example.com",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "EMAIL_MISMATCH")

		w = srv.do(t, http.MethodDelete, "/api/v1/account", token, gin.H{
			"confirm_email": "delete@example.com",
		})
		assert.Equal(t, http.StatusNoContent, w.Code)

		_, err := srv.accounts.FindByEmail(context.Background(), "delete@example.com")
		assert.Error(t, err)
	})
}
