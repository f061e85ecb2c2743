package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avwx/portal/internal/infrastructure/auth"
	"github.com/avwx/portal/internal/infrastructure/logger"
	"github.com/avwx/portal/internal/interfaces/http/dto"
)

const (
	// ContextKeyClaims is the gin context key holding the validated claims
	ContextKeyClaims = "jwt_claims"
	// ContextKeyAccountID is the gin context key holding the account ID string
	ContextKeyAccountID = "jwt_account_id"
	// ContextKeyEmail is the gin context key holding the account email
	ContextKeyEmail = "jwt_email"
)

// JWTConfig configures the JWT authentication middleware
type JWTConfig struct {
	JWTService     *auth.JWTService
	TokenBlacklist auth.TokenBlacklist
	Logger         *zap.Logger
	// SkipPaths are exact request paths that bypass authentication
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that bypass authentication
	SkipPathPrefixes []string
}

// JWT returns a middleware that validates bearer tokens on every request
// not covered by the skip lists. Validated claims are stored on the gin
// context and the account ID is attached to the request logger.
func JWT(cfg JWTConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		tokenString, err := extractBearerToken(c)
		if err != nil {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Missing or malformed Authorization header")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(tokenString)
		if err != nil {
			handleAuthError(c, err)
			return
		}

		if cfg.TokenBlacklist != nil {
			ctx := c.Request.Context()

			blacklisted, err := cfg.TokenBlacklist.IsBlacklisted(ctx, claims.ID)
			if err != nil {
				// Blacklist lookup failures must not lock everyone out
				if cfg.Logger != nil {
					cfg.Logger.Error("token blacklist check failed", zap.Error(err))
				}
			} else if blacklisted {
				handleAuthError(c, auth.ErrTokenBlacklisted)
				return
			}

			invalidated, err := cfg.TokenBlacklist.IsAccountTokenInvalidated(ctx, claims.AccountID, claims.GetIssuedAtTime())
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Error("account token invalidation check failed", zap.Error(err))
				}
			} else if invalidated {
				handleAuthError(c, auth.ErrTokenBlacklisted)
				return
			}
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyAccountID, claims.AccountID)
		c.Set(ContextKeyEmail, claims.Email)

		// Make the account ID visible to downstream log lines
		ctx, _ := logger.WithAccountID(c.Request.Context(), logger.FromContext(c.Request.Context()), claims.AccountID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// extractBearerToken pulls the token out of the Authorization header
func extractBearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", auth.ErrInvalidToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", auth.ErrInvalidToken
	}
	return parts[1], nil
}

func handleAuthError(c *gin.Context, err error) {
	code := dto.ErrCodeUnauthorized
	message := "Invalid authentication token"

	switch err {
	case auth.ErrExpiredToken:
		code = "TOKEN_EXPIRED"
		message = "Authentication token has expired"
	case auth.ErrTokenNotYetValid:
		code = "TOKEN_INVALID"
		message = "Authentication token is not yet valid"
	case auth.ErrInvalidTokenType:
		code = "TOKEN_INVALID"
		message = "Wrong token type for this operation"
	case auth.ErrTokenBlacklisted:
		code = "TOKEN_INVALID"
		message = "Authentication token has been revoked"
	}

	abortUnauthorized(c, code, message)
}

func abortUnauthorized(c *gin.Context, code, message string) {
	requestID := c.GetString("request_id")
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// GetJWTClaims returns the validated claims set by the JWT middleware
func GetJWTClaims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// GetJWTAccountID returns the authenticated account ID set by the JWT middleware
func GetJWTAccountID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextKeyAccountID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
