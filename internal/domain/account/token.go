package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/avwx/portal/internal/domain/shared"
	"github.com/google/uuid"
)

// TokenKind distinguishes API tokens by purpose
type TokenKind string

const (
	TokenKindApp TokenKind = "app" // Standard application token
	TokenKindDev TokenKind = "dev" // Development token granted with paid plans
)

// Number of random bytes in a token value before encoding
const tokenEntropyBytes = 32

// Prefix carried by development token values
const devTokenPrefix = "dev-"

// Maximum attempts to generate a globally unique token value before
// giving up and reporting a collision
const maxTokenAttempts = 100

// Default name given to tokens created without an explicit name
const DefaultTokenName = "Token"

// ErrTokenCollision is returned when a unique token value could not be
// generated within the attempt budget
var ErrTokenCollision = shared.NewDomainError("TOKEN_COLLISION", "Could not generate a unique token value")

// UniquenessCheck reports whether a candidate token value is unused
// across all accounts. A nil check treats every candidate as unique.
type UniquenessCheck func(ctx context.Context, value string) (bool, error)

// Token is an API bearer token owned by an account
type Token struct {
	shared.BaseEntity
	Value  string
	Name   string
	Kind   TokenKind
	Active bool
}

// NewToken creates a new application token with a globally unique value
func NewToken(ctx context.Context, name string, isUnique UniquenessCheck) (*Token, error) {
	return newToken(ctx, name, TokenKindApp, isUnique)
}

// NewDevelopmentToken creates the development token granted alongside
// paid subscriptions
func NewDevelopmentToken(ctx context.Context, isUnique UniquenessCheck) (*Token, error) {
	return newToken(ctx, "Development", TokenKindDev, isUnique)
}

func newToken(ctx context.Context, name string, kind TokenKind, isUnique UniquenessCheck) (*Token, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTokenName
	}

	token := &Token{
		BaseEntity: shared.NewBaseEntity(),
		Name:       strings.TrimSpace(name),
		Kind:       kind,
		Active:     true,
	}

	if err := token.Refresh(ctx, isUnique); err != nil {
		return nil, err
	}

	return token, nil
}

// Refresh replaces the token's value with a freshly generated unique one.
// The old value becomes invalid immediately.
func (t *Token) Refresh(ctx context.Context, isUnique UniquenessCheck) error {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		value, err := generateTokenValue(t.Kind)
		if err != nil {
			return shared.NewDomainError("TOKEN_GENERATION_ERROR", "Failed to generate token value")
		}

		if isUnique == nil {
			t.setValue(value)
			return nil
		}

		unique, err := isUnique(ctx, value)
		if err != nil {
			return err
		}
		if unique {
			t.setValue(value)
			return nil
		}
	}

	return ErrTokenCollision
}

func (t *Token) setValue(value string) {
	t.Value = value
	t.UpdatedAt = time.Now()
}

// Rename changes the token's display name
func (t *Token) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_TOKEN_NAME", "Token name cannot be empty")
	}
	if len(name) > 100 {
		return shared.NewDomainError("INVALID_TOKEN_NAME", "Token name cannot exceed 100 characters")
	}

	t.Name = name
	t.UpdatedAt = time.Now()

	return nil
}

// SetActive toggles whether the token is accepted for API calls
func (t *Token) SetActive(active bool) {
	t.Active = active
	t.UpdatedAt = time.Now()
}

// IsDevelopment returns true for development tokens
func (t *Token) IsDevelopment() bool {
	return t.Kind == TokenKindDev
}

// generateTokenValue produces a URL-safe random token value.
// Development tokens carry a recognizable prefix in place of the
// first characters so the total length stays constant.
func generateTokenValue(kind TokenKind) (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	value := base64.RawURLEncoding.EncodeToString(buf)
	if kind == TokenKindDev {
		value = devTokenPrefix + value[len(devTokenPrefix):]
	}

	return value, nil
}

// TokenSet holds all tokens owned by a single account
type TokenSet []Token

// Find returns the token with the given ID, or nil if absent
func (s TokenSet) Find(id uuid.UUID) *Token {
	for i := range s {
		if s[i].ID == id {
			return &s[i]
		}
	}
	return nil
}

// FindByValue returns the token with the given value, or nil if absent
func (s TokenSet) FindByValue(value string) *Token {
	for i := range s {
		if s[i].Value == value {
			return &s[i]
		}
	}
	return nil
}

// Development returns the development token, or nil if the account has none
func (s TokenSet) Development() *Token {
	for i := range s {
		if s[i].IsDevelopment() {
			return &s[i]
		}
	}
	return nil
}

// Applications returns the application tokens in issue order
func (s TokenSet) Applications() []Token {
	apps := make([]Token, 0, len(s))
	for _, t := range s {
		if !t.IsDevelopment() {
			apps = append(apps, t)
		}
	}
	return apps
}
