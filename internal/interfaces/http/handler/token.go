package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appaccount "github.com/avwx/portal/internal/application/account"
)

// TokenHandler serves the API token lifecycle endpoints
type TokenHandler struct {
	BaseHandler
	tokens *appaccount.TokenService
	usage  *appaccount.UsageService
}

// NewTokenHandler creates a token handler. The usage service is used to
// drop cached usage reports when the token set changes.
func NewTokenHandler(tokens *appaccount.TokenService, usage *appaccount.UsageService, log *zap.Logger) *TokenHandler {
	return &TokenHandler{
		BaseHandler: NewBaseHandler(log),
		tokens:      tokens,
		usage:       usage,
	}
}

// RegisterRoutes registers token routes on the given group
func (h *TokenHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tokens := rg.Group("/tokens")
	{
		tokens.GET("", h.List)
		tokens.POST("", h.Create)
		tokens.PUT("/:id", h.Update)
		tokens.POST("/:id/refresh", h.Refresh)
		tokens.DELETE("/:id", h.Delete)
	}
}

// List returns all tokens on the account
// @Summary List API tokens
// @Tags tokens
// @Router /tokens [get]
func (h *TokenHandler) List(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	infos, err := h.tokens.ListTokens(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, infos)
}

// Create issues a new application token
// @Summary Create an API token
// @Tags tokens
// @Router /tokens [post]
func (h *TokenHandler) Create(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	var input appaccount.CreateTokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid token payload: "+err.Error())
		return
	}
	input.AccountID = accountID

	info, err := h.tokens.CreateToken(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.usage.InvalidateUsage(accountID)
	h.Created(c, info)
}

// Update renames a token or toggles its active flag
// @Summary Update an API token
// @Tags tokens
// @Router /tokens/{id} [put]
func (h *TokenHandler) Update(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	tokenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid token ID")
		return
	}

	var input appaccount.UpdateTokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid token payload: "+err.Error())
		return
	}
	input.AccountID = accountID
	input.TokenID = tokenID

	info, err := h.tokens.UpdateToken(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, info)
}

// Refresh rotates a token's value
// @Summary Rotate an API token value
// @Tags tokens
// @Router /tokens/{id}/refresh [post]
func (h *TokenHandler) Refresh(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	tokenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid token ID")
		return
	}

	info, err := h.tokens.RefreshToken(c.Request.Context(), accountID, tokenID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, info)
}

// Delete removes a token from the account
// @Summary Delete an API token
// @Tags tokens
// @Router /tokens/{id} [delete]
func (h *TokenHandler) Delete(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	tokenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid token ID")
		return
	}

	if err := h.tokens.DeleteToken(c.Request.Context(), accountID, tokenID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.usage.InvalidateUsage(accountID)
	h.NoContent(c)
}
