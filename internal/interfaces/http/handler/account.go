package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appaccount "github.com/avwx/portal/internal/application/account"
)

// UpdateProfileRequest is the payload for profile updates
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

// DeleteAccountRequest requires the account email as confirmation
type DeleteAccountRequest struct {
	ConfirmEmail string `json:"confirm_email" binding:"required,email"`
}

// AccountHandler serves profile update and account deletion endpoints
type AccountHandler struct {
	BaseHandler
	accounts *appaccount.AccountService
}

// NewAccountHandler creates an account handler
func NewAccountHandler(accounts *appaccount.AccountService, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		BaseHandler: NewBaseHandler(log),
		accounts:    accounts,
	}
}

// RegisterRoutes registers account routes on the given group
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	acct := rg.Group("/account")
	{
		acct.PUT("/profile", h.UpdateProfile)
		acct.DELETE("", h.Delete)
	}
}

// UpdateProfile changes the account's display name
// @Summary Update profile
// @Tags account
// @Router /account/profile [put]
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid profile payload: "+err.Error())
		return
	}

	if err := h.accounts.UpdateProfile(c.Request.Context(), accountID, req.FirstName, req.LastName); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Delete removes the account and everything attached to it. The caller
// must re-type the account email to confirm.
// @Summary Delete account
// @Tags account
// @Router /account [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid deletion payload: "+err.Error())
		return
	}

	if err := h.accounts.DeleteAccount(c.Request.Context(), accountID, req.ConfirmEmail); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
