package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appaccount "github.com/avwx/portal/internal/application/account"
)

// PlanHandler serves subscription plan endpoints
type PlanHandler struct {
	BaseHandler
	plans *appaccount.PlanService
}

// NewPlanHandler creates a plan handler
func NewPlanHandler(plans *appaccount.PlanService, log *zap.Logger) *PlanHandler {
	return &PlanHandler{
		BaseHandler: NewBaseHandler(log),
		plans:       plans,
	}
}

// RegisterRoutes registers plan routes on the given group
func (h *PlanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	plans := rg.Group("/plans")
	{
		plans.GET("", h.List)
		plans.POST("/change", h.Change)
		plans.POST("/cancel", h.Cancel)
		plans.GET("/portal", h.Portal)
	}
}

// List returns all available plans ordered by level
// @Summary List plans
// @Tags plans
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	infos, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, infos)
}

// Change moves the account to another plan. Upgrades from free return a
// checkout URL instead of switching immediately.
// @Summary Change plan
// @Tags plans
// @Router /plans/change [post]
func (h *PlanHandler) Change(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	var input appaccount.ChangePlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid plan payload: "+err.Error())
		return
	}
	input.AccountID = accountID

	result, err := h.plans.ChangePlan(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Cancel downgrades the account back to the free plan
// @Summary Cancel subscription
// @Tags plans
// @Router /plans/cancel [post]
func (h *PlanHandler) Cancel(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	result, err := h.plans.CancelSubscription(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Portal returns a billing portal session URL for the account
// @Summary Billing portal session
// @Tags plans
// @Router /plans/portal [get]
func (h *PlanHandler) Portal(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	url, err := h.plans.BillingPortal(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"url": url})
}
