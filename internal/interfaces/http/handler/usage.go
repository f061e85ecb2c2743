package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appaccount "github.com/avwx/portal/internal/application/account"
)

// UsageHandler serves the token usage report endpoint
type UsageHandler struct {
	BaseHandler
	usage *appaccount.UsageService
}

// NewUsageHandler creates a usage handler
func NewUsageHandler(usage *appaccount.UsageService, log *zap.Logger) *UsageHandler {
	return &UsageHandler{
		BaseHandler: NewBaseHandler(log),
		usage:       usage,
	}
}

// RegisterRoutes registers usage routes on the given group
func (h *UsageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.Report)
}

// Report returns the account's 30-day usage report. Passing
// ?refresh=true drops the cached report and rebuilds it.
// @Summary Usage report
// @Tags usage
// @Router /usage [get]
func (h *UsageHandler) Report(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	if c.Query("refresh") == "true" {
		h.usage.InvalidateUsage(accountID)
	}

	report, err := h.usage.GetUsageReport(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}
