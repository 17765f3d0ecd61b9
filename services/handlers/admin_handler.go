package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/apibridge-labs/bridge_api/shared"
)

type AdminHandler struct {
	rateSvc RateLimitAdminInterface
}

func NewAdminHandler(rateSvc RateLimitAdminInterface) *AdminHandler {
	return &AdminHandler{
		rateSvc: rateSvc,
	}
}

// @Summary Rate Limit Stats
// @Description Snapshot of the in-memory rate limiter state
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.RateLimitStats}
// @Router /api/v1/admin/rate-limits/stats [get]
func (h *AdminHandler) RateLimitStats(c *fiber.Ctx) error {
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", h.rateSvc.Stats())
}

// @Summary Reset Rate Limit Counters
// @Description Drop every tracked window across all connections
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/rate-limits/reset [post]
func (h *AdminHandler) ResetRateLimits(c *fiber.Ctx) error {
	h.rateSvc.ResetAllCounters()
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", nil)
}
