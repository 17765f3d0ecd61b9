package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/apibridge-labs/bridge_api/dto"
	"github.com/apibridge-labs/bridge_api/shared"
)

type GatewayHandler struct {
	gatewaySvc GatewayServiceInterface
}

func NewGatewayHandler(gatewaySvc GatewayServiceInterface) *GatewayHandler {
	return &GatewayHandler{
		gatewaySvc: gatewaySvc,
	}
}

// @Summary Preflight
// @Description Resolve the connection and credential for an outbound invocation and check rate-limit admission
// @Tags gateway
// @Accept json
// @Produce json
// @Param preflightRequest body dto.PreflightRequest true "Preflight request"
// @Success 200 {object} shared.Response{data=dto.PreflightResponse}
// @Failure 422 {object} shared.Response
// @Failure 429 {object} shared.Response{data=dto.PreflightResponse}
// @Router /api/v1/gateway/preflight [post]
func (h *GatewayHandler) Preflight(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)

	var req dto.PreflightRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	result, err := h.gatewaySvc.Preflight(tenantID, req)
	if err != nil {
		return err
	}

	if !result.RateLimit.Allowed {
		retryAfterSec := (result.RateLimit.RetryAfterMs + 999) / 1000
		c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfterSec, 10))
		return shared.ResponseJSON(c, fiber.StatusTooManyRequests, "Rate limit exceeded", result)
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", result)
}
