package services

import (
	"fmt"
	"os"
	"strconv"

	docs "github.com/apibridge-labs/bridge_api/docs"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	log "github.com/sirupsen/logrus"

	"github.com/apibridge-labs/bridge_api/services/handlers"
	"github.com/apibridge-labs/bridge_api/shared"
)

type HttpService struct {
	context.DefaultService

	gatewayHandler *handlers.GatewayHandler
	driftHandler   *handlers.DriftHandler
	adminHandler   *handlers.AdminHandler

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

// authProvider is what the http layer needs from the auth middleware service;
// asserting to it avoids importing the middleware package back into services.
type authProvider interface {
	RequiredAuth() fiber.Handler
}

const authMiddlewareSvcID = "auth"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	gatewaySvc := svc.Service(GATEWAY_SVC).(*GatewayService)
	storeSvc := svc.Service(DRIFT_STORE_SVC).(*DriftStoreService)
	analyzerSvc := svc.Service(DRIFT_ANALYZER_SVC).(*DriftAnalyzerService)
	exportSvc := svc.Service(EXPORT_SVC).(*ExportService)
	rateSvc := svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	auth := svc.Service(authMiddlewareSvcID).(authProvider)

	svc.gatewayHandler = handlers.NewGatewayHandler(gatewaySvc)
	svc.driftHandler = handlers.NewDriftHandler(storeSvc, analyzerSvc, exportSvc)
	svc.adminHandler = handlers.NewAdminHandler(rateSvc)

	docs.SwaggerInfo.BasePath = ""

	app := fiber.New(fiber.Config{
		ErrorHandler: svc.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	v1 := app.Group("/api/v1", auth.RequiredAuth())

	gateway := v1.Group("/gateway")
	gateway.Post("/preflight", svc.gatewayHandler.Preflight)

	drift := gateway.Group("/drift")
	drift.Get("/reports", svc.driftHandler.ListReports)
	drift.Get("/reports/:reportId", svc.driftHandler.GetReport)
	drift.Patch("/reports/:reportId/status", svc.driftHandler.UpdateStatus)
	drift.Get("/summary", svc.driftHandler.Summary)
	drift.Post("/actions/:actionId/resolve", svc.driftHandler.BulkResolve)
	drift.Post("/analyze", svc.driftHandler.Analyze)
	drift.Post("/export", svc.driftHandler.Export)
	drift.Post("/integrations/:integrationId/analyze", svc.driftHandler.AnalyzeIntegration)
	drift.Get("/integrations/:integrationId/config", svc.driftHandler.GetConfig)
	drift.Put("/integrations/:integrationId/config", svc.driftHandler.UpdateConfig)

	admin := v1.Group("/admin")
	admin.Get("/rate-limits/stats", svc.adminHandler.RateLimitStats)
	admin.Post("/rate-limits/reset", svc.adminHandler.ResetRateLimits)

	svc.server = app

	log.WithField("port", svc.port).Info("HTTP service started")
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, map[string]interface{}{
			"code": appErr.Code,
		})
	}

	if storageErr := mapStorageError(err); storageErr != nil {
		return shared.ResponseJSON(c, storageErr.StatusCode, storageErr.Message, map[string]interface{}{
			"code": storageErr.Code,
		})
	}

	if fiberErr, ok := err.(*fiber.Error); ok {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.WithError(err).Error("Unhandled request error")
	return shared.ResponseInternalError(c, err)
}
