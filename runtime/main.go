package main

import (
	"github.com/apibridge-labs/bridge_api/middleware"
	"github.com/apibridge-labs/bridge_api/services"

	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	var ctx *context.Context
	if services.DatabaseServiceID() == services.SQLITE_SVC {
		ctx, err = context.NewCtx(
			&services.JWTService{},
			&middleware.AuthMiddleware{},
			&services.SqliteService{},
			&services.RedisService{},

			&services.RateLimitService{},
			&services.CredentialResolverService{},
			&services.DriftAnalyzerService{},
			&services.DriftStoreService{},
			&services.GatewayService{},
			&services.ExportService{},
			&services.SchedulerService{},

			&services.MonitoringService{},
			&services.HttpService{},
		)
	} else {
		ctx, err = context.NewCtx(
			&services.JWTService{},
			&middleware.AuthMiddleware{},
			&services.PostgresService{},
			&services.RedisService{},

			&services.RateLimitService{},
			&services.CredentialResolverService{},
			&services.DriftAnalyzerService{},
			&services.DriftStoreService{},
			&services.GatewayService{},
			&services.ExportService{},
			&services.SchedulerService{},

			&services.MonitoringService{},
			&services.HttpService{},
		)
	}
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
