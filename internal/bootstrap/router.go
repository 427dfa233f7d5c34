package bootstrap

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-substitute/internal/handler"
	"github.com/noah-isme/sma-substitute/internal/middleware"
	"github.com/noah-isme/sma-substitute/pkg/config"
	"github.com/noah-isme/sma-substitute/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitute/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitute/pkg/middleware/requestid"
)

// NewRouter mounts every HTTP route of app.
func NewRouter(app *App) *gin.Engine {
	cfg := app.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(app.Logger))
	r.Use(middleware.Metrics(app.Metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	metrics := handler.NewMetricsHandler(app.Metrics, app.Checks)
	r.GET("/health", metrics.Health)
	r.GET("/ready", metrics.Ready)
	r.GET("/metrics", metrics.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", metrics.Summary)
	handler.NewSubstitutionHandler(app.Substitutions, app.Verifier, app.Exports, app.Store).Register(api)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	return r
}
