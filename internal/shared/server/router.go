package server

import (
	"github.com/gin-gonic/gin"

	"legal-ease-backend/internal/shared/config"
	"legal-ease-backend/internal/shared/metrics"
	"legal-ease-backend/internal/shared/server/middleware"
	"legal-ease-backend/internal/webapi"
	"legal-ease-backend/internal/whatsapp"
)

// RouterDeps provides handlers for router wiring.
type RouterDeps struct {
	Config          config.Config
	WebHandler      *webapi.Handler
	WhatsAppHandler *whatsapp.Handler
	Metrics         *metrics.Metrics
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	if deps.Metrics != nil {
		r.GET("/metrics", deps.Metrics.Handler())
	}

	api := r.Group("/api")
	if deps.WebHandler != nil {
		deps.WebHandler.RegisterPublicRoutes(api)
		scoped := api.Group("")
		scoped.Use(middleware.Identity(deps.Config.Env == "production"))
		deps.WebHandler.RegisterRoutes(scoped)
	}

	if deps.WhatsAppHandler != nil {
		deps.WhatsAppHandler.RegisterRoutes(r.Group("/webhook"))
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
