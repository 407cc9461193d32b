package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/proctor-signaling/config"
	"github.com/mossy-p/proctor-signaling/internal/middleware"
	"github.com/mossy-p/proctor-signaling/internal/models"
)

// SetupRouter wires every HTTP and websocket route.
func SetupRouter(cfg *config.Config, deps SignalingDeps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if !cfg.IsProduction() {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())

	// Global CORS middleware (runs before routing)
	router.Use(deps.Origins.Filter())

	router.GET("/health", Health(deps.Manager))

	apiGroup := router.Group("/api")
	{
		if !cfg.IsProduction() {
			apiGroup.POST("/auth/login", Login(deps.Resolver))
		}

		staff := apiGroup.Group("/rooms",
			middleware.JWTAuth(deps.Resolver),
			middleware.RequireRole(models.RoleSupervisor, models.RoleAdmin),
		)
		staff.GET("/:roomId", GetRoom(deps.Manager))
		staff.DELETE("/:roomId/members/:userId", KickMember(deps.Manager))
	}

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/signal/:roomId", HandleSignaling(deps))
	}

	log.Info().Str("module", "handlers").Bool("dev_login", !cfg.IsProduction()).Msg("router setup")
	return router
}
