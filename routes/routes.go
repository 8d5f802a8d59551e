package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/bellapacxx/bingo-engine/controllers"
	"github.com/bellapacxx/bingo-engine/game"
	"github.com/bellapacxx/bingo-engine/services"
)

func SetupRoutes(r *gin.Engine, reg *game.Registry, gw *services.Gateway) {
	api := r.Group("/api")

	// ----------------------
	// User routes (registration glue)
	// ----------------------
	api.POST("/users", controllers.RegisterUser)
	api.GET("/users/:telegram_id", controllers.GetUser)

	// ----------------------
	// Session routes
	// ----------------------
	api.GET("/sessions", controllers.ListSessions(reg))
	api.POST("/sessions", controllers.CreateSession(reg))
	api.GET("/sessions/:session_id", controllers.GetSession(reg))
	api.DELETE("/sessions/:session_id", controllers.CloseSession(reg))

	// ----------------------
	// WebSocket endpoint
	// ----------------------
	r.GET("/ws/:session_id", gw.HandleWebSocket)
}
