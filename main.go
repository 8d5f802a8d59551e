package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bellapacxx/bingo-engine/config"
	"github.com/bellapacxx/bingo-engine/game"
	"github.com/bellapacxx/bingo-engine/routes"
	"github.com/bellapacxx/bingo-engine/services"
	"github.com/bellapacxx/bingo-engine/utils/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	db := config.SetupDatabase(cfg)

	// The gateway is the registry's event sink, so it is built first and
	// bound once the registry exists.
	gateway := services.NewGateway(services.TokenAuth(db))
	registry := game.NewRegistry(cfg.RegistryConfig(), gateway, logger.Log)
	defer registry.Close()
	gateway.Bind(registry)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowedOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(router, registry, gateway)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	logger.Infof("bingo engine listening on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
