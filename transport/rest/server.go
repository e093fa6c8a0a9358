package rest

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polygrid/tactics-backend/internal/repository"
)

// Start serves the thin HTTP surface: health check and template reads. The
// template admin UI talks to its own CRUD service; this side only needs
// enough to pick a board and seed dev data.
func Start(logger *slog.Logger, port string, templates repository.TemplateRepository) error {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	handler := newTemplateHandler(logger, templates)

	router.GET("/ping", pingHandler)

	api := router.Group("/api")
	{
		api.GET("/templates", handler.list)
		api.GET("/templates/:id", handler.get)
		api.POST("/templates", handler.create)
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
