package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/entity"
	"github.com/polygrid/tactics-backend/internal/pkg"
	"github.com/polygrid/tactics-backend/internal/repository"
)

type templateHandler struct {
	logger    *slog.Logger
	templates repository.TemplateRepository
}

func newTemplateHandler(logger *slog.Logger, templates repository.TemplateRepository) *templateHandler {
	return &templateHandler{
		logger:    logger.With("component", "rest"),
		templates: templates,
	}
}

func (that *templateHandler) list(c *gin.Context) {
	templates, err := that.templates.GetAll(c.Request.Context())
	if err != nil {
		that.logger.Error("failed to list templates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list templates"})
		return
	}

	c.JSON(http.StatusOK, templates)
}

func (that *templateHandler) get(c *gin.Context) {
	template, err := that.templates.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, apperror.ErrTemplateNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}
	if err != nil {
		that.logger.Error("failed to get template", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get template"})
		return
	}

	c.JSON(http.StatusOK, template)
}

func (that *templateHandler) create(c *gin.Context) {
	var template entity.GameTemplate
	if err := c.ShouldBindJSON(&template); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template body"})
		return
	}

	if len(template.Board) == 0 || len(template.Board[0]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template board must not be empty"})
		return
	}

	if template.ID == "" {
		template.ID = pkg.GenerateTemplateID()
	}

	if err := that.templates.CreateOrUpdate(c.Request.Context(), &template); err != nil {
		that.logger.Error("failed to save template", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save template"})
		return
	}

	c.JSON(http.StatusCreated, template)
}
