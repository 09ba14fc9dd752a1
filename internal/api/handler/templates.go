package handler

import (
	"net/http"

	"github.com/mcoot/makeitmeme/internal/api/response"
	"github.com/mcoot/makeitmeme/internal/content"
)

// TemplateHandler exposes the active template catalogue
type TemplateHandler struct {
	pool *content.Pool
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(pool *content.Pool) *TemplateHandler {
	return &TemplateHandler{
		pool: pool,
	}
}

// List handles GET /api/v1/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.pool.ActiveTemplates(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TemplatesFromModel(templates))
}

// Refresh handles POST /api/v1/admin/templates/refresh
func (h *TemplateHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	templates, err := h.pool.Refresh(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TemplatesFromModel(templates))
}
