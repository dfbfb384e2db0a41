package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/careercopilot/internal/pkg/response"
	"github.com/xxxsen/careercopilot/internal/service"
)

type ApplicationHandler struct {
	apps *service.ApplicationService
}

func NewApplicationHandler(apps *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{apps: apps}
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	var req service.ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	app, err := h.apps.Create(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, app)
}

func (h *ApplicationHandler) List(c *gin.Context) {
	offset, limit := pageArgs(c)
	items, err := h.apps.List(c.Request.Context(), getUserID(c), c.Query("status"), offset, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.SuccessList(c, items, len(items))
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.apps.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, app)
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	var req service.UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	app, err := h.apps.Update(c.Request.Context(), getUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, app)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	if err := h.apps.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
