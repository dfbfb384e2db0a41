package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/careercopilot/internal/pkg/response"
	"github.com/xxxsen/careercopilot/internal/service"
)

type CopilotHandler struct {
	copilot *service.CopilotService
}

func NewCopilotHandler(copilot *service.CopilotService) *CopilotHandler {
	return &CopilotHandler{copilot: copilot}
}

func (h *CopilotHandler) Analyze(c *gin.Context) {
	var req service.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	result, err := h.copilot.Analyze(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *CopilotHandler) Ask(c *gin.Context) {
	var req service.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	result, err := h.copilot.Ask(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *CopilotHandler) Tailor(c *gin.Context) {
	var req service.TailorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	result, err := h.copilot.Tailor(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *CopilotHandler) Match(c *gin.Context) {
	var req service.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	result, err := h.copilot.Match(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *CopilotHandler) ListAnalyses(c *gin.Context) {
	offset, limit := pageArgs(c)
	items, err := h.copilot.ListAnalyses(c.Request.Context(), getUserID(c), offset, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.SuccessList(c, items, len(items))
}
