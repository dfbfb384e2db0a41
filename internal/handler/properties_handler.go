package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/careercopilot/internal/pkg/response"
)

// Properties are the limits a client needs before it calls the api.
type Properties struct {
	MaxUploadBytes int64    `json:"max_upload_bytes"`
	UploadTypes    []string `json:"upload_types"`
	DefaultTopK    int      `json:"default_top_k"`
	MaxTopK        int      `json:"max_top_k"`
	RateLimitMs    int      `json:"rate_limit_ms"`
}

type PropertiesHandler struct {
	properties Properties
}

func NewPropertiesHandler(properties Properties) *PropertiesHandler {
	return &PropertiesHandler{properties: properties}
}

func (h *PropertiesHandler) Get(c *gin.Context) {
	response.Success(c, gin.H{"properties": h.properties})
}
