package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/careercopilot/internal/model"
	"github.com/xxxsen/careercopilot/internal/pkg/response"
	"github.com/xxxsen/careercopilot/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req service.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, authResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req service.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, authResponse{User: user, Token: token})
}
