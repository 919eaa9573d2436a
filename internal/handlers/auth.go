package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req services.LoginInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := ah.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (ah *AuthHandler) Logout(c *gin.Context) {
	if err := ah.authService.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}
