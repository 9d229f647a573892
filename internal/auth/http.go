package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts authentication endpoints under /auth.
func RegisterRoutes(router *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", handler.login)
	}
}

type httpHandler struct {
	service *Service
}

type loginRequest struct {
	StaffID string `json:"staff_id" binding:"required,max=64"`
	PIN     string `json:"pin" binding:"required,min=4,max=72"`
}

type loginResponse struct {
	Staff       Staff  `json:"staff"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"access_token_expires_at"`
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginInput{StaffID: req.StaffID, PIN: req.PIN})
	if err != nil {
		switch err {
		case ErrInvalidCredentials:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
		}
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Staff:       result.Staff,
		AccessToken: result.Token.Token,
		ExpiresAt:   result.Token.ExpiresAt.Unix(),
	})
}
