package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/proctor-signaling/internal/middleware"
	"github.com/mossy-p/proctor-signaling/internal/models"
)

const devTokenTTL = 24 * time.Hour

// Login issues a token for any user id and role. It exists for local
// development against the signaling server alone and is not routed in
// production, where tokens come from the main API.
func Login(resolver *middleware.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		role, err := models.ParseRole(req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token, err := resolver.Issue(middleware.Identity{UserID: req.UserID, Role: role}, devTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		c.JSON(http.StatusOK, models.LoginResponse{Token: token, UserID: req.UserID, Role: role})
	}
}
