package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/proctor-signaling/internal/middleware"
	"github.com/mossy-p/proctor-signaling/internal/signaling"
)

// GetRoom returns who is connected to a room right now.
func GetRoom(manager *signaling.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := manager.Room(c.Param("roomId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// KickMember closes every connection a user has in a room.
func KickMember(manager *signaling.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		userID := c.Param("userId")

		n := manager.Kick(roomID, userID, "removed by "+c.GetString(middleware.ContextUserID))
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
			return
		}

		log.Info().Str("module", "handlers.rooms").Str("room", roomID).Str("user", userID).
			Str("by", c.GetString(middleware.ContextUserID)).Msg("member removed")
		c.JSON(http.StatusOK, gin.H{"removed": n})
	}
}

// Health reports liveness and the size of the in-memory registry.
func Health(manager *signaling.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms, conns := manager.Stats()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": rooms, "connections": conns})
	}
}
