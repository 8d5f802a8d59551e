package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bellapacxx/bingo-engine/game"
)

// ListSessions returns the public state of every live session.
func ListSessions(reg *game.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": reg.List()})
	}
}

type createSessionRequest struct {
	SessionID string `json:"session_id"`
}

// CreateSession explicitly creates a session (sessions are also created
// implicitly by the first WebSocket join). Without an id one is generated.
func CreateSession(reg *game.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}
		session := reg.GetOrCreate(req.SessionID)
		c.JSON(http.StatusCreated, session.Snapshot())
	}
}

// GetSession returns a single session's public state.
func GetSession(reg *game.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := reg.Get(c.Param("session_id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": game.CodeOf(err)})
			return
		}
		c.JSON(http.StatusOK, session.Snapshot())
	}
}

// CloseSession aborts a session and removes it from the registry.
func CloseSession(reg *game.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := reg.Get(c.Param("session_id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": game.CodeOf(err)})
			return
		}
		reg.Remove(c.Param("session_id"))
		c.JSON(http.StatusOK, gin.H{"status": "closed"})
	}
}
