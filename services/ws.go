package services

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/bellapacxx/bingo-engine/game"
	"github.com/bellapacxx/bingo-engine/models"
	"github.com/bellapacxx/bingo-engine/utils/logger"
)

var upgrader = websocket.Upgrader{
	// TODO: restrict to the frontend origin in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// TokenAuth authenticates against the registration store: the token issued
// by the chat-bot flow maps to a user, whose username is the stable player
// identity the engine sees.
func TokenAuth(db *gorm.DB) AuthFunc {
	return func(token string) (string, error) {
		var user models.User
		if err := db.Where("token = ?", token).First(&user).Error; err != nil {
			return "", err
		}
		return user.Username, nil
	}
}

// HandleWebSocket upgrades GET /ws/:session_id?token=... and attaches the
// connection to the session bound to that identity.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session id"})
		return
	}

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	playerID, err := g.auth(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("[WS] upgrade error: %v", err)
		return
	}

	if _, err := g.attach(conn, sessionID, playerID); err != nil {
		logger.Infof("[WS] attach %s/%s rejected: %v", sessionID, playerID, err)
		b := []byte(`{"type":"error","payload":{"code":"` + game.CodeOf(err) + `","message":"could not join session"}}`)
		_ = conn.WriteMessage(websocket.TextMessage, b)
		conn.Close()
		return
	}
}
