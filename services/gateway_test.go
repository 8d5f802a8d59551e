package services

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellapacxx/bingo-engine/game"
)

// stubAuth treats the token itself as the player identity.
func stubAuth(token string) (string, error) {
	if token == "bad" {
		return "", errors.New("unknown token")
	}
	return token, nil
}

func newTestServer(t *testing.T, drawInterval time.Duration) (*httptest.Server, *game.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := NewGateway(stubAuth)
	reg := game.NewRegistry(game.RegistryConfig{
		Session: game.SessionConfig{Capacity: 4, DrawInterval: drawInterval},
	}, gw, nil)
	gw.Bind(reg)

	r := gin.New()
	r.GET("/ws/:session_id", gw.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		reg.Close()
	})
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server, sessionID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil consumes frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", typ)
		var evt wireEvent
		require.NoError(t, json.Unmarshal(msg, &evt))
		if evt.Type == typ {
			return evt.Payload
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t, time.Hour)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/s1?token=bad"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestGatewaySessionFlow(t *testing.T) {
	// A huge draw interval keeps the history empty, so the claim below is
	// deterministically rejected for its unverified mark.
	srv, reg := newTestServer(t, time.Hour)
	conn := dial(t, srv, "s1", "alice")

	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "sessionState"), &snap))
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, game.PhaseCardSelection, snap.Phase)

	send(t, conn, map[string]any{"action": "select_card", "card_number": 7})
	var assigned game.CardAssigned
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "cardAssigned"), &assigned))
	assert.Equal(t, "alice", assigned.PlayerID)
	assert.Equal(t, 7, assigned.Card.Number)

	send(t, conn, map[string]any{"action": "mark_cell", "row": 0, "col": 0})
	send(t, conn, map[string]any{"action": "confirm_card"})

	var started game.GameStarted
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "gameStarted"), &started))
	assert.Equal(t, "s1", started.SessionID)

	session, err := reg.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseInProgress, session.Phase())

	send(t, conn, map[string]any{"action": "claim_bingo"})
	var rejection errorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "error"), &rejection))
	assert.Equal(t, "unverified-marks", rejection.Code)

	send(t, conn, map[string]any{"action": "launch_missiles"})
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "error"), &rejection))
	assert.Equal(t, "bad-request", rejection.Code)
}

func TestGatewayFansOutToAllPlayers(t *testing.T) {
	srv, _ := newTestServer(t, 15*time.Millisecond)
	alice := dial(t, srv, "s2", "alice")
	readUntil(t, alice, "sessionState")

	bob := dial(t, srv, "s2", "bob")
	readUntil(t, bob, "sessionState")

	// Alice observes bob's arrival.
	var joined game.PlayerJoined
	for {
		require.NoError(t, json.Unmarshal(readUntil(t, alice, "playerJoined"), &joined))
		if joined.PlayerID == "bob" {
			break
		}
	}

	send(t, alice, map[string]any{"action": "select_card", "card_number": 1})
	send(t, bob, map[string]any{"action": "select_card", "card_number": 2})
	send(t, alice, map[string]any{"action": "confirm_card"})
	send(t, bob, map[string]any{"action": "confirm_card"})

	// Both players receive the draw stream.
	var fromAlice, fromBob game.CallDrawn
	require.NoError(t, json.Unmarshal(readUntil(t, alice, "callDrawn"), &fromAlice))
	require.NoError(t, json.Unmarshal(readUntil(t, bob, "callDrawn"), &fromBob))
	assert.Equal(t, game.LetterFor(fromAlice.Number), fromAlice.Letter)

	// Bob leaves; alice is told.
	send(t, bob, map[string]any{"action": "leave"})
	var left game.PlayerLeft
	require.NoError(t, json.Unmarshal(readUntil(t, alice, "playerLeft"), &left))
	assert.Equal(t, "bob", left.PlayerID)
}

func TestGatewayRejectsLateJoiner(t *testing.T) {
	srv, _ := newTestServer(t, time.Hour)
	alice := dial(t, srv, "s3", "alice")
	readUntil(t, alice, "sessionState")
	send(t, alice, map[string]any{"action": "select_card", "card_number": 5})
	send(t, alice, map[string]any{"action": "confirm_card"})
	readUntil(t, alice, "gameStarted")

	carol := dial(t, srv, "s3", "carol")
	var rejection errorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, carol, "error"), &rejection))
	assert.Equal(t, "invalid-phase", rejection.Code)
}
