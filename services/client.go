package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bellapacxx/bingo-engine/game"
	"github.com/bellapacxx/bingo-engine/utils/logger"
)

// Client is one live WebSocket connection bound to a (session, player) pair.
type Client struct {
	sessionID string
	playerID  string
	conn      *websocket.Conn
	session   *game.Session
	gateway   *Gateway
	send      chan []byte
	once      sync.Once
}

// inboundMessage is the client request envelope.
type inboundMessage struct {
	Action     string `json:"action"`
	CardNumber int    `json:"card_number"`
	Row        int    `json:"row"`
	Col        int    `json:"col"`
}

// errorPayload answers a rejected operation with the engine's reason code.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// enqueue hands a frame to the write pump without blocking; slow consumers
// drop frames rather than stall the session.
func (c *Client) enqueue(b []byte) {
	defer func() {
		if r := recover(); r != nil {
			// send channel closed under us; the client is gone.
			logger.Debugf("[Client %s] enqueue after close: %v", c.playerID, r)
		}
	}()
	select {
	case c.send <- b:
	default:
		logger.Infof("[Client %s] dropping frame, send buffer full", c.playerID)
	}
}

func (c *Client) readPump() {
	defer c.gateway.detach(c, true)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Infof("[Client %s] disconnected normally", c.playerID)
			} else {
				logger.Infof("[Client %s] read error: %v", c.playerID, err)
			}
			return
		}
		if leave := c.handleMessage(message); leave {
			return
		}
	}
}

// handleMessage dispatches one inbound request to the session. Returns true
// when the client asked to leave and the connection should close.
func (c *Client) handleMessage(msg []byte) bool {
	var req inboundMessage
	if err := json.Unmarshal(msg, &req); err != nil {
		logger.Infof("[Client %s] invalid message: %v", c.playerID, err)
		c.sendError(&game.OpError{Code: "bad-request", Message: "malformed message"})
		return false
	}

	var err error
	switch req.Action {
	case "select_card":
		err = c.session.SelectCard(c.playerID, req.CardNumber)
	case "confirm_card":
		err = c.session.ConfirmCard(c.playerID)
	case "start_game":
		err = c.session.Start(c.playerID)
	case "mark_cell":
		err = c.session.MarkCell(c.playerID, req.Row, req.Col)
	case "claim_bingo":
		err = c.session.ClaimBingo(c.playerID)
	case "leave":
		return true
	default:
		logger.Infof("[Client %s] unknown action %q", c.playerID, req.Action)
		c.sendError(&game.OpError{Code: "bad-request", Message: "unknown action"})
		return false
	}

	if err != nil {
		logger.Infof("[Client %s] %s rejected: %v", c.playerID, req.Action, err)
		c.sendOpError(err)
	}
	return false
}

func (c *Client) sendOpError(err error) {
	if op, ok := err.(*game.OpError); ok {
		c.sendError(op)
		return
	}
	c.sendError(&game.OpError{Code: game.CodeOf(err), Message: "internal error"})
}

func (c *Client) sendError(op *game.OpError) {
	evt := game.Event{
		Type:    "error",
		Payload: errorPayload{Code: op.Code, Message: op.Message},
	}
	if b, err := json.Marshal(evt); err == nil {
		c.enqueue(b)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Infof("[Client %s] write error: %v", c.playerID, err)
			return
		}
	}
}
