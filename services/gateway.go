package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bellapacxx/bingo-engine/game"
	"github.com/bellapacxx/bingo-engine/utils/logger"
)

// AuthFunc resolves a transport credential to a stable player identity.
// Production wires TokenAuth; tests substitute a stub.
type AuthFunc func(token string) (playerID string, err error)

// Gateway binds live WebSocket connections to (sessionID, playerID) pairs and
// relays session events back out. It holds no game state beyond that binding:
// every inbound request is forwarded to the session and every rejection is
// answered with the engine's reason code.
type Gateway struct {
	registry *game.Registry
	auth     AuthFunc

	mu    sync.RWMutex
	conns map[string]map[string]*Client // sessionID -> playerID -> client
}

// NewGateway builds a gateway; Bind must be called before serving traffic.
// The registry cannot be a constructor argument because the registry itself
// needs the gateway as its event sink.
func NewGateway(auth AuthFunc) *Gateway {
	return &Gateway{
		auth:  auth,
		conns: make(map[string]map[string]*Client),
	}
}

// Bind attaches the session registry.
func (g *Gateway) Bind(registry *game.Registry) {
	g.registry = registry
}

// Broadcast implements game.EventSink.
func (g *Gateway) Broadcast(sessionID string, evt game.Event) {
	b, err := json.Marshal(evt)
	if err != nil {
		logger.Errorf("[Gateway] marshal event %s: %v", evt.Type, err)
		return
	}
	g.mu.RLock()
	clients := make([]*Client, 0, len(g.conns[sessionID]))
	for _, c := range g.conns[sessionID] {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(b)
	}
}

// Unicast implements game.EventSink.
func (g *Gateway) Unicast(sessionID, playerID string, evt game.Event) {
	b, err := json.Marshal(evt)
	if err != nil {
		logger.Errorf("[Gateway] marshal event %s: %v", evt.Type, err)
		return
	}
	g.mu.RLock()
	c := g.conns[sessionID][playerID]
	g.mu.RUnlock()
	if c == nil {
		return
	}
	c.enqueue(b)
}

// attach registers the connection, joins the session and pushes the initial
// state snapshot. A previous connection for the same player is displaced.
func (g *Gateway) attach(conn *websocket.Conn, sessionID, playerID string) (*Client, error) {
	session := g.registry.GetOrCreate(sessionID)

	c := &Client{
		sessionID: sessionID,
		playerID:  playerID,
		conn:      conn,
		session:   session,
		gateway:   g,
		send:      make(chan []byte, 32),
	}

	g.mu.Lock()
	if g.conns[sessionID] == nil {
		g.conns[sessionID] = make(map[string]*Client)
	}
	if old, ok := g.conns[sessionID][playerID]; ok {
		old.Close()
	}
	g.conns[sessionID][playerID] = c
	g.mu.Unlock()

	if err := session.Join(playerID); err != nil {
		// Unregister only: the caller still owns the raw connection and will
		// deliver the rejection before closing it.
		g.unregister(c)
		return nil, err
	}

	go c.writePump()
	go c.readPump()

	g.Unicast(sessionID, playerID, game.Event{Type: game.EventSessionState, Payload: session.Snapshot()})
	logger.Infof("[Gateway] player %s attached to session %s", playerID, sessionID)
	return c, nil
}

// detach removes the binding and optionally notifies the session. The notify
// flag is false when the client was displaced by a newer connection for the
// same player, so the reconnect is not reported as a leave.
func (g *Gateway) detach(c *Client, notify bool) {
	current := g.unregister(c)
	c.Close()
	if current && notify {
		if err := c.session.Leave(c.playerID); err != nil {
			logger.Debugf("[Gateway] leave %s/%s: %v", c.sessionID, c.playerID, err)
		}
	}
}

// unregister drops the binding if c is still the current connection for its
// (session, player) pair. Reports whether it was.
func (g *Gateway) unregister(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conns[c.sessionID][c.playerID] != c {
		return false
	}
	delete(g.conns[c.sessionID], c.playerID)
	if len(g.conns[c.sessionID]) == 0 {
		delete(g.conns, c.sessionID)
	}
	return true
}
