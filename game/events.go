package game

import "time"

// EventType tags an outbound event envelope.
type EventType string

const (
	EventCardAssigned EventType = "cardAssigned"
	EventCallDrawn    EventType = "callDrawn"
	EventPlayerJoined EventType = "playerJoined"
	EventPlayerLeft   EventType = "playerLeft"
	EventGameStarted  EventType = "gameStarted"
	EventGameEnded    EventType = "gameEnded"
	// EventSessionState carries the full public snapshot, pushed to a player
	// right after their connection attaches.
	EventSessionState EventType = "sessionState"
)

// Event is the envelope the transport layer serializes to clients.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Payload shapes below are the wire contract with the transport layer.

type CardAssigned struct {
	PlayerID string `json:"playerId"`
	Card     Card   `json:"card"`
}

type CallDrawn struct {
	Letter        string `json:"letter"`
	Number        int    `json:"number"`
	HistoryLength int    `json:"historyLength"`
}

type PlayerJoined struct {
	PlayerID string `json:"playerId"`
}

type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

type GameStarted struct {
	SessionID string `json:"sessionId"`
}

// GameEnded reports the terminal transition. WinnerID is "none" when the game
// ended without a winner (exhausted, aborted, internal-error).
type GameEnded struct {
	WinnerID string `json:"winnerId"`
	Reason   string `json:"reason"`
}

// End reasons carried by GameEnded.
const (
	EndReasonBingo = "bingo"
	// EndReasonExhausted is informational rather than a failure: all 75
	// numbers were drawn with no valid claim.
	EndReasonExhausted = "sequencer-exhausted"
	EndReasonAborted   = "aborted"
	EndReasonInternal  = "internal-error"

	// NoWinner is the WinnerID placeholder for winnerless endings.
	NoWinner = "none"
)

// PlayerInfo is the public view of one player inside a Snapshot.
type PlayerInfo struct {
	PlayerID   string      `json:"playerId"`
	State      PlayerState `json:"state"`
	CardNumber int         `json:"cardNumber,omitempty"`
	Connected  bool        `json:"connected"`
}

// Snapshot is the public session state served over REST and pushed on attach.
type Snapshot struct {
	SessionID   string       `json:"sessionId"`
	Phase       Phase        `json:"phase"`
	Capacity    int          `json:"capacity"`
	Players     []PlayerInfo `json:"players"`
	History     []Call       `json:"history"`
	CurrentCall *Call        `json:"currentCall,omitempty"`
	WinnerID    string       `json:"winnerId,omitempty"`
	EndReason   string       `json:"endReason,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// EventSink receives session-originated events. The Connection Gateway is the
// production implementation; tests substitute a recorder. Implementations must
// not call back into the session from inside the sink.
type EventSink interface {
	Broadcast(sessionID string, evt Event)
	Unicast(sessionID, playerID string, evt Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Broadcast(string, Event)       {}
func (NopSink) Unicast(string, string, Event) {}
