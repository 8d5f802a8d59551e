package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseCardSelection Phase = "card_selection"
	PhaseInProgress    Phase = "in_progress"
	PhaseFinished      Phase = "finished"
)

// PlayerState is a player's membership state within a session.
type PlayerState string

const (
	PlayerStateJoined       PlayerState = "joined"
	PlayerStateCardPending  PlayerState = "card-pending"
	PlayerStateReady        PlayerState = "ready"
	PlayerStateDisconnected PlayerState = "disconnected"
)

// StartPolicy selects how card_selection advances to in_progress.
type StartPolicy string

const (
	// StartAuto advances as soon as every joined player has confirmed a card.
	StartAuto StartPolicy = "auto"
	// StartManual waits for the host to issue Start.
	StartManual StartPolicy = "manual"
)

// SessionConfig tunes one session.
type SessionConfig struct {
	Capacity      int
	DrawInterval  time.Duration
	StartPolicy   StartPolicy
	MaxCardNumber int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Capacity <= 0 {
		c.Capacity = 10
	}
	if c.DrawInterval <= 0 {
		c.DrawInterval = DefaultDrawInterval
	}
	if c.StartPolicy == "" {
		c.StartPolicy = StartAuto
	}
	if c.MaxCardNumber <= 0 {
		c.MaxCardNumber = 200
	}
	return c
}

type player struct {
	id        string
	state     PlayerState
	prevState PlayerState // state to restore on reconnect
	card      *Card
	marked    map[[2]int]bool
	connected bool
}

// Session owns one room: its players, card assignments, draw history and
// phase. Every mutating operation takes the session mutex, so operations on
// one session are totally ordered while distinct sessions stay independent.
// Events are collected under the lock and flushed to the sink after unlock.
type Session struct {
	id   string
	cfg  SessionConfig
	sink EventSink
	log  *zap.SugaredLogger
	rng  *rand.Rand

	// emitMu spans a state mutation and the delivery of its events, so
	// clients observe events in the order the mutations happened. mu alone
	// only orders the mutations; flushes from different goroutines could
	// otherwise interleave.
	emitMu sync.Mutex

	mu         sync.Mutex
	phase      Phase
	players    map[string]*player
	joinOrder  []string
	takenCards map[int]string // card number -> player id
	drawn      map[int]bool
	history    []Call
	current    *Call
	seq        *Sequencer
	winnerID   string
	endReason  string
	createdAt  time.Time
	finishedAt time.Time
	emptySince time.Time // zero while any player is connected
}

// NewSession builds a session in the lobby phase. rng drives the sequencer
// shuffle and random card numbers; inject a seeded source for deterministic
// tests.
func NewSession(id string, cfg SessionConfig, sink EventSink, rng *rand.Rand, log *zap.SugaredLogger) *Session {
	if sink == nil {
		sink = NopSink{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := time.Now()
	return &Session{
		id:         id,
		cfg:        cfg.withDefaults(),
		sink:       sink,
		log:        log.With("session", id),
		rng:        rng,
		phase:      PhaseLobby,
		players:    make(map[string]*player),
		takenCards: make(map[int]string),
		drawn:      make(map[int]bool),
		createdAt:  now,
		emptySince: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// pendingEvent defers sink delivery until the session mutex is released.
// An empty "to" means broadcast.
type pendingEvent struct {
	to  string
	evt Event
}

func (s *Session) flush(evts []pendingEvent) {
	for _, p := range evts {
		if p.to == "" {
			s.sink.Broadcast(s.id, p.evt)
		} else {
			s.sink.Unicast(s.id, p.to, p.evt)
		}
	}
}

// emit runs op under the session mutex and flushes its events before any
// other operation may flush. The sink is never called with mu held; emitMu
// must lock before mu, never the other way around.
func (s *Session) emit(op func() ([]pendingEvent, error)) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	evts, err := op()
	s.mu.Unlock()
	s.flush(evts)
	return err
}

// Join adds a player, or reconnects one that already has a slot. New players
// are only admitted while the phase is lobby or card_selection and capacity
// allows; once the game is running only reconnection is possible.
func (s *Session) Join(playerID string) error {
	return s.emit(func() ([]pendingEvent, error) { return s.joinLocked(playerID) })
}

func (s *Session) joinLocked(playerID string) ([]pendingEvent, error) {
	if p, ok := s.players[playerID]; ok {
		// Reconnection slot. Allowed even after finished, so a dropped player
		// can still pick up the result before the session is reclaimed.
		if !p.connected {
			p.connected = true
			if p.state == PlayerStateDisconnected {
				p.state = p.prevState
			}
			s.emptySince = time.Time{}
			s.log.Infow("player reconnected", "player", playerID)
			return []pendingEvent{{evt: Event{Type: EventPlayerJoined, Payload: PlayerJoined{PlayerID: playerID}}}}, nil
		}
		return nil, nil
	}

	if s.phase != PhaseLobby && s.phase != PhaseCardSelection {
		return nil, ErrInvalidPhase
	}
	if len(s.players) >= s.cfg.Capacity {
		return nil, ErrCapacityExceeded
	}

	s.players[playerID] = &player{
		id:        playerID,
		state:     PlayerStateJoined,
		marked:    make(map[[2]int]bool),
		connected: true,
	}
	s.joinOrder = append(s.joinOrder, playerID)
	s.emptySince = time.Time{}

	evts := []pendingEvent{{evt: Event{Type: EventPlayerJoined, Payload: PlayerJoined{PlayerID: playerID}}}}
	if s.phase == PhaseLobby {
		s.phase = PhaseCardSelection
	}
	s.log.Infow("player joined", "player", playerID, "players", len(s.players))
	return evts, nil
}

// SelectCard assigns a card to the player, generated deterministically from
// cardNumber, or from the session's random source when cardNumber is 0. A
// card number is exclusive within the session; re-selecting before
// confirmation replaces the pending card, but a confirmed assignment is
// final.
func (s *Session) SelectCard(playerID string, cardNumber int) error {
	return s.emit(func() ([]pendingEvent, error) { return s.selectCardLocked(playerID, cardNumber) })
}

func (s *Session) selectCardLocked(playerID string, cardNumber int) ([]pendingEvent, error) {
	if s.phase != PhaseCardSelection {
		return nil, ErrInvalidPhase
	}
	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.state == PlayerStateReady {
		return nil, ErrAlreadyConfirmed
	}

	if cardNumber == 0 {
		n, err := s.unusedCardNumberLocked()
		if err != nil {
			return s.failLocked(err), err
		}
		cardNumber = n
	}
	if holder, taken := s.takenCards[cardNumber]; taken && holder != playerID {
		return nil, ErrCardTaken
	}

	card, err := GenerateCard(cardNumber)
	if err != nil {
		return s.failLocked(err), err
	}

	// Release a previously pending number before taking the new one.
	if p.card != nil {
		delete(s.takenCards, p.card.Number)
	}
	s.takenCards[cardNumber] = playerID
	p.card = &card
	p.state = PlayerStateCardPending
	p.marked = map[[2]int]bool{{FreeRow, FreeCol}: true}

	s.log.Infow("card assigned", "player", playerID, "card", cardNumber)
	return []pendingEvent{{to: playerID, evt: Event{Type: EventCardAssigned, Payload: CardAssigned{PlayerID: playerID, Card: card}}}}, nil
}

func (s *Session) unusedCardNumberLocked() (int, error) {
	start := s.rng.Intn(s.cfg.MaxCardNumber)
	for i := 0; i < s.cfg.MaxCardNumber; i++ {
		n := (start+i)%s.cfg.MaxCardNumber + 1
		if _, taken := s.takenCards[n]; !taken {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: card catalog exhausted", ErrInternal)
}

// ConfirmCard locks the player's pending card in and marks the player ready.
// Under the auto start policy the game begins once every joined player is
// ready.
func (s *Session) ConfirmCard(playerID string) error {
	return s.emit(func() ([]pendingEvent, error) { return s.confirmCardLocked(playerID) })
}

func (s *Session) confirmCardLocked(playerID string) ([]pendingEvent, error) {
	if s.phase != PhaseCardSelection {
		return nil, ErrInvalidPhase
	}
	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.state == PlayerStateReady {
		return nil, ErrAlreadyConfirmed
	}
	if p.card == nil {
		return nil, ErrNoCardSelected
	}
	p.state = PlayerStateReady

	if s.cfg.StartPolicy == StartAuto && s.allReadyLocked() {
		return s.startLocked(), nil
	}
	return nil, nil
}

func (s *Session) allReadyLocked() bool {
	if len(s.players) == 0 {
		return false
	}
	for _, p := range s.players {
		if p.state != PlayerStateReady {
			return false
		}
	}
	return true
}

// Start begins the draw sequence on the host's request (manual policy). The
// host is the first player that joined.
func (s *Session) Start(playerID string) error {
	return s.emit(func() ([]pendingEvent, error) { return s.startRequestLocked(playerID) })
}

func (s *Session) startRequestLocked(playerID string) ([]pendingEvent, error) {
	if s.phase != PhaseCardSelection {
		return nil, ErrInvalidPhase
	}
	if _, ok := s.players[playerID]; !ok {
		return nil, ErrUnknownPlayer
	}
	if len(s.joinOrder) == 0 || s.joinOrder[0] != playerID {
		return nil, ErrNotHost
	}
	ready := 0
	for _, p := range s.players {
		if p.state == PlayerStateReady {
			ready++
		}
	}
	if ready == 0 {
		return nil, ErrNoCardSelected
	}
	return s.startLocked(), nil
}

// startLocked transitions to in_progress and launches the sequencer.
func (s *Session) startLocked() []pendingEvent {
	s.phase = PhaseInProgress
	s.seq = NewSequencer(s.cfg.DrawInterval, s.rng, s.applyDraw, s.sequencerExhausted)
	s.seq.Start()
	s.log.Infow("game started", "players", len(s.players))
	return []pendingEvent{{evt: Event{Type: EventGameStarted, Payload: GameStarted{SessionID: s.id}}}}
}

// applyDraw records one sequencer tick. Returning false halts the sequencer;
// re-checking the phase here is what guarantees no call is emitted after a
// terminal transition, even if Stop races the tick.
func (s *Session) applyDraw(n int) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.phase != PhaseInProgress {
		s.mu.Unlock()
		return false
	}
	if s.drawn[n] {
		evts := s.failLocked(fmt.Errorf("%w: number %d drawn twice", ErrInternal, n))
		s.mu.Unlock()
		s.flush(evts)
		return false
	}
	call, err := NewCall(n)
	if err != nil {
		evts := s.failLocked(err)
		s.mu.Unlock()
		s.flush(evts)
		return false
	}
	s.drawn[n] = true
	s.history = append(s.history, call)
	s.current = &call
	length := len(s.history)
	s.mu.Unlock()

	s.log.Debugw("call drawn", "call", call.String(), "history", length)
	s.flush([]pendingEvent{{evt: Event{Type: EventCallDrawn, Payload: CallDrawn{Letter: call.Letter, Number: call.Number, HistoryLength: length}}}})
	return true
}

// sequencerExhausted finishes the session with no winner once all 75 numbers
// are out and nobody claimed.
func (s *Session) sequencerExhausted() {
	_ = s.emit(func() ([]pendingEvent, error) {
		if s.phase != PhaseInProgress {
			return nil, nil
		}
		return s.finishLocked(NoWinner, EndReasonExhausted), nil
	})
}

// MarkCell toggles a cell in the player's private marked set. Marks are
// client-optimistic bookkeeping: they are not validated against the draw
// history here, only at claim time. The free cell can never be unmarked.
func (s *Session) MarkCell(playerID string, row, col int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row < 0 || row >= CardSize || col < 0 || col >= CardSize {
		return ErrInvalidCell
	}
	if s.phase == PhaseFinished {
		return ErrGameAlreadyOver
	}
	if s.phase != PhaseCardSelection && s.phase != PhaseInProgress {
		return ErrInvalidPhase
	}
	p, ok := s.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if p.card == nil {
		return ErrNoCardSelected
	}
	if IsFree(row, col) {
		return nil
	}
	key := [2]int{row, col}
	if p.marked[key] {
		delete(p.marked, key)
	} else {
		p.marked[key] = true
	}
	return nil
}

// ClaimBingo adjudicates a win claim against authoritative state: every
// marked non-free cell must have been drawn, and a full row, column or
// diagonal must be marked. The first valid claim finishes the game; claims
// are serialized by the session mutex, so later claims fail with
// game-already-over regardless of their own validity.
func (s *Session) ClaimBingo(playerID string) error {
	return s.emit(func() ([]pendingEvent, error) { return s.claimLocked(playerID) })
}

func (s *Session) claimLocked(playerID string) ([]pendingEvent, error) {
	if s.phase == PhaseFinished {
		return nil, ErrGameAlreadyOver
	}
	if s.phase != PhaseInProgress {
		return nil, ErrInvalidPhase
	}
	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.card == nil {
		return nil, ErrNoCardSelected
	}

	for key := range p.marked {
		if IsFree(key[0], key[1]) {
			continue
		}
		if !s.drawn[p.card.Value(key[0], key[1])] {
			return nil, ErrUnverifiedMarks
		}
	}
	if !hasWinningLine(p.marked) {
		return nil, ErrNoWinningLine
	}

	s.log.Infow("bingo", "player", playerID, "card", p.card.Number, "calls", len(s.history))
	return s.finishLocked(playerID, EndReasonBingo), nil
}

// hasWinningLine checks rows, columns and both diagonals against the marked
// set. The free cell is always present in the set, so lines through the
// center need only their other four cells.
func hasWinningLine(marked map[[2]int]bool) bool {
	line := func(cells [CardSize][2]int) bool {
		for _, cell := range cells {
			if !marked[cell] {
				return false
			}
		}
		return true
	}

	var diag1, diag2 [CardSize][2]int
	for i := 0; i < CardSize; i++ {
		var row, col [CardSize][2]int
		for j := 0; j < CardSize; j++ {
			row[j] = [2]int{i, j}
			col[j] = [2]int{j, i}
		}
		if line(row) || line(col) {
			return true
		}
		diag1[i] = [2]int{i, i}
		diag2[i] = [2]int{i, CardSize - 1 - i}
	}
	return line(diag1) || line(diag2)
}

// Leave marks the player disconnected. The card assignment survives so the
// player can reconnect within the grace window; leaving twice is a no-op.
func (s *Session) Leave(playerID string) error {
	return s.emit(func() ([]pendingEvent, error) { return s.leaveLocked(playerID) })
}

func (s *Session) leaveLocked(playerID string) ([]pendingEvent, error) {
	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !p.connected {
		return nil, nil
	}
	p.connected = false
	if p.state != PlayerStateDisconnected {
		p.prevState = p.state
		p.state = PlayerStateDisconnected
	}

	anyConnected := false
	for _, other := range s.players {
		if other.connected {
			anyConnected = true
			break
		}
	}
	if !anyConnected {
		s.emptySince = time.Now()
	}
	s.log.Infow("player left", "player", playerID)
	return []pendingEvent{{evt: Event{Type: EventPlayerLeft, Payload: PlayerLeft{PlayerID: playerID}}}}, nil
}

// failLocked handles an internal invariant violation: the session finishes
// with reason internal-error instead of crashing the process.
func (s *Session) failLocked(err error) []pendingEvent {
	s.log.Errorw("internal session failure", "error", err)
	if s.phase == PhaseFinished {
		return nil
	}
	return s.finishLocked(NoWinner, EndReasonInternal)
}

// finishLocked performs the terminal transition exactly once.
func (s *Session) finishLocked(winnerID, reason string) []pendingEvent {
	s.phase = PhaseFinished
	s.winnerID = winnerID
	s.endReason = reason
	s.finishedAt = time.Now()
	if s.seq != nil {
		s.seq.Stop()
	}
	s.log.Infow("game ended", "winner", winnerID, "reason", reason)
	return []pendingEvent{{evt: Event{Type: EventGameEnded, Payload: GameEnded{WinnerID: winnerID, Reason: reason}}}}
}

// Close aborts the session if it has not finished yet. Used by the registry
// on teardown.
func (s *Session) Close() {
	_ = s.emit(func() ([]pendingEvent, error) {
		if s.phase == PhaseFinished {
			return nil, nil
		}
		return s.finishLocked(NoWinner, EndReasonAborted), nil
	})
}

// Snapshot returns the public session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]PlayerInfo, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		p := s.players[id]
		info := PlayerInfo{PlayerID: p.id, State: p.state, Connected: p.connected}
		if p.card != nil {
			info.CardNumber = p.card.Number
		}
		players = append(players, info)
	}

	snap := Snapshot{
		SessionID: s.id,
		Phase:     s.phase,
		Capacity:  s.cfg.Capacity,
		Players:   players,
		History:   append([]Call(nil), s.history...),
		WinnerID:  s.winnerID,
		EndReason: s.endReason,
		CreatedAt: s.createdAt,
	}
	if s.current != nil {
		call := *s.current
		snap.CurrentCall = &call
	}
	return snap
}

// idleFor reports how long the session has had no connected players; zero
// while anyone is connected.
func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emptySince.IsZero() {
		return 0
	}
	return now.Sub(s.emptySince)
}

// finishedFor reports how long ago the session finished; zero if running.
func (s *Session) finishedFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseFinished {
		return 0
	}
	return now.Sub(s.finishedAt)
}
