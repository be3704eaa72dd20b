package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemd/internal/game"
)

const (
	sendBufferSize = 256
	maxMessageSize = 4096
	writeWait      = 10 * time.Second

	// Idle policy: one keepalive after 30s of inbound silence, close
	// the connection at 120s.
	keepaliveAfter = 30 * time.Second
	idleCloseAfter = 120 * time.Second

	maxChatLen = 500
)

// Session is one websocket subscriber. The read pump dispatches the
// inbound protocol; a single writer goroutine drains the send queue,
// so no two writes ever race on the socket.
type Session struct {
	id       string
	gameID   string
	playerID string
	seatID   int

	conn   *websocket.Conn
	send   chan *Message
	server *Server
	logger *log.Logger
	clock  quartz.Clock

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSession wraps an upgraded websocket connection. Observers pass
// an empty playerID and ObserverSeat.
func NewSession(conn *websocket.Conn, srv *Server, gameID, playerID string, seatID int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		id:       id,
		gameID:   gameID,
		playerID: playerID,
		seatID:   seatID,
		conn:     conn,
		send:     make(chan *Message, sendBufferSize),
		server:   srv,
		logger:   srv.logger.WithPrefix("session").With("session", id[:8], "game", gameID, "seat", seatID),
		clock:    srv.clock,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the read and write pumps.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

// Send enqueues a message for the writer without blocking. A full
// buffer fails the send; the hub treats that subscriber as dead.
func (s *Session) Send(msg *Message) error {
	select {
	case <-s.ctx.Done():
		return errors.New("session closed")
	default:
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// CloseSend shuts the session down on the hub's behalf.
func (s *Session) CloseSend() {
	s.Close()
}

// Close tears the session down once: cancels the pumps and closes the
// socket, which unblocks the read loop.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close()
	})
}

func (s *Session) readPump() {
	defer func() {
		s.server.hub.Unsubscribe(s)
		s.Close()
		s.logger.Debug("session ended")
	}()
	s.conn.SetReadLimit(maxMessageSize)

	keepalive := s.clock.AfterFunc(keepaliveAfter, s.sendKeepalive, "keepalive")
	defer keepalive.Stop()
	idle := s.clock.AfterFunc(idleCloseAfter, func() {
		s.logger.Info("closing idle session")
		s.Close()
	}, "idle_close")
	defer idle.Stop()

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("unexpected read error", "error", err)
			}
			return
		}
		keepalive.Reset(keepaliveAfter)
		idle.Reset(idleCloseAfter)
		s.handleMessage(&msg)
	}
}

func (s *Session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case <-s.ctx.Done():
			deadline := time.Now().Add(writeWait)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.Close()
				return
			}
		}
	}
}

func (s *Session) handleMessage(msg *Message) {
	switch msg.Type {
	case TypeAction:
		s.handleAction(msg.Data)
	case TypeChat:
		s.handleChat(msg.Data)
	case TypePing:
		s.handlePing(msg.Data)
	case TypeAnimationDone:
		s.handleAnimationDone(msg.Data)
	default:
		s.sendError(game.ErrKindInvalidFormat, "unknown message type "+string(msg.Type))
	}
}

func (s *Session) handleAction(data json.RawMessage) {
	if s.playerID == "" {
		s.sendError(game.ErrKindNotAuthorized, "observers cannot act")
		return
	}
	var req ActionData
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(game.ErrKindInvalidFormat, "malformed action payload")
		return
	}

	g, ok := s.server.registry.Get(s.gameID)
	if !ok {
		s.sendError(game.ErrKindGameNotFound, "game no longer exists")
		s.Close()
		return
	}
	res := s.server.orchestrator.Dispatch(g, s.playerID, req.Action, req.Amount)
	if !res.OK {
		s.sendError(res.ErrorKind, res.ErrorText)
	}
}

func (s *Session) handleChat(data json.RawMessage) {
	var req ChatSendData
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(game.ErrKindInvalidFormat, "malformed chat payload")
		return
	}
	if req.Text == "" {
		return
	}
	if len(req.Text) > maxChatLen {
		s.sendError(game.ErrKindInvalidFormat, "chat text too long")
		return
	}

	msg, err := NewMessage(TypeChat, ChatData{
		From:      s.displayName(),
		Text:      req.Text,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	if req.Target != "" {
		if !s.server.hub.SendToPlayer(s.gameID, req.Target, msg) {
			s.sendError(game.ErrKindPlayerNotFound, "target player is not connected")
		}
		return
	}
	s.server.hub.Broadcast(s.gameID, msg)
}

func (s *Session) handlePing(data json.RawMessage) {
	var req PingData
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(game.ErrKindInvalidFormat, "malformed ping payload")
		return
	}
	if pong, err := NewMessage(TypePong, PongData{Timestamp: req.Timestamp}); err == nil {
		_ = s.Send(pong)
	}
	if !req.NeedsRefresh {
		return
	}

	g, ok := s.server.registry.Get(s.gameID)
	if !ok {
		return
	}
	g.Lock()
	state := buildGameState(g)
	g.Unlock()
	if msg, err := NewMessage(TypeGameState, state.Redact(s.seatID)); err == nil {
		_ = s.Send(msg)
	}
}

func (s *Session) handleAnimationDone(data json.RawMessage) {
	var req AnimationDoneData
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(game.ErrKindInvalidFormat, "malformed animation_done payload")
		return
	}
	if req.StepType == "" {
		return
	}

	s.server.orchestrator.Signal(s.gameID, req.StepType)
	if req.StepType == StepHandVisuallyConcluded {
		if g, ok := s.server.registry.Get(s.gameID); ok {
			s.server.orchestrator.StartNextHand(g)
		}
	}
}

func (s *Session) sendKeepalive() {
	if msg, err := NewMessage(TypeKeepalive, KeepaliveData{Timestamp: time.Now()}); err == nil {
		_ = s.Send(msg)
	}
}

func (s *Session) sendError(kind game.ErrorKind, text string) {
	s.server.metrics.ErrorsSent.WithLabelValues(string(kind)).Inc()
	if msg, err := NewMessage(TypeError, ErrorData{Code: string(kind), Message: text}); err == nil {
		_ = s.Send(msg)
	}
}

// displayName resolves the chat sender's name: the seat's display
// name when seated, the player ID when known, otherwise "observer".
func (s *Session) displayName() string {
	if s.playerID == "" {
		return "observer"
	}
	if g, ok := s.server.registry.Get(s.gameID); ok {
		g.Lock()
		seat := g.SeatByPlayer(s.playerID)
		g.Unlock()
		if seat != nil {
			return seat.DisplayName
		}
	}
	return s.playerID
}
