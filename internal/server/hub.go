package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Subscriber is the hub's view of one connected client: a send that
// enqueues without blocking and a close for the send side. Session
// implements it over a websocket.
type Subscriber interface {
	Send(msg *Message) error
	CloseSend()
}

// binding records which game and seat a subscriber is attached to.
// Observers carry seat -1.
type binding struct {
	gameID   string
	seatID   int
	playerID string
}

const (
	// ObserverSeat marks a subscriber with no seat at the table.
	ObserverSeat = -1

	sendRetries    = 2
	sendRetryDelay = time.Second
)

// Hub fans messages out to the subscribers of each game. One mutex
// covers both maps; it is never held across a send.
type Hub struct {
	logger  *log.Logger
	clock   quartz.Clock
	metrics *Metrics

	mu       sync.Mutex
	byGame   map[string]map[Subscriber]struct{}
	bindings map[Subscriber]binding
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger, clock quartz.Clock, metrics *Metrics) *Hub {
	return &Hub{
		logger:   logger.WithPrefix("hub"),
		clock:    clock,
		metrics:  metrics,
		byGame:   make(map[string]map[Subscriber]struct{}),
		bindings: make(map[Subscriber]binding),
	}
}

// Subscribe attaches a subscriber to a game. A seated subscriber
// evicts any prior holder of the same (game, seat), whose send side
// is closed; reconnects therefore displace the stale connection.
func (h *Hub) Subscribe(sub Subscriber, gameID string, seatID int, playerID string) {
	var evicted Subscriber

	h.mu.Lock()
	if seatID != ObserverSeat {
		for other := range h.byGame[gameID] {
			if h.bindings[other].seatID == seatID {
				evicted = other
				break
			}
		}
		if evicted != nil {
			delete(h.byGame[gameID], evicted)
			delete(h.bindings, evicted)
		}
	}
	if h.byGame[gameID] == nil {
		h.byGame[gameID] = make(map[Subscriber]struct{})
	}
	h.byGame[gameID][sub] = struct{}{}
	h.bindings[sub] = binding{gameID: gameID, seatID: seatID, playerID: playerID}
	total := len(h.byGame[gameID])
	h.mu.Unlock()

	if evicted != nil {
		evicted.CloseSend()
		h.logger.Info("evicted prior subscriber", "game", gameID, "seat", seatID)
	}
	h.metrics.SubscribersConnected.Set(float64(h.subscriberCount()))
	h.logger.Debug("subscribed", "game", gameID, "seat", seatID, "subscribers", total)
}

// Unsubscribe detaches a subscriber from its game.
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	b, ok := h.bindings[sub]
	if ok {
		delete(h.bindings, sub)
		if subs := h.byGame[b.gameID]; subs != nil {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.byGame, b.gameID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		h.metrics.SubscribersConnected.Set(float64(h.subscriberCount()))
		h.logger.Debug("unsubscribed", "game", b.gameID, "seat", b.seatID)
	}
}

// HasSubscribers reports whether anyone is listening to a game.
func (h *Hub) HasSubscribers(gameID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byGame[gameID]) > 0
}

// Broadcast sends one message to every subscriber of a game. Failed
// subscribers are dropped after the fan-out.
func (h *Hub) Broadcast(gameID string, msg *Message) {
	subs := h.snapshot(gameID)
	var failed []Subscriber
	for _, sub := range subs {
		if err := sub.Send(msg); err != nil {
			failed = append(failed, sub)
		}
	}
	h.metrics.MessagesBroadcast.WithLabelValues(string(msg.Type)).Add(float64(len(subs) - len(failed)))
	h.dropFailed(gameID, failed)
}

// BroadcastFunc builds a message per recipient seat and sends it.
// game_state and chips_distributed use it to null out hole cards the
// recipient is not entitled to see.
func (h *Hub) BroadcastFunc(gameID string, msgType MessageType, build func(seatID int) (*Message, error)) {
	subs := h.snapshot(gameID)
	var failed []Subscriber
	sent := 0
	for _, sub := range subs {
		h.mu.Lock()
		b := h.bindings[sub]
		h.mu.Unlock()

		msg, err := build(b.seatID)
		if err != nil {
			h.logger.Error("build personalised message", "game", gameID, "seat", b.seatID, "error", err)
			continue
		}
		if err := sub.Send(msg); err != nil {
			failed = append(failed, sub)
			continue
		}
		sent++
	}
	h.metrics.MessagesBroadcast.WithLabelValues(string(msgType)).Add(float64(sent))
	h.dropFailed(gameID, failed)
}

// SendToSeat delivers a message to the subscriber holding one seat,
// retrying twice about a second apart so a reconnecting player can
// still catch their action_request. Reports whether a send succeeded.
func (h *Hub) SendToSeat(gameID string, seatID int, msg *Message) bool {
	for attempt := 0; ; attempt++ {
		if sub := h.findSeat(gameID, seatID); sub != nil {
			if err := sub.Send(msg); err == nil {
				return true
			}
			h.dropFailed(gameID, []Subscriber{sub})
		}
		if attempt >= sendRetries {
			h.logger.Warn("seat unreachable", "game", gameID, "seat", seatID, "type", msg.Type)
			return false
		}
		timer := h.clock.NewTimer(sendRetryDelay)
		<-timer.C
	}
}

// SendToPlayer delivers a message to one player's subscriber, used
// for private chat. Best effort.
func (h *Hub) SendToPlayer(gameID, playerID string, msg *Message) bool {
	h.mu.Lock()
	var target Subscriber
	for sub := range h.byGame[gameID] {
		if h.bindings[sub].playerID == playerID {
			target = sub
			break
		}
	}
	h.mu.Unlock()

	if target == nil {
		return false
	}
	if err := target.Send(msg); err != nil {
		h.dropFailed(gameID, []Subscriber{target})
		return false
	}
	return true
}

// CloseGame notifies and disconnects every subscriber of a game. The
// registry uses it when a game is torn down or pauses on an internal
// error.
func (h *Hub) CloseGame(gameID string, code, reason string) {
	msg, err := NewMessage(TypeError, ErrorData{Code: code, Message: reason})
	if err != nil {
		h.logger.Error("build close message", "error", err)
	}

	subs := h.snapshot(gameID)
	h.mu.Lock()
	for _, sub := range subs {
		delete(h.bindings, sub)
	}
	delete(h.byGame, gameID)
	h.mu.Unlock()

	for _, sub := range subs {
		if msg != nil {
			_ = sub.Send(msg)
		}
		sub.CloseSend()
	}
	if len(subs) > 0 {
		h.metrics.SubscribersConnected.Set(float64(h.subscriberCount()))
		h.logger.Info("closed game subscribers", "game", gameID, "count", len(subs), "reason", reason)
	}
}

// CloseAll disconnects every subscriber, used at shutdown so the HTTP
// server's drain is not held up by open websockets.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.bindings))
	for sub := range h.bindings {
		subs = append(subs, sub)
	}
	h.byGame = make(map[string]map[Subscriber]struct{})
	h.bindings = make(map[Subscriber]binding)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.CloseSend()
	}
	if len(subs) > 0 {
		h.metrics.SubscribersConnected.Set(0)
		h.logger.Info("closed all subscribers", "count", len(subs))
	}
}

// snapshot copies a game's subscriber set so sends happen outside the
// mutex.
func (h *Hub) snapshot(gameID string) []Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := make([]Subscriber, 0, len(h.byGame[gameID]))
	for sub := range h.byGame[gameID] {
		subs = append(subs, sub)
	}
	return subs
}

func (h *Hub) findSeat(gameID string, seatID int) Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.byGame[gameID] {
		if h.bindings[sub].seatID == seatID {
			return sub
		}
	}
	return nil
}

func (h *Hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.bindings)
}

// dropFailed removes subscribers whose send failed and closes them.
func (h *Hub) dropFailed(gameID string, failed []Subscriber) {
	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, sub := range failed {
		delete(h.bindings, sub)
		if subs := h.byGame[gameID]; subs != nil {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.byGame, gameID)
			}
		}
	}
	h.mu.Unlock()

	for _, sub := range failed {
		sub.CloseSend()
	}
	h.metrics.SendFailures.Add(float64(len(failed)))
	h.metrics.SubscribersConnected.Set(float64(h.subscriberCount()))
	h.logger.Debug("dropped unreachable subscribers", "game", gameID, "count", len(failed))
}
