package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
)

// MessageType identifies a wire message.
type MessageType string

// Server to client.
const (
	TypeGameState             MessageType = "game_state"
	TypeActionRequest         MessageType = "action_request"
	TypePlayerAction          MessageType = "player_action"
	TypeActionLog             MessageType = "action_log"
	TypeTurnHighlightRemoved  MessageType = "turn_highlight_removed"
	TypeRoundBetsFinalized    MessageType = "round_bets_finalized"
	TypeStreetDealt           MessageType = "street_dealt"
	TypeShowdownTransition    MessageType = "showdown_transition"
	TypeShowdownHandsRevealed MessageType = "showdown_hands_revealed"
	TypePotWinnersDetermined  MessageType = "pot_winners_determined"
	TypeChipsDistributed      MessageType = "chips_distributed"
	TypeHandResult            MessageType = "hand_result"
	TypeHandVisuallyConcluded MessageType = "hand_visually_concluded"
	TypeKeepalive             MessageType = "keepalive"
	TypePong                  MessageType = "pong"
	TypeError                 MessageType = "error"
	TypeChat                  MessageType = "chat"
)

// Client to server.
const (
	TypeAction        MessageType = "action"
	TypePing          MessageType = "ping"
	TypeAnimationDone MessageType = "animation_done"
)

// Animation step keys a client acknowledges with animation_done. The
// street key carries the street name as a suffix, see StreetDealtStep.
const (
	StepRoundBetsFinalized    = "round_bets_finalized"
	StepHandVisuallyConcluded = "hand_visually_concluded"
)

// StreetDealtStep is the acknowledgement key for one street's deal
// animation, for example "street_dealt_flop".
func StreetDealtStep(street game.Street) string {
	return "street_dealt_" + street.String()
}

// Message is the wire envelope for every client/server exchange.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in the wire envelope.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
	}
	return &Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}, nil
}

// ActionRequestData tells one seat it is their turn.
type ActionRequestData struct {
	HandID     string        `json:"hand_id"`
	SeatID     int           `json:"seat_id"`
	Options    []game.Action `json:"options"`
	CallAmount int           `json:"call_amount"`
	MinRaise   int           `json:"min_raise"`
	MaxRaise   int           `json:"max_raise"`
	TimeLimit  int           `json:"time_limit"`
	Timestamp  time.Time     `json:"timestamp"`
}

// PlayerActionData reports an applied action to the table.
type PlayerActionData struct {
	SeatID    int         `json:"seat_id"`
	Action    game.Action `json:"action"`
	Amount    int         `json:"amount"`
	Timestamp time.Time   `json:"timestamp"`
}

// ActionLogData is one human-readable log line.
type ActionLogData struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnHighlightRemovedData clears the acted seat's turn highlight.
type TurnHighlightRemovedData struct {
	SeatID int `json:"seat_id"`
}

// SeatBet is one seat's chips on the felt.
type SeatBet struct {
	SeatID int `json:"seat_id"`
	Amount int `json:"amount"`
}

// RoundBetsFinalizedData announces the street's bets sliding into the
// pot.
type RoundBetsFinalizedData struct {
	PlayerBets []SeatBet `json:"player_bets"`
	Pot        int       `json:"pot"`
	Timestamp  time.Time `json:"timestamp"`
}

// StreetDealtData carries the cards of a newly dealt street.
type StreetDealtData struct {
	Street    game.Street `json:"street"`
	Cards     []deck.Card `json:"cards"`
	Timestamp time.Time   `json:"timestamp"`
}

// ShowdownTransitionData marks the switch from betting to reveal.
type ShowdownTransitionData struct {
	Timestamp time.Time `json:"timestamp"`
}

// PlayerHand is one seat's revealed hole cards.
type PlayerHand struct {
	SeatID int         `json:"seat_id"`
	Cards  []deck.Card `json:"cards"`
}

// ShowdownHandsRevealedData reveals every live seat's hole cards.
type ShowdownHandsRevealedData struct {
	PlayerHands []PlayerHand `json:"player_hands"`
}

// WinnerShare is one winner's cut of one pot.
type WinnerShare struct {
	SeatID   int    `json:"seat_id"`
	HandRank string `json:"hand_rank,omitempty"`
	Share    int    `json:"share"`
}

// PotWinners is the resolution of one pot.
type PotWinners struct {
	PotID   int           `json:"pot_id"`
	Amount  int           `json:"amount"`
	Winners []WinnerShare `json:"winners"`
}

// PotWinnersDeterminedData announces every pot's winners before chips
// move.
type PotWinnersDeterminedData struct {
	Pots []PotWinners `json:"pots"`
}

// PlayerSummary is one seat's final standing in a hand result.
type PlayerSummary struct {
	SeatID      int    `json:"seat_id"`
	DisplayName string `json:"display_name"`
	Chips       int    `json:"chips"`
	Folded      bool   `json:"folded"`
}

// HandResultData is the hand's closing summary.
type HandResultData struct {
	HandID    string          `json:"hand_id"`
	Winners   []string        `json:"winners"`
	Players   []PlayerSummary `json:"players"`
	Board     []deck.Card     `json:"board"`
	Timestamp time.Time       `json:"timestamp"`
}

// HandVisuallyConcludedData asks clients to finish their conclusion
// animations and acknowledge.
type HandVisuallyConcludedData struct {
	Timestamp time.Time `json:"timestamp"`
}

// KeepaliveData nudges an idle connection.
type KeepaliveData struct {
	Timestamp time.Time `json:"timestamp"`
}

// PongData echoes a ping's timestamp.
type PongData struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorData reports a rejected message back to its sender.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatData is a delivered chat line.
type ChatData struct {
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ActionData is a client's betting decision.
type ActionData struct {
	Action game.Action `json:"action"`
	Amount int         `json:"amount,omitempty"`
}

// ChatSendData is an inbound chat line; Target addresses a private
// message to one player.
type ChatSendData struct {
	Text   string `json:"text"`
	Target string `json:"target,omitempty"`
}

// PingData is a client liveness probe.
type PingData struct {
	Timestamp    time.Time `json:"timestamp"`
	NeedsRefresh bool      `json:"needs_refresh,omitempty"`
}

// AnimationDoneData acknowledges a visual step the server is waiting
// on.
type AnimationDoneData struct {
	StepType string `json:"step_type"`
}
