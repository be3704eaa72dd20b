package server

import (
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
)

// GameState is the full table snapshot broadcast as game_state and
// chips_distributed. It is built once under the game mutex, then
// Redact produces the per-recipient copy outside it.
type GameState struct {
	GameID            string         `json:"game_id"`
	Name              string         `json:"name"`
	Status            game.Status    `json:"status"`
	Mode              game.Mode      `json:"mode"`
	Structure         game.Structure `json:"structure"`
	Seats             []game.Seat    `json:"seats"`
	CommunityCards    []deck.Card    `json:"community_cards"`
	Pots              []game.Pot     `json:"pots"`
	Pot               int            `json:"pot"`
	CurrentRound      string         `json:"current_round"`
	ButtonPosition    int            `json:"button_position"`
	CurrentActorIndex int            `json:"current_actor_index"`
	CurrentBet        int            `json:"current_bet"`
	MinRaise          int            `json:"min_raise"`
	SmallBlind        int            `json:"small_blind"`
	BigBlind          int            `json:"big_blind"`
	Ante              int            `json:"ante,omitempty"`
	HandID            string         `json:"hand_id,omitempty"`
	HandNumber        int            `json:"hand_number,omitempty"`
	ActionHistory     []string       `json:"action_history"`
	Timestamp         time.Time      `json:"timestamp"`
}

// buildGameState snapshots a game for broadcast. Caller holds the
// game mutex.
func buildGameState(g *game.Game) *GameState {
	cfg := g.Config()
	state := &GameState{
		GameID:            g.ID(),
		Name:              cfg.Name,
		Status:            g.Status(),
		Mode:              cfg.Mode,
		Structure:         cfg.Structure,
		ButtonPosition:    g.Button(),
		CurrentActorIndex: -1,
		SmallBlind:        cfg.SmallBlind,
		BigBlind:          cfg.BigBlind,
		Ante:              cfg.Ante,
		Timestamp:         time.Now(),
	}

	for _, s := range g.Seats() {
		state.Seats = append(state.Seats, *s)
	}

	h := g.Hand()
	if h == nil {
		state.CurrentRound = "waiting"
		return state
	}

	state.HandID = h.ID
	state.HandNumber = h.Number
	state.CurrentRound = h.Street.String()
	state.CommunityCards = append([]deck.Card(nil), h.Board...)
	state.Pots = h.Pots()
	state.Pot = h.PotTotal()
	state.CurrentBet = h.CurrentBet
	state.MinRaise = h.MinRaise
	if !h.Complete() {
		state.CurrentActorIndex = h.Turn.Current()
	}
	for _, entry := range h.ActionLog {
		state.ActionHistory = append(state.ActionHistory, entry.Line)
	}
	return state
}

// Redact copies the state for one recipient, hiding every other
// seat's hole cards. Observers pass -1 and see none.
func (gs *GameState) Redact(seatID int) *GameState {
	out := *gs
	out.Seats = make([]game.Seat, len(gs.Seats))
	for i, s := range gs.Seats {
		out.Seats[i] = s
		if s.ID != seatID {
			out.Seats[i].HoleCards = nil
		}
	}
	return &out
}
