package game

import (
	"github.com/lox/holdemd/internal/deck"
)

// SeatStatus tracks where a seat is in the hand lifecycle.
type SeatStatus int

const (
	// SeatWaiting seats joined mid-hand or are short the big blind;
	// they are dealt in at the next hand start once funded.
	SeatWaiting SeatStatus = iota
	SeatActive
	SeatFolded
	SeatAllIn
	// SeatOut seats have busted or left and are skipped entirely.
	SeatOut
)

func (s SeatStatus) String() string {
	return [...]string{"waiting", "active", "folded", "all_in", "out"}[s]
}

// MarshalText encodes the status as its wire string.
func (s SeatStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status from its wire string.
func (s *SeatStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "waiting":
		*s = SeatWaiting
	case "active":
		*s = SeatActive
	case "folded":
		*s = SeatFolded
	case "all_in":
		*s = SeatAllIn
	case "out":
		*s = SeatOut
	default:
		*s = SeatWaiting
	}
	return nil
}

// Seat is one chair at the table. Seat IDs are stable for the life of
// the game; Position is the clockwise table order.
type Seat struct {
	ID          int         `json:"seat_id"`
	PlayerID    string      `json:"player_id"`
	DisplayName string      `json:"display_name"`
	IsHuman     bool        `json:"is_human"`
	Chips       int         `json:"chips"`
	HoleCards   []deck.Card `json:"hole_cards,omitempty"`
	StreetBet   int         `json:"street_bet"`
	HandBet     int         `json:"hand_bet"`
	Status      SeatStatus  `json:"status"`
	Position    int         `json:"position"`
}

// InHand reports whether the seat still holds cards this hand.
func (s *Seat) InHand() bool {
	return s.Status == SeatActive || s.Status == SeatAllIn
}

// CanAct reports whether the seat can make betting decisions.
func (s *Seat) CanAct() bool {
	return s.Status == SeatActive && s.Chips > 0
}

// commit moves up to amount chips from the stack into the current
// street's bet, flipping the seat to all-in when the stack empties.
// It returns the chips actually moved.
func (s *Seat) commit(amount int) int {
	if amount > s.Chips {
		amount = s.Chips
	}
	s.Chips -= amount
	s.StreetBet += amount
	s.HandBet += amount
	if s.Chips == 0 && s.Status == SeatActive {
		s.Status = SeatAllIn
	}
	return amount
}
