// Package ai decides actions for non-human seats. The oracle port
// hides where decisions come from: an external HTTP service when one
// is configured, the built-in rule policy otherwise.
package ai

import (
	"context"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
)

// View is the redacted table state an oracle decides from. Only the
// acting seat's own hole cards are present; every other seat is
// public information.
type View struct {
	GameID string      `json:"game_id"`
	HandID string      `json:"hand_id"`
	Street game.Street `json:"street"`

	SmallBlind int            `json:"small_blind"`
	BigBlind   int            `json:"big_blind"`
	Ante       int            `json:"ante,omitempty"`
	Structure  game.Structure `json:"structure"`

	Board  []deck.Card `json:"board"`
	Pot    int         `json:"pot"`
	Button int         `json:"button_seat_id"`

	Seat      int         `json:"seat_id"`
	HoleCards []deck.Card `json:"hole_cards"`
	Chips     int         `json:"chips"`
	ToCall    int         `json:"to_call"`

	Options []game.ValidAction `json:"options"`
	Seats   []SeatView         `json:"seats"`
}

// SeatView is the public face of one seat.
type SeatView struct {
	ID          int             `json:"seat_id"`
	DisplayName string          `json:"display_name"`
	Chips       int             `json:"chips"`
	StreetBet   int             `json:"street_bet"`
	HandBet     int             `json:"hand_bet"`
	Status      game.SeatStatus `json:"status"`
}

// Option returns the bounds for an action when the view offers it.
func (v View) Option(a game.Action) (game.ValidAction, bool) {
	for _, va := range v.Options {
		if va.Action == a {
			return va, true
		}
	}
	return game.ValidAction{}, false
}

// Decision is an oracle's chosen action. Amount carries the street
// total for bets and raises and is ignored otherwise.
type Decision struct {
	Action game.Action `json:"action"`
	Amount int         `json:"amount,omitempty"`
}

// Oracle picks an action for the viewing seat. Implementations must
// honour ctx; the caller enforces a deadline and substitutes a
// deterministic fallback on any error.
type Oracle interface {
	Decide(ctx context.Context, view View) (Decision, error)
}

// RulePolicy is the built-in oracle used when no external service is
// configured. It checks when the price is free, calls otherwise, and
// lets go of rivers that have grown past the pot.
type RulePolicy struct{}

func (RulePolicy) Decide(_ context.Context, view View) (Decision, error) {
	if va, ok := view.Option(game.Check); ok {
		return Decision{Action: game.Check, Amount: va.Min}, nil
	}
	if va, ok := view.Option(game.Call); ok {
		if view.Street == game.River && view.ToCall > view.Pot {
			return Decision{Action: game.Fold}, nil
		}
		return Decision{Action: game.Call, Amount: va.Min}, nil
	}
	return Decision{Action: game.Fold}, nil
}
