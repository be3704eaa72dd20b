package phh

import (
	"fmt"
	"io"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/history"
)

// Encode writes one hand as a PHH TOML document.
func Encode(w io.Writer, h *HandHistory) error {
	if h == nil {
		return fmt.Errorf("phh: nil hand")
	}
	return toml.NewEncoder(w).Encode(h)
}

// EncodeAll writes hands as a .phhs document, a numbered TOML table
// per hand in the order given.
func EncodeAll(w io.Writer, hands []*HandHistory) error {
	for i, h := range hands {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		section := map[string]*HandHistory{strconv.Itoa(i + 1): h}
		if err := toml.NewEncoder(w).Encode(section); err != nil {
			return err
		}
	}
	return nil
}

// FromRecord converts an archived hand into its PHH form. Players are
// numbered by position in the record's seat order, blinds and antes
// come off the action log, and hole cards that were never shown render
// as "????".
func FromRecord(rec history.Record) *HandHistory {
	n := len(rec.Seats)
	h := &HandHistory{
		Variant:           variant(rec.Structure),
		Table:             rec.Table,
		SeatCount:         n,
		Antes:             make([]int, n),
		BlindsOrStraddles: make([]int, n),
		MinBet:            rec.BigBlind,
		StartingStacks:    make([]int, n),
		FinishingStacks:   make([]int, n),
		Winnings:          make([]int, n),
		HandID:            rec.HandID,
		Day:               rec.EndedAt.Day(),
		Month:             int(rec.EndedAt.Month()),
		Year:              rec.EndedAt.Year(),
	}

	num := make(map[int]int, n)
	for i, s := range rec.Seats {
		num[s.ID] = i + 1
		h.Players = append(h.Players, s.Name)
		h.StartingStacks[i] = s.Starting
		h.FinishingStacks[i] = s.Finishing
		h.Winnings[i] = rec.Payouts[s.ID]
	}

	for _, s := range rec.Seats {
		hole := "????"
		if len(s.HoleCards) == 2 {
			hole = cardCodes(s.HoleCards)
		}
		h.Actions = append(h.Actions, fmt.Sprintf("d dh p%d %s", num[s.ID], hole))
	}

	// Walk the action log keeping per-seat street totals, since the
	// log stores chips added for calls and shoves but street totals
	// for bets and raises. PHH cbr amounts are street totals.
	street := game.Preflop
	currentBet := 0
	streetBets := make(map[int]int)
	for _, e := range rec.Actions {
		if e.Seat < 0 {
			continue
		}
		i, seated := num[e.Seat]
		if !seated {
			continue
		}
		switch e.Action {
		case "ante":
			h.Antes[i-1] = e.Amount
			continue
		case "small_blind", "big_blind":
			h.BlindsOrStraddles[i-1] = e.Amount
			streetBets[e.Seat] = e.Amount
			if e.Amount > currentBet {
				currentBet = e.Amount
			}
			continue
		}

		for street < e.Street {
			street++
			if line := dealBoard(rec.Board, street); line != "" {
				h.Actions = append(h.Actions, line)
			}
			currentBet = 0
			streetBets = make(map[int]int)
		}

		p := fmt.Sprintf("p%d", i)
		switch e.Action {
		case "fold":
			h.Actions = append(h.Actions, p+" f")
		case "check":
			h.Actions = append(h.Actions, p+" cc")
		case "call":
			h.Actions = append(h.Actions, p+" cc")
			streetBets[e.Seat] += e.Amount
		case "bet", "raise":
			h.Actions = append(h.Actions, fmt.Sprintf("%s cbr %d", p, e.Amount))
			streetBets[e.Seat] = e.Amount
			currentBet = e.Amount
		case "all_in":
			total := streetBets[e.Seat] + e.Amount
			if total > currentBet {
				h.Actions = append(h.Actions, fmt.Sprintf("%s cbr %d", p, total))
				currentBet = total
			} else {
				h.Actions = append(h.Actions, p+" cc")
			}
			streetBets[e.Seat] = total
		}
	}

	// Any board cards dealt after betting closed, the all-in runout.
	for next := street + 1; next <= game.River; next++ {
		if line := dealBoard(rec.Board, next); line != "" {
			h.Actions = append(h.Actions, line)
		}
	}

	// Showdowns end with each revealed hand.
	if !rec.FoldWin {
		for _, s := range rec.Seats {
			if len(s.HoleCards) == 2 {
				h.Actions = append(h.Actions, fmt.Sprintf("p%d sm %s", num[s.ID], cardCodes(s.HoleCards)))
			}
		}
	}
	return h
}

// dealBoard renders the board deal opening a street, empty when the
// hand never got there.
func dealBoard(board []deck.Card, street game.Street) string {
	var cards []deck.Card
	switch street {
	case game.Flop:
		if len(board) >= 3 {
			cards = board[0:3]
		}
	case game.Turn:
		if len(board) >= 4 {
			cards = board[3:4]
		}
	case game.River:
		if len(board) >= 5 {
			cards = board[4:5]
		}
	}
	if len(cards) == 0 {
		return ""
	}
	return "d db " + cardCodes(cards)
}

// variant maps a betting structure onto its PHH hold'em code.
func variant(s game.Structure) string {
	switch s {
	case game.FixedLimit:
		return "FT"
	case game.PotLimit:
		return "PT"
	default:
		return "NT"
	}
}
