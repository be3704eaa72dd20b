package game

import (
	"fmt"
	"time"

	"github.com/lox/holdemd/internal/deck"
)

// LogEntry is one append-only action-log record for a hand. Seat is
// -1 and Action empty for system lines such as street deals.
type LogEntry struct {
	Seat      int       `json:"seat_id"`
	Action    string    `json:"action,omitempty"`
	Amount    int       `json:"amount,omitempty"`
	Street    Street    `json:"street"`
	Line      string    `json:"line"`
	Timestamp time.Time `json:"timestamp"`
}

// Canonical log phrasings. Clients display these verbatim, so the
// wording is fixed.

func logFold(name string) string {
	return fmt.Sprintf("%s folds", name)
}

func logCheck(name string) string {
	return fmt.Sprintf("%s checks", name)
}

func logCall(name string, amount int) string {
	return fmt.Sprintf("%s calls %d", name, amount)
}

func logBet(name string, amount int) string {
	return fmt.Sprintf("%s bets %d", name, amount)
}

func logRaise(name string, streetTotal int) string {
	return fmt.Sprintf("%s raises to %d", name, streetTotal)
}

func logAllIn(name string, added, handTotal int) string {
	return fmt.Sprintf("%s all-in for %d (total %d)", name, added, handTotal)
}

func logDealing(street Street, cards []deck.Card) string {
	return fmt.Sprintf("*** Dealing the %s: %s ***", street.Title(), deck.Format(cards))
}

func logWinner(name string, amount int, description string) string {
	if description == "" {
		return fmt.Sprintf("🏆 %s wins %d!", name, amount)
	}
	return fmt.Sprintf("🏆 %s wins %d with %s!", name, amount, description)
}

func logHandHeader(number int) string {
	return fmt.Sprintf("*** Hand #%d ***", number)
}

func logSmallBlind(name string, amount int) string {
	return fmt.Sprintf("%s posts small blind %d", name, amount)
}

func logBigBlind(name string, amount int) string {
	return fmt.Sprintf("%s posts big blind %d", name, amount)
}

func logAnte(name string, amount int) string {
	return fmt.Sprintf("%s posts ante %d", name, amount)
}
