package deck

import (
	"fmt"
	"strings"
)

// Suit represents a card suit.
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// String returns the wire letter for a suit (C, D, H or S).
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "C"
	case Diamonds:
		return "D"
	case Hearts:
		return "H"
	case Spades:
		return "S"
	default:
		return "?"
	}
}

// Symbol returns the display glyph for a suit.
func (s Suit) Symbol() string {
	switch s {
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	case Hearts:
		return "♥"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds).
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank. Aces are high (14); the evaluator
// handles the wheel (A-5) straight.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the wire form of a rank: "2".."9", "10", "J", "Q", "K", "A".
func (r Rank) String() string {
	switch {
	case r >= Two && r <= Nine:
		return fmt.Sprintf("%d", int(r))
	case r == Ten:
		return "10"
	case r == Jack:
		return "J"
	case r == Queen:
		return "Q"
	case r == King:
		return "K"
	case r == Ace:
		return "A"
	default:
		return "?"
	}
}

// Card represents a playing card.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a new card.
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns the wire form of a card, rank then suit letter
// (e.g. "AS", "10H").
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Pretty returns the display form of a card (e.g. "A♠", "10♥").
func (c Card) Pretty() string {
	return c.Rank.String() + c.Suit.Symbol()
}

// IsRed returns true if the card is red.
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// MarshalText encodes the card in its wire form.
func (c Card) MarshalText() ([]byte, error) {
	if c.Rank < Two || c.Rank > Ace {
		return nil, fmt.Errorf("invalid rank %d", c.Rank)
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a card from its wire form.
func (c *Card) UnmarshalText(text []byte) error {
	card, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = card
	return nil
}

// Parse decodes a card from its wire form, e.g. "AS" or "10H".
// Lowercase suits and "T" for ten are accepted on input.
func Parse(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Card{}, fmt.Errorf("malformed card %q", s)
	}

	suitChar := s[len(s)-1]
	var suit Suit
	switch suitChar {
	case 'C':
		suit = Clubs
	case 'D':
		suit = Diamonds
	case 'H':
		suit = Hearts
	case 'S':
		suit = Spades
	default:
		return Card{}, fmt.Errorf("unknown suit %q in card %q", string(suitChar), s)
	}

	var rank Rank
	switch rankStr := s[:len(s)-1]; rankStr {
	case "2", "3", "4", "5", "6", "7", "8", "9":
		rank = Rank(rankStr[0] - '0')
	case "10", "T":
		rank = Ten
	case "J":
		rank = Jack
	case "Q":
		rank = Queen
	case "K":
		rank = King
	case "A":
		rank = Ace
	default:
		return Card{}, fmt.Errorf("unknown rank %q in card %q", rankStr, s)
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// MustParse is Parse but panics on malformed input. For tests and
// fixture decks.
func MustParse(s string) Card {
	card, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return card
}

// ParseAll decodes a whitespace- or comma-separated list of cards.
func ParseAll(s string) ([]Card, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		card, err := Parse(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Format renders a card list in the action-log style, e.g. "[AH KD 7C]".
func Format(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
