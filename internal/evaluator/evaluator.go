// Package evaluator ranks Texas Hold'em hands. It wraps
// github.com/chehsunliu/poker, which scores five to seven cards into a
// single comparable value where lower is stronger; this package flips
// that so a bigger HandValue wins, which is what the rest of the server
// expects.
package evaluator

import (
	"fmt"

	"github.com/chehsunliu/poker"

	"github.com/lox/holdemd/internal/deck"
)

// Category is the class of a five-card hand.
type Category int

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// String returns the display name of a hand category.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// HandValue is the result of evaluating a hand.
type HandValue struct {
	// Score orders hands within and across categories; higher wins,
	// kickers included. Equal scores are exact ties.
	Score int32

	Category    Category
	Description string

	// Best is the five-card combination that produced the score.
	Best []deck.Card
}

// Compare returns 1 if v beats other, -1 if it loses, 0 on a tie.
func (v HandValue) Compare(other HandValue) int {
	switch {
	case v.Score > other.Score:
		return 1
	case v.Score < other.Score:
		return -1
	default:
		return 0
	}
}

// Evaluate scores the best five-card hand from hole plus community
// cards. It accepts five, six or seven cards in total.
func Evaluate(hole, community []deck.Card) (HandValue, error) {
	cards := make([]deck.Card, 0, len(hole)+len(community))
	cards = append(cards, hole...)
	cards = append(cards, community...)

	if n := len(cards); n < 5 || n > 7 {
		return HandValue{}, fmt.Errorf("evaluate needs 5 to 7 cards, got %d", n)
	}

	libCards := toLibCards(cards)
	libScore := poker.Evaluate(libCards)

	return HandValue{
		Score:       invertScore(libScore),
		Category:    categoryOf(poker.RankClass(libScore)),
		Description: poker.RankString(libScore),
		Best:        bestFive(cards, libScore),
	}, nil
}

// MustEvaluate is Evaluate for callers that have already validated the
// card count, such as showdown over known hole cards and a full board.
func MustEvaluate(hole, community []deck.Card) HandValue {
	v, err := Evaluate(hole, community)
	if err != nil {
		panic(err)
	}
	return v
}

// invertScore flips the library's lower-is-better scale. The library's
// scores run 1 (royal flush) to 7462 (worst high card).
func invertScore(libScore int32) int32 {
	return 7463 - libScore
}

// categoryOf maps the library's rank class (1 = straight flush .. 9 =
// high card) onto Category.
func categoryOf(class int32) Category {
	switch class {
	case 1:
		return StraightFlush
	case 2:
		return FourOfAKind
	case 3:
		return FullHouse
	case 4:
		return Flush
	case 5:
		return Straight
	case 6:
		return ThreeOfAKind
	case 7:
		return TwoPair
	case 8:
		return Pair
	default:
		return HighCard
	}
}

func toLibCards(cards []deck.Card) []poker.Card {
	out := make([]poker.Card, len(cards))
	for i, c := range cards {
		out[i] = toLibCard(c)
	}
	return out
}

// toLibCard converts to the library's two-character card notation,
// rank then lowercase suit, with "T" for ten.
func toLibCard(c deck.Card) poker.Card {
	var rank byte
	switch c.Rank {
	case deck.Ten:
		rank = 'T'
	case deck.Jack:
		rank = 'J'
	case deck.Queen:
		rank = 'Q'
	case deck.King:
		rank = 'K'
	case deck.Ace:
		rank = 'A'
	default:
		rank = byte('0' + int(c.Rank))
	}

	var suit byte
	switch c.Suit {
	case deck.Clubs:
		suit = 'c'
	case deck.Diamonds:
		suit = 'd'
	case deck.Hearts:
		suit = 'h'
	default:
		suit = 's'
	}

	return poker.NewCard(string([]byte{rank, suit}))
}

// bestFive finds the five-card subset whose library score matches the
// full hand's. With five cards it is the hand itself; with six or seven
// it walks the 6 or 21 combinations.
func bestFive(cards []deck.Card, libScore int32) []deck.Card {
	if len(cards) == 5 {
		return append([]deck.Card(nil), cards...)
	}

	n := len(cards)
	combo := make([]deck.Card, 5)
	idx := make([]int, 5)
	var walk func(start, depth int) []deck.Card
	walk = func(start, depth int) []deck.Card {
		if depth == 5 {
			for i, j := range idx {
				combo[i] = cards[j]
			}
			if poker.Evaluate(toLibCards(combo)) == libScore {
				return append([]deck.Card(nil), combo...)
			}
			return nil
		}
		for i := start; i <= n-(5-depth); i++ {
			idx[depth] = i
			if found := walk(i+1, depth+1); found != nil {
				return found
			}
		}
		return nil
	}

	if found := walk(0, 0); found != nil {
		return found
	}
	return append([]deck.Card(nil), cards[:5]...)
}
