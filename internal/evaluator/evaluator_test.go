package evaluator

import (
	"testing"

	"github.com/lox/holdemd/internal/deck"
)

func cards(t *testing.T, s string) []deck.Card {
	t.Helper()
	parsed, err := deck.ParseAll(s)
	if err != nil {
		t.Fatalf("bad card fixture %q: %v", s, err)
	}
	return parsed
}

func TestEvaluateCategories(t *testing.T) {
	tests := []struct {
		name     string
		hole     string
		board    string
		category Category
	}{
		{"royal flush", "AS KS", "QS JS 10S 2D 3C", StraightFlush},
		{"four of a kind", "9S 9H", "9D 9C 2S 5H KD", FourOfAKind},
		{"full house", "KS KH", "KD 2C 2S 7H 8D", FullHouse},
		{"flush", "AH 2H", "9H 6H 3H KS QD", Flush},
		{"broadway straight", "AS KD", "QH JC 10S 2D 3C", Straight},
		{"wheel straight", "AS 2D", "3H 4C 5S KD KH", Straight},
		{"three of a kind", "7S 7H", "7D KC 2S 5H 9D", ThreeOfAKind},
		{"two pair", "AS AH", "KD KC 2S 5H 9D", TwoPair},
		{"pair", "AS AH", "KD QC 2S 5H 9D", Pair},
		{"high card", "AS KH", "QD JC 2S 5H 9D", HighCard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Evaluate(cards(t, tt.hole), cards(t, tt.board))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if v.Category != tt.category {
				t.Errorf("category = %v, want %v", v.Category, tt.category)
			}
			if len(v.Best) != 5 {
				t.Errorf("best hand has %d cards, want 5", len(v.Best))
			}
		})
	}
}

func TestWheelLosesToSixHighStraight(t *testing.T) {
	board := cards(t, "3H 4C 5S KD QH")
	wheel := MustEvaluate(cards(t, "AS 2D"), board)
	sixHigh := MustEvaluate(cards(t, "6S 2H"), board)

	if wheel.Category != Straight || sixHigh.Category != Straight {
		t.Fatalf("expected two straights, got %v and %v", wheel.Category, sixHigh.Category)
	}
	if sixHigh.Compare(wheel) != 1 {
		t.Errorf("six-high straight should beat the wheel")
	}
}

func TestAceHighStraightBeatsWheel(t *testing.T) {
	wheel := MustEvaluate(cards(t, "AS 2D"), cards(t, "3H 4C 5S 9D KH"))
	broadway := MustEvaluate(cards(t, "AH KD"), cards(t, "QH JC 10S 2D 3C"))

	if broadway.Compare(wheel) != 1 {
		t.Errorf("broadway should beat the wheel")
	}
}

func TestFlushBeatsStraight(t *testing.T) {
	flush := MustEvaluate(cards(t, "AH 2H"), cards(t, "9H 6H 3H KS QD"))
	straight := MustEvaluate(cards(t, "AS KD"), cards(t, "QH JC 10S 2D 3C"))

	if flush.Compare(straight) != 1 {
		t.Errorf("flush should beat straight")
	}
	if straight.Compare(flush) != -1 {
		t.Errorf("straight should lose to flush")
	}
}

func TestBoardPlaysIsTie(t *testing.T) {
	board := cards(t, "AS KS QS JS 10S")
	a := MustEvaluate(cards(t, "2H 3D"), board)
	b := MustEvaluate(cards(t, "7C 8H"), board)

	if a.Compare(b) != 0 {
		t.Errorf("identical board hands should tie, got %d", a.Compare(b))
	}
}

func TestKickerBreaksTie(t *testing.T) {
	board := cards(t, "KD QC 2S 5H 9D")
	aceKicker := MustEvaluate(cards(t, "KS AH"), board)
	jackKicker := MustEvaluate(cards(t, "KH JD"), board)

	if aceKicker.Compare(jackKicker) != 1 {
		t.Errorf("ace kicker should win")
	}
}

func TestEvaluateRejectsBadCardCounts(t *testing.T) {
	if _, err := Evaluate(cards(t, "AS KS"), cards(t, "QS JS")); err == nil {
		t.Error("expected error for 4 cards")
	}
	if _, err := Evaluate(cards(t, "AS KS"), cards(t, "QS JS 10S 9S 8S 7S")); err == nil {
		t.Error("expected error for 8 cards")
	}
}

func TestBestFivePicksWinningCombination(t *testing.T) {
	// Hole pair plus board pair: best five must include both nines
	// and both kings.
	v := MustEvaluate(cards(t, "9S 9H"), cards(t, "KD KC 2S 5H 8D"))
	if v.Category != TwoPair {
		t.Fatalf("category = %v, want TwoPair", v.Category)
	}

	counts := map[deck.Rank]int{}
	for _, c := range v.Best {
		counts[c.Rank]++
	}
	if counts[deck.Nine] != 2 || counts[deck.King] != 2 {
		t.Errorf("best five %v should hold both pairs", deck.Format(v.Best))
	}
}
