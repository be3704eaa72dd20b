package phh

import (
	"strings"

	"github.com/lox/holdemd/internal/deck"
)

// cardCode renders one card the way PHH spells them: rank then
// lowercase suit, with ten as T.
func cardCode(c deck.Card) string {
	r := c.Rank.String()
	if c.Rank == deck.Ten {
		r = "T"
	}
	return r + strings.ToLower(c.Suit.String())
}

// cardCodes concatenates cards into a PHH card run such as "AhKs".
func cardCodes(cards []deck.Card) string {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(cardCode(c))
	}
	return b.String()
}
