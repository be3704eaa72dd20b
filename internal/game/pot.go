package game

import "sort"

// Pot is a main or side pot. Eligible lists the seat IDs that can win
// it, ascending. Folded seats contribute to pots but are never
// eligible.
type Pot struct {
	Amount   int   `json:"amount"`
	Eligible []int `json:"eligible_seats"`
}

// noRakeBelowBB: pots smaller than this many big blinds are never
// raked.
const noRakeBelowBB = 10

// RakeConfig is the house cut for cash games.
type RakeConfig struct {
	// Percentage of each pot taken, e.g. 0.05.
	Percentage float64 `json:"percentage"`
	// CapBB caps the rake per pot, in big blinds.
	CapBB int `json:"cap_bb"`
}

// Take returns the rake for one pot. CapBB zero means uncapped.
func (rc RakeConfig) Take(potAmount, bigBlind int) int {
	if rc.Percentage <= 0 || potAmount < noRakeBelowBB*bigBlind {
		return 0
	}
	rake := int(float64(potAmount) * rc.Percentage)
	if limit := rc.CapBB * bigBlind; rc.CapBB > 0 && rake > limit {
		rake = limit
	}
	if rake > potAmount {
		rake = potAmount
	}
	return rake
}

// BuildPots derives the ordered main-then-side pots from each seat's
// total hand contribution. Pot boundaries fall at the distinct
// contribution levels, ascending, so shorter all-ins cap earlier pots.
// Adjacent pots with identical eligibility collapse into one.
func BuildPots(seats []*Seat) []Pot {
	levelSet := map[int]bool{}
	for _, s := range seats {
		if s.HandBet > 0 {
			levelSet[s.HandBet] = true
		}
	}
	if len(levelSet) == 0 {
		return nil
	}

	levels := make([]int, 0, len(levelSet))
	for lvl := range levelSet {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)

	var pots []Pot
	prev := 0
	for _, lvl := range levels {
		var pot Pot
		for _, s := range seats {
			if s.HandBet > prev {
				c := s.HandBet
				if c > lvl {
					c = lvl
				}
				pot.Amount += c - prev
			}
			if s.InHand() && s.HandBet >= lvl {
				pot.Eligible = append(pot.Eligible, s.ID)
			}
		}
		sort.Ints(pot.Eligible)
		prev = lvl

		if pot.Amount == 0 {
			continue
		}
		if n := len(pots); n > 0 && eligibleEqual(pots[n-1].Eligible, pot.Eligible) {
			pots[n-1].Amount += pot.Amount
			continue
		}
		pots = append(pots, pot)
	}
	return pots
}

func eligibleEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// returnUncalled refunds the unmatched portion of the highest
// contribution to its seat. Run before BuildPots so no single-seat
// overage pot is ever constructed.
func returnUncalled(seats []*Seat) (seatID, amount int) {
	hi, second := 0, 0
	var hiSeat *Seat
	for _, s := range seats {
		switch {
		case s.HandBet > hi:
			second = hi
			hi = s.HandBet
			hiSeat = s
		case s.HandBet > second:
			second = s.HandBet
		}
	}
	if hiSeat == nil || hi <= second {
		return -1, 0
	}
	uncalled := hi - second
	hiSeat.Chips += uncalled
	hiSeat.HandBet -= uncalled
	if uncalled < hiSeat.StreetBet {
		hiSeat.StreetBet -= uncalled
	} else {
		hiSeat.StreetBet = 0
	}
	if hiSeat.Status == SeatAllIn && hiSeat.Chips > 0 {
		hiSeat.Status = SeatActive
	}
	return hiSeat.ID, uncalled
}

// splitPot divides an amount between winners, handing odd chips to the
// winner closest clockwise from the button. clockwise holds the hand's
// seat IDs starting left of the button.
func splitPot(amount int, winners []int, clockwise []int) map[int]int {
	payouts := make(map[int]int, len(winners))
	if len(winners) == 0 {
		return payouts
	}

	winSet := make(map[int]bool, len(winners))
	for _, w := range winners {
		winSet[w] = true
	}

	share := amount / len(winners)
	remainder := amount % len(winners)
	for _, w := range winners {
		payouts[w] = share
	}
	for _, id := range clockwise {
		if remainder == 0 {
			break
		}
		if winSet[id] {
			payouts[id]++
			remainder--
		}
	}
	return payouts
}
