package server

import (
	"testing"
)

func TestBuildGameStateBetweenHands(t *testing.T) {
	g := headsUpGame(t, true)
	g.Lock()
	defer g.Unlock()

	state := buildGameState(g)
	if state.GameID != g.ID() {
		t.Errorf("GameID = %q, want %q", state.GameID, g.ID())
	}
	if state.CurrentRound != "waiting" {
		t.Errorf("CurrentRound = %q, want %q", state.CurrentRound, "waiting")
	}
	if state.CurrentActorIndex != -1 {
		t.Errorf("CurrentActorIndex = %d, want -1", state.CurrentActorIndex)
	}
	if state.HandID != "" {
		t.Errorf("HandID = %q, want empty", state.HandID)
	}
	if len(state.Seats) != 2 {
		t.Errorf("Seats has %d entries, want 2", len(state.Seats))
	}
	if state.SmallBlind != 5 || state.BigBlind != 10 {
		t.Errorf("blinds = %d/%d, want 5/10", state.SmallBlind, state.BigBlind)
	}
}

func TestBuildGameStateLiveHand(t *testing.T) {
	g := headsUpGame(t, true)
	g.Lock()
	defer g.Unlock()
	if _, err := g.BeginNextHand(); err != nil {
		t.Fatalf("BeginNextHand: %v", err)
	}
	h := g.Hand()

	state := buildGameState(g)
	if state.HandID != h.ID {
		t.Errorf("HandID = %q, want %q", state.HandID, h.ID)
	}
	if state.HandNumber != 1 {
		t.Errorf("HandNumber = %d, want 1", state.HandNumber)
	}
	if state.CurrentRound != "preflop" {
		t.Errorf("CurrentRound = %q, want %q", state.CurrentRound, "preflop")
	}
	if state.Pot != 15 {
		t.Errorf("Pot = %d, want 15 from the blinds", state.Pot)
	}
	if state.CurrentBet != 10 {
		t.Errorf("CurrentBet = %d, want 10", state.CurrentBet)
	}
	if state.ButtonPosition != 0 {
		t.Errorf("ButtonPosition = %d, want 0", state.ButtonPosition)
	}
	if state.CurrentActorIndex != h.Turn.Current() {
		t.Errorf("CurrentActorIndex = %d, want %d", state.CurrentActorIndex, h.Turn.Current())
	}
	if len(state.CommunityCards) != 0 {
		t.Errorf("CommunityCards = %v preflop, want none", state.CommunityCards)
	}
	// Header plus the two blind posts.
	if len(state.ActionHistory) != 3 {
		t.Errorf("ActionHistory has %d lines, want 3: %v", len(state.ActionHistory), state.ActionHistory)
	}
	for _, s := range state.Seats {
		if len(s.HoleCards) != 2 {
			t.Errorf("seat %d has %d hole cards in the unredacted state, want 2", s.ID, len(s.HoleCards))
		}
	}
}

func TestRedactHidesOtherHoleCards(t *testing.T) {
	g := headsUpGame(t, true)
	g.Lock()
	if _, err := g.BeginNextHand(); err != nil {
		g.Unlock()
		t.Fatalf("BeginNextHand: %v", err)
	}
	state := buildGameState(g)
	g.Unlock()

	for _, tc := range []struct {
		name      string
		recipient int
		visible   map[int]int
	}{
		{"seat 0", 0, map[int]int{0: 2, 1: 0}},
		{"seat 1", 1, map[int]int{0: 0, 1: 2}},
		{"observer", ObserverSeat, map[int]int{0: 0, 1: 0}},
	} {
		out := state.Redact(tc.recipient)
		for _, s := range out.Seats {
			if got, want := len(s.HoleCards), tc.visible[s.ID]; got != want {
				t.Errorf("%s: seat %d shows %d cards, want %d", tc.name, s.ID, got, want)
			}
		}
	}

	// Redact copies; the shared snapshot keeps every seat's cards.
	for _, s := range state.Seats {
		if len(s.HoleCards) != 2 {
			t.Errorf("redaction mutated the shared state for seat %d", s.ID)
		}
	}
}
