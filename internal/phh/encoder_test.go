package phh

import (
	"strings"
	"testing"
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/history"
)

func cards(t *testing.T, s string) []deck.Card {
	t.Helper()
	out, err := deck.ParseAll(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return out
}

func testRecord(t *testing.T) history.Record {
	t.Helper()
	return history.Record{
		GameID:     "g1",
		HandID:     "01h5n0et5q6mt3v7ms1234abcd",
		Number:     7,
		Table:      "Main Table",
		Structure:  game.NoLimit,
		SmallBlind: 5,
		BigBlind:   10,
		Board:      cards(t, "2h 7d Jc Ts"),
		Seats: []history.SeatSummary{
			{ID: 0, Name: "Alice", Starting: 200, Finishing: 160},
			{ID: 1, Name: "Bob", Starting: 200, Finishing: 240, HoleCards: cards(t, "Ah Kh")},
		},
		Actions: []game.LogEntry{
			{Seat: -1, Line: "*** Hand #7 ***"},
			{Seat: 0, Action: "small_blind", Amount: 5, Street: game.Preflop},
			{Seat: 1, Action: "big_blind", Amount: 10, Street: game.Preflop},
			{Seat: 0, Action: "call", Amount: 5, Street: game.Preflop},
			{Seat: 1, Action: "check", Street: game.Preflop},
			{Seat: 0, Action: "check", Street: game.Flop},
			{Seat: 1, Action: "bet", Amount: 20, Street: game.Flop},
			{Seat: 0, Action: "call", Amount: 20, Street: game.Flop},
			{Seat: 0, Action: "check", Street: game.Turn},
			{Seat: 1, Action: "bet", Amount: 30, Street: game.Turn},
			{Seat: 0, Action: "fold", Street: game.Turn},
		},
		Payouts:  map[int]int{1: 70},
		FoldWin:  true,
		LogLines: []string{"Bob wins 70"},
		EndedAt:  time.Date(2025, 3, 14, 20, 30, 0, 0, time.UTC),
	}
}

func TestFromRecordActions(t *testing.T) {
	h := FromRecord(testRecord(t))

	want := []string{
		"d dh p1 ????",
		"d dh p2 AhKh",
		"p1 cc",
		"p2 cc",
		"d db 2h7dJc",
		"p1 cc",
		"p2 cbr 20",
		"p1 cc",
		"d db Ts",
		"p1 cc",
		"p2 cbr 30",
		"p1 f",
	}
	if len(h.Actions) != len(want) {
		t.Fatalf("actions = %q, want %q", h.Actions, want)
	}
	for i := range want {
		if h.Actions[i] != want[i] {
			t.Errorf("action[%d] = %q, want %q", i, h.Actions[i], want[i])
		}
	}
}

func TestFromRecordTables(t *testing.T) {
	h := FromRecord(testRecord(t))

	if h.Variant != "NT" {
		t.Errorf("variant = %q, want NT", h.Variant)
	}
	if h.MinBet != 10 {
		t.Errorf("min_bet = %d, want 10", h.MinBet)
	}
	if h.SeatCount != 2 {
		t.Errorf("seat_count = %d, want 2", h.SeatCount)
	}
	if h.BlindsOrStraddles[0] != 5 || h.BlindsOrStraddles[1] != 10 {
		t.Errorf("blinds = %v, want [5 10]", h.BlindsOrStraddles)
	}
	if h.StartingStacks[0] != 200 || h.StartingStacks[1] != 200 {
		t.Errorf("starting stacks = %v", h.StartingStacks)
	}
	if h.FinishingStacks[0] != 160 || h.FinishingStacks[1] != 240 {
		t.Errorf("finishing stacks = %v", h.FinishingStacks)
	}
	if h.Winnings[0] != 0 || h.Winnings[1] != 70 {
		t.Errorf("winnings = %v", h.Winnings)
	}
	if h.Year != 2025 || h.Month != 3 || h.Day != 14 {
		t.Errorf("date = %d-%d-%d", h.Year, h.Month, h.Day)
	}
}

func TestFromRecordShowdownRevealsHands(t *testing.T) {
	rec := testRecord(t)
	rec.FoldWin = false
	rec.Seats[0].HoleCards = cards(t, "Qc Qd")

	h := FromRecord(rec)
	var shows []string
	for _, a := range h.Actions {
		if strings.Contains(a, " sm ") {
			shows = append(shows, a)
		}
	}
	if len(shows) != 2 || shows[0] != "p1 sm QcQd" || shows[1] != "p2 sm AhKh" {
		t.Errorf("showdown lines = %q", shows)
	}
}

func TestFromRecordAllInRunout(t *testing.T) {
	rec := testRecord(t)
	rec.FoldWin = false
	rec.Board = cards(t, "2h 7d Jc Ts 3s")
	rec.Actions = []game.LogEntry{
		{Seat: 0, Action: "small_blind", Amount: 5, Street: game.Preflop},
		{Seat: 1, Action: "big_blind", Amount: 10, Street: game.Preflop},
		{Seat: 0, Action: "all_in", Amount: 195, Street: game.Preflop},
		{Seat: 1, Action: "all_in", Amount: 190, Street: game.Preflop},
	}

	h := FromRecord(rec)
	var got []string
	for _, a := range h.Actions {
		if !strings.HasPrefix(a, "d dh") {
			got = append(got, a)
		}
	}
	// The first shove raises to 200, the second only covers the price.
	want := []string{"p1 cbr 200", "p2 cc", "d db 2h7dJc", "d db Ts", "d db 3s", "p2 sm AhKh"}
	if len(got) != len(want) {
		t.Fatalf("actions = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEncodeWritesTOML(t *testing.T) {
	var b strings.Builder
	if err := Encode(&b, FromRecord(testRecord(t))); err != nil {
		t.Fatal(err)
	}
	out := b.String()

	for _, want := range []string{
		`variant = "NT"`,
		`table = "Main Table"`,
		"min_bet = 10",
		`hand = "01h5n0et5q6mt3v7ms1234abcd"`,
		"blinds_or_straddles = [5, 10]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEncodeAllNumbersHands(t *testing.T) {
	h := FromRecord(testRecord(t))
	var b strings.Builder
	if err := EncodeAll(&b, []*HandHistory{h, h}); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if !strings.Contains(out, "[1]") || !strings.Contains(out, "[2]") {
		t.Errorf("output missing numbered sections:\n%s", out)
	}
}

func TestCardCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10h", "Th"},
		{"Ah", "Ah"},
		{"2c", "2c"},
		{"Ks", "Ks"},
	}
	for _, tt := range tests {
		cs := cards(t, tt.in)
		if got := cardCode(cs[0]); got != tt.want {
			t.Errorf("cardCode(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
