package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/history"
	"github.com/lox/holdemd/internal/randutil"
)

// testOrchestrator wires an orchestrator over a fresh hub and history
// repository.
func testOrchestrator(clock quartz.Clock) (*Orchestrator, *Hub, *history.Repository, *Metrics) {
	metrics := NewMetrics()
	hub := NewHub(testLogger(), clock, metrics)
	hist := history.NewRepository(history.DefaultLimit)
	orch := NewOrchestrator(hub, hist, testLogger(), clock, metrics)
	return orch, hub, hist, metrics
}

// headsUpGame seats alice and bob with 1000 chips each and starts the
// game. The first hand pins the button to seat 0 (alice), who posts
// the small blind and acts first heads-up.
func headsUpGame(t *testing.T, human bool) *game.Game {
	t.Helper()
	cfg := game.Config{Name: "Test Table", SmallBlind: 5, BigBlind: 10, MaxSeats: 6}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	g := game.NewGame("g-test", cfg, "alice", game.WithRand(randutil.New(7)))

	g.Lock()
	defer g.Unlock()
	if _, err := g.AddSeat("alice", "Alice", 1000, human); err != nil {
		t.Fatalf("AddSeat alice: %v", err)
	}
	if _, err := g.AddSeat("bob", "Bob", 1000, human); err != nil {
		t.Fatalf("AddSeat bob: %v", err)
	}
	if err := g.Start("alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return g
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ackingSub acknowledges every animation step as soon as it arrives,
// the way a connected client does.
type ackingSub struct {
	fakeSub
	orch   *Orchestrator
	gameID string
}

func (a *ackingSub) Send(msg *Message) error {
	if err := a.fakeSub.Send(msg); err != nil {
		return err
	}
	switch msg.Type {
	case TypeRoundBetsFinalized:
		a.orch.Signal(a.gameID, StepRoundBetsFinalized)
	case TypeStreetDealt:
		var data StreetDealtData
		if err := json.Unmarshal(msg.Data, &data); err == nil {
			a.orch.Signal(a.gameID, StreetDealtStep(data.Street))
		}
	}
	return nil
}

func (a *ackingSub) saw(want MessageType) func() bool {
	return func() bool {
		for _, mt := range a.types() {
			if mt == want {
				return true
			}
		}
		return false
	}
}

// startHandWithSeatSub starts the first hand with a subscriber bound
// to seat 0 and waits for the hand-start sequence, action_request
// included, to drain.
func startHandWithSeatSub(t *testing.T, orch *Orchestrator, hub *Hub, g *game.Game) *ackingSub {
	t.Helper()
	seatSub := &ackingSub{orch: orch, gameID: g.ID()}
	hub.Subscribe(seatSub, g.ID(), 0, "alice")

	orch.StartNextHand(g)
	waitFor(t, "action_request", seatSub.saw(TypeActionRequest))

	g.Lock()
	actor := g.Hand().Turn.Current()
	g.Unlock()
	if actor != 0 {
		t.Fatalf("first to act is seat %d, want 0", actor)
	}
	return seatSub
}

func TestDispatchFoldRunsConclusionSequence(t *testing.T) {
	orch, hub, _, _ := testOrchestrator(quartz.NewReal())
	g := headsUpGame(t, true)
	startHandWithSeatSub(t, orch, hub, g)

	// A fresh observer sees only the fold's notification sequence.
	obs := &ackingSub{orch: orch, gameID: g.ID()}
	hub.Subscribe(obs, g.ID(), ObserverSeat, "")

	res := orch.Dispatch(g, "alice", game.Fold, 0)
	if !res.OK {
		t.Fatalf("fold rejected: %s", res.ErrorText)
	}
	waitFor(t, "hand_visually_concluded", obs.saw(TypeHandVisuallyConcluded))

	want := []MessageType{
		TypePlayerAction,
		TypeActionLog,
		TypeTurnHighlightRemoved,
		TypeRoundBetsFinalized,
		TypeShowdownTransition,
		TypePotWinnersDetermined,
		TypeChipsDistributed,
		TypeActionLog,
		TypeHandResult,
		TypeHandVisuallyConcluded,
	}
	got := obs.types()
	if len(got) != len(want) {
		t.Fatalf("observer got %d messages %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %s, want %s", i, got[i], want[i])
		}
	}

	g.Lock()
	alice, bob := g.SeatByID(0), g.SeatByID(1)
	g.Unlock()
	if alice.Chips != 995 {
		t.Errorf("folder has %d chips, want 995", alice.Chips)
	}
	if bob.Chips != 1005 {
		t.Errorf("winner has %d chips, want 1005", bob.Chips)
	}
}

func TestDispatchRejectionIsNotBroadcast(t *testing.T) {
	orch, hub, _, _ := testOrchestrator(quartz.NewReal())
	g := headsUpGame(t, true)
	seatSub := startHandWithSeatSub(t, orch, hub, g)
	before := seatSub.count()

	// Bob acts out of turn.
	res := orch.Dispatch(g, "bob", game.Fold, 0)
	if res.OK {
		t.Fatal("out-of-turn fold was accepted")
	}
	if res.ErrorKind != game.ErrKindNotYourTurn {
		t.Errorf("ErrorKind = %q, want %q", res.ErrorKind, game.ErrKindNotYourTurn)
	}

	time.Sleep(50 * time.Millisecond)
	if got := seatSub.count(); got != before {
		t.Errorf("rejection broadcast %d extra messages", got-before)
	}
}

func TestDispatchUnseatedPlayerIsRejected(t *testing.T) {
	orch, hub, _, _ := testOrchestrator(quartz.NewReal())
	g := headsUpGame(t, true)
	startHandWithSeatSub(t, orch, hub, g)

	res := orch.Dispatch(g, "mallory", game.Fold, 0)
	if res.OK {
		t.Fatal("unseated player's action was accepted")
	}
	if res.ErrorKind != game.ErrKindNotAuthorized {
		t.Errorf("ErrorKind = %q, want %q", res.ErrorKind, game.ErrKindNotAuthorized)
	}
}

func TestAnimationWaitFallsBackOnTimer(t *testing.T) {
	ctx := testContext(t)
	mock := quartz.NewMock(t)
	orch, hub, _, metrics := testOrchestrator(mock)
	g := headsUpGame(t, true)

	trap := mock.Trap().AfterFunc("animation_wait")
	defer trap.Close()

	// A subscriber who never acknowledges animation steps.
	sub := &fakeSub{}
	hub.Subscribe(sub, g.ID(), 0, "alice")

	orch.StartNextHand(g)
	waitFor(t, "action_request", func() bool {
		for _, mt := range sub.types() {
			if mt == TypeActionRequest {
				return true
			}
		}
		return false
	})

	res := orch.Dispatch(g, "alice", game.Fold, 0)
	if !res.OK {
		t.Fatalf("fold rejected: %s", res.ErrorText)
	}

	// The sequence blocks on round_bets_finalized until the fallback
	// timer fires.
	call := trap.MustWait(ctx)
	call.Release()
	mock.Advance(animationWait).MustWait(ctx)

	waitFor(t, "hand_visually_concluded", func() bool {
		for _, mt := range sub.types() {
			if mt == TypeHandVisuallyConcluded {
				return true
			}
		}
		return false
	})
	if got := testutil.ToFloat64(metrics.AnimationTimeouts); got != 1 {
		t.Errorf("AnimationTimeouts = %v, want 1", got)
	}
}

func TestSignalWithoutWaiterIsDropped(t *testing.T) {
	orch, _, _, _ := testOrchestrator(quartz.NewReal())
	orch.Signal("nope", StepRoundBetsFinalized)
}

func TestStartNextHandRefusesWhileHandIsLive(t *testing.T) {
	orch, hub, _, _ := testOrchestrator(quartz.NewReal())
	g := headsUpGame(t, true)
	startHandWithSeatSub(t, orch, hub, g)

	// Duplicate conclusion acknowledgements call this again; the live
	// hand must stay untouched.
	orch.StartNextHand(g)

	g.Lock()
	defer g.Unlock()
	if g.HandCount() != 1 {
		t.Errorf("HandCount() = %d, want 1", g.HandCount())
	}
}

func TestStartNextHandBroadcastsWaitingWhenShortHanded(t *testing.T) {
	orch, hub, _, _ := testOrchestrator(quartz.NewReal())
	g := headsUpGame(t, true)

	g.Lock()
	if _, _, err := g.RemoveSeat("bob"); err != nil {
		g.Unlock()
		t.Fatalf("RemoveSeat: %v", err)
	}
	g.Unlock()

	obs := &fakeSub{}
	hub.Subscribe(obs, g.ID(), ObserverSeat, "")

	orch.StartNextHand(g)

	msg := obs.last()
	if msg == nil || msg.Type != TypeGameState {
		t.Fatalf("observer's last message = %v, want game_state", msg)
	}
	var state GameState
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatalf("unmarshal game_state: %v", err)
	}
	if state.Status != game.StatusWaiting {
		t.Errorf("status = %s, want waiting", state.Status)
	}
	if state.CurrentRound != "waiting" {
		t.Errorf("current_round = %q, want %q", state.CurrentRound, "waiting")
	}
}

func TestAutoAdvanceDealsNextHandWhenUnwatched(t *testing.T) {
	ctx := testContext(t)
	mock := quartz.NewMock(t)
	orch, _, _, _ := testOrchestrator(mock)
	g := headsUpGame(t, false)

	trap := mock.Trap().AfterFunc("auto_advance")
	defer trap.Close()

	orch.StartNextHand(g)
	g.Lock()
	actor := g.Hand().Turn.Current()
	playerID := g.SeatByID(actor).PlayerID
	g.Unlock()

	res := orch.Dispatch(g, playerID, game.Fold, 0)
	if !res.OK {
		t.Fatalf("fold rejected: %s", res.ErrorText)
	}

	// Nobody is connected, so the conclusion arms the pacing timer.
	call := trap.MustWait(ctx)
	call.Release()
	g.Lock()
	count := g.HandCount()
	g.Unlock()
	if count != 1 {
		t.Fatalf("HandCount() = %d before the timer fired, want 1", count)
	}

	mock.Advance(autoAdvanceDelay).MustWait(ctx)
	waitFor(t, "second hand", func() bool {
		g.Lock()
		defer g.Unlock()
		return g.HandCount() == 2
	})
}

func TestConcludeHandRecordsHistory(t *testing.T) {
	orch, hub, hist, _ := testOrchestrator(quartz.NewReal())
	g := headsUpGame(t, true)
	startHandWithSeatSub(t, orch, hub, g)

	res := orch.Dispatch(g, "alice", game.Fold, 0)
	if !res.OK {
		t.Fatalf("fold rejected: %s", res.ErrorText)
	}
	waitFor(t, "history record", func() bool {
		return len(hist.Recent(g.ID(), 1)) == 1
	})

	rec := hist.Recent(g.ID(), 1)[0]
	if !rec.FoldWin {
		t.Error("FoldWin = false for a fold-won hand")
	}
	if rec.Table != "Test Table" {
		t.Errorf("Table = %q, want %q", rec.Table, "Test Table")
	}
	if rec.Number != 1 {
		t.Errorf("Number = %d, want 1", rec.Number)
	}
	if rec.SmallBlind != 5 || rec.BigBlind != 10 {
		t.Errorf("blinds = %d/%d, want 5/10", rec.SmallBlind, rec.BigBlind)
	}
	if rec.HandID == "" {
		t.Error("HandID is empty")
	}
	if len(rec.Seats) != 2 {
		t.Fatalf("record has %d seats, want 2", len(rec.Seats))
	}
	for _, s := range rec.Seats {
		if s.Starting != 1000 {
			t.Errorf("seat %d Starting = %d, want 1000", s.ID, s.Starting)
		}
		switch s.ID {
		case 0:
			if s.Finishing != 995 {
				t.Errorf("folder Finishing = %d, want 995", s.Finishing)
			}
		case 1:
			if s.Finishing != 1005 {
				t.Errorf("winner Finishing = %d, want 1005", s.Finishing)
			}
		}
	}
	if rec.Payouts[1] != 10 {
		t.Errorf("Payouts[1] = %d, want 10", rec.Payouts[1])
	}
	foundFold := false
	for _, entry := range rec.Actions {
		if entry.Action == "fold" && entry.Seat == 0 {
			foundFold = true
		}
	}
	if !foundFold {
		t.Error("action log has no fold by seat 0")
	}
}

func TestBuildActionRequestBounds(t *testing.T) {
	g := headsUpGame(t, true)
	g.Lock()
	defer g.Unlock()
	if _, err := g.BeginNextHand(); err != nil {
		t.Fatalf("BeginNextHand: %v", err)
	}

	req, seat := buildActionRequest(g)
	if req == nil {
		t.Fatal("buildActionRequest returned nil for a live hand")
	}
	if !seat.IsHuman {
		t.Error("acting seat is not human")
	}
	if req.SeatID != 0 {
		t.Errorf("SeatID = %d, want 0", req.SeatID)
	}
	if req.TimeLimit != turnTimeLimit {
		t.Errorf("TimeLimit = %d, want %d", req.TimeLimit, turnTimeLimit)
	}
	// Small blind facing the big blind: 5 to call, min raise to 20,
	// max raise the full stack's street total.
	if req.CallAmount != 5 {
		t.Errorf("CallAmount = %d, want 5", req.CallAmount)
	}
	if req.MinRaise != 20 {
		t.Errorf("MinRaise = %d, want 20", req.MinRaise)
	}
	if req.MaxRaise != 1000 {
		t.Errorf("MaxRaise = %d, want 1000", req.MaxRaise)
	}
	for _, want := range []game.Action{game.Fold, game.Call, game.Raise} {
		found := false
		for _, a := range req.Options {
			if a == want {
				found = true
			}
		}
		if !found {
			t.Errorf("options %v missing %s", req.Options, want)
		}
	}
}

func TestBuildActionRequestNilBetweenHands(t *testing.T) {
	g := headsUpGame(t, true)
	g.Lock()
	defer g.Unlock()

	if req, _ := buildActionRequest(g); req != nil {
		t.Errorf("buildActionRequest = %+v before any hand, want nil", req)
	}
}
