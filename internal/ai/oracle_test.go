package ai

import (
	"context"
	"testing"

	"github.com/lox/holdemd/internal/game"
)

func TestRulePolicyChecksWhenFree(t *testing.T) {
	view := View{
		Street: game.Flop,
		Pot:    60,
		Options: []game.ValidAction{
			{Action: game.Fold},
			{Action: game.Check},
			{Action: game.Bet, Min: 20, Max: 500},
		},
	}
	d, err := RulePolicy{}.Decide(context.Background(), view)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != game.Check {
		t.Errorf("decision = %s, want check", d.Action)
	}
}

func TestRulePolicyCallsFacingBet(t *testing.T) {
	view := View{
		Street: game.Turn,
		Pot:    200,
		ToCall: 50,
		Options: []game.ValidAction{
			{Action: game.Fold},
			{Action: game.Call, Min: 50, Max: 50},
			{Action: game.Raise, Min: 100, Max: 500},
		},
	}
	d, err := RulePolicy{}.Decide(context.Background(), view)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != game.Call || d.Amount != 50 {
		t.Errorf("decision = %s/%d, want call/50", d.Action, d.Amount)
	}
}

func TestRulePolicyFoldsRiverOverbet(t *testing.T) {
	view := View{
		Street: game.River,
		Pot:    100,
		ToCall: 150,
		Options: []game.ValidAction{
			{Action: game.Fold},
			{Action: game.Call, Min: 150, Max: 150},
		},
	}
	d, err := RulePolicy{}.Decide(context.Background(), view)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != game.Fold {
		t.Errorf("decision = %s, want fold to a river overbet", d.Action)
	}

	// The same price earlier in the hand gets called.
	view.Street = game.Turn
	d, err = RulePolicy{}.Decide(context.Background(), view)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != game.Call {
		t.Errorf("decision = %s, want call on the turn", d.Action)
	}
}

func TestRulePolicyFoldsWithoutOptions(t *testing.T) {
	d, err := RulePolicy{}.Decide(context.Background(), View{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != game.Fold {
		t.Errorf("decision = %s, want fold", d.Action)
	}
}

func TestViewOption(t *testing.T) {
	view := View{Options: []game.ValidAction{
		{Action: game.Call, Min: 40, Max: 40},
	}}
	if va, ok := view.Option(game.Call); !ok || va.Min != 40 {
		t.Errorf("option lookup failed: %+v %v", va, ok)
	}
	if _, ok := view.Option(game.Raise); ok {
		t.Errorf("raise should not be offered")
	}
}
