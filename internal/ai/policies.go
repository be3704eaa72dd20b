package ai

import (
	"context"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/randutil"
)

// PolicyByName returns a built-in oracle by its configuration name.
// The empty name means the default rule policy.
func PolicyByName(name string) (Oracle, bool) {
	switch name {
	case "", "rules":
		return RulePolicy{}, true
	case "calling-station":
		return CallingStation{}, true
	case "tight":
		return Tight{}, true
	case "random":
		return NewRandom(time.Now().UnixNano()), true
	case "aggressor":
		return NewAggressor(time.Now().UnixNano()), true
	}
	return nil, false
}

// PolicyNames lists the accepted configuration names.
func PolicyNames() []string {
	return []string{"rules", "calling-station", "tight", "random", "aggressor"}
}

// CallingStation checks when it is free and pays any price otherwise.
// It folds only when the rules leave nothing else.
type CallingStation struct{}

func (CallingStation) Decide(_ context.Context, view View) (Decision, error) {
	if _, ok := view.Option(game.Check); ok {
		return Decision{Action: game.Check}, nil
	}
	if va, ok := view.Option(game.Call); ok {
		return Decision{Action: game.Call, Amount: va.Min}, nil
	}
	return Decision{Action: game.Fold}, nil
}

// Tight plays preflop by percentile hand ranking: it raises the top
// 15% of holdings, sees cheap flops with the top 60%, and folds the
// rest to any bet. Postflop it plays the rule policy's price logic.
type Tight struct{}

func (Tight) Decide(ctx context.Context, view View) (Decision, error) {
	if view.Street != game.Preflop || len(view.HoleCards) != 2 {
		return RulePolicy{}.Decide(ctx, view)
	}

	percentile := deck.GetHandPercentile(view.HoleCards)
	switch {
	case percentile >= 0.85:
		for _, action := range []game.Action{game.Raise, game.Bet} {
			if va, ok := view.Option(action); ok {
				return Decision{Action: action, Amount: va.Min}, nil
			}
		}
		if va, ok := view.Option(game.Call); ok {
			return Decision{Action: game.Call, Amount: va.Min}, nil
		}
	case percentile >= 0.40:
		if va, ok := view.Option(game.Call); ok && view.ToCall <= view.BigBlind*3 {
			return Decision{Action: game.Call, Amount: va.Min}, nil
		}
	}
	if _, ok := view.Option(game.Check); ok {
		return Decision{Action: game.Check}, nil
	}
	return Decision{Action: game.Fold}, nil
}

// Random plays a uniformly random legal action with a uniformly random
// size. A baseline opponent and cheap load for soak tests.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a random policy from a seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: randutil.New(seed)}
}

func (r *Random) Decide(_ context.Context, view View) (Decision, error) {
	if len(view.Options) == 0 {
		return Decision{Action: game.Fold}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	va := view.Options[r.rng.IntN(len(view.Options))]
	amount := va.Min
	if va.Max > va.Min {
		amount = va.Min + r.rng.IntN(va.Max-va.Min+1)
	}
	return Decision{Action: va.Action, Amount: amount}, nil
}

// Aggressor bets and raises whenever the rules allow, sizing between
// three quarters of the cap and the cap itself. It never folds while
// chips can still go in.
type Aggressor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewAggressor creates an aggressor policy from a seed.
func NewAggressor(seed int64) *Aggressor {
	return &Aggressor{rng: randutil.New(seed)}
}

func (a *Aggressor) Decide(_ context.Context, view View) (Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, action := range []game.Action{game.Raise, game.Bet} {
		va, ok := view.Option(action)
		if !ok {
			continue
		}
		low := va.Min + (va.Max-va.Min)*3/4
		amount := low
		if va.Max > low {
			amount = low + a.rng.IntN(va.Max-low+1)
		}
		return Decision{Action: action, Amount: amount}, nil
	}
	if _, ok := view.Option(game.AllIn); ok {
		return Decision{Action: game.AllIn}, nil
	}
	if va, ok := view.Option(game.Call); ok {
		return Decision{Action: game.Call, Amount: va.Min}, nil
	}
	if _, ok := view.Option(game.Check); ok {
		return Decision{Action: game.Check}, nil
	}
	return Decision{Action: game.Fold}, nil
}
