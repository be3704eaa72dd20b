package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/sanity-io/litter"

	"github.com/lox/holdemd/internal/ai"
	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
)

// oracleTimeout bounds one oracle decision.
const oracleTimeout = 5 * time.Second

type aiTask struct {
	g      *game.Game
	seatID int
}

// AIDriver acts for non-human seats. A single dispatch loop works a
// queue of (game, seat) turns, so a table full of AI seats plays hand
// after hand without growing the stack.
type AIDriver struct {
	oracle  ai.Oracle
	orch    *Orchestrator
	hub     *Hub
	logger  *log.Logger
	clock   quartz.Clock
	metrics *Metrics

	mu       sync.Mutex
	queue    []aiTask
	running  bool
	policies map[string]ai.Oracle
}

// NewAIDriver creates a driver deciding through oracle.
func NewAIDriver(oracle ai.Oracle, orch *Orchestrator, hub *Hub, logger *log.Logger, clock quartz.Clock, metrics *Metrics) *AIDriver {
	return &AIDriver{
		oracle:  oracle,
		orch:    orch,
		hub:     hub,
		logger:  logger.WithPrefix("ai"),
		clock:   clock,
		metrics: metrics,
	}
}

// UsePolicy pins an oracle to one player ID, overriding the server
// oracle. Configured AI seats get their declared strategies this way.
func (d *AIDriver) UsePolicy(playerID string, oracle ai.Oracle) {
	d.mu.Lock()
	if d.policies == nil {
		d.policies = make(map[string]ai.Oracle)
	}
	d.policies[playerID] = oracle
	d.mu.Unlock()
}

func (d *AIDriver) oracleFor(playerID string) ai.Oracle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.policies[playerID]; ok {
		return o
	}
	return d.oracle
}

// Enqueue schedules one AI turn. Safe from any goroutine.
func (d *AIDriver) Enqueue(g *game.Game, seatID int) {
	d.mu.Lock()
	d.queue = append(d.queue, aiTask{g: g, seatID: seatID})
	if !d.running {
		d.running = true
		go d.drain()
	}
	d.mu.Unlock()
}

func (d *AIDriver) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		task := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.act(task.g, task.seatID)
	}
}

// act plays one AI turn: verify the seat still holds the turn, build
// its view, decide, then re-verify, coerce and apply in one critical
// section. Orchestration runs outside the lock as usual.
func (d *AIDriver) act(g *game.Game, seatID int) {
	g.Lock()
	h := g.Hand()
	if h == nil || h.Complete() || h.Turn.Current() != seatID {
		g.Unlock()
		return
	}
	seat := g.SeatByID(seatID)
	if seat == nil || seat.IsHuman {
		g.Unlock()
		return
	}
	playerID := seat.PlayerID
	view := buildAIView(g, seatID)
	g.Unlock()

	decision := d.decide(playerID, view)

	g.Lock()
	h = g.Hand()
	if h == nil || h.Complete() || h.Turn.Current() != seatID {
		g.Unlock()
		return
	}
	action, amount, coerced := coerceDecision(h, seatID, decision)
	res := g.ApplyAction(playerID, action, amount)
	paused := g.Status() == game.StatusPaused
	if res.Repaired || paused {
		d.logger.Error("turn cursor inconsistency",
			"game", g.ID(), "repaired", res.Repaired, "paused", paused,
			"hand", litter.Sdump(g.Hand()))
	}
	if res.OK && !paused {
		d.orch.EnqueueResult(g, res)
	}
	g.Unlock()

	d.metrics.observeAction(res)
	if coerced {
		d.metrics.AICoercions.Inc()
		d.logger.Debug("coerced oracle decision",
			"game", g.ID(), "seat", seatID,
			"wanted", decision.Action, "applied", action)
	}
	if paused {
		d.hub.CloseGame(g.ID(), string(game.ErrKindActionFailed), "internal error, game paused")
		return
	}
	if !res.OK {
		d.logger.Warn("ai action rejected",
			"game", g.ID(), "seat", seatID, "action", action, "error", res.ErrorText)
	}
}

// decide asks the seat's oracle under a bounded deadline. Failures
// fall back deterministically: check when it is free, otherwise fold.
func (d *AIDriver) decide(playerID string, view ai.View) ai.Decision {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timer := d.clock.AfterFunc(oracleTimeout, cancel, "oracle_deadline")
	defer timer.Stop()

	decision, err := d.oracleFor(playerID).Decide(ctx, view)
	if err != nil {
		d.metrics.AIFallbacks.Inc()
		d.logger.Warn("oracle failed, falling back",
			"game", view.GameID, "seat", view.Seat, "error", err)
		if _, ok := view.Option(game.Check); ok {
			return ai.Decision{Action: game.Check}
		}
		return ai.Decision{Action: game.Fold}
	}
	return decision
}

// coerceDecision validates an oracle reply against the live legal
// actions, walking an illegal choice down through check, call, fold.
func coerceDecision(h *game.Hand, seatID int, decision ai.Decision) (game.Action, int, bool) {
	options := h.LegalActions(seatID)
	for _, va := range options {
		if va.Action != decision.Action {
			continue
		}
		switch va.Action {
		case game.Bet, game.Raise:
			if decision.Amount >= va.Min && decision.Amount <= va.Max {
				return va.Action, decision.Amount, false
			}
		default:
			return va.Action, 0, false
		}
	}
	for _, fallback := range []game.Action{game.Check, game.Call, game.Fold} {
		for _, va := range options {
			if va.Action == fallback {
				return fallback, 0, true
			}
		}
	}
	return game.Fold, 0, true
}

// buildAIView snapshots the game the way the acting seat sees it: its
// own hole cards, everyone's stacks and bets, the board and the
// prices. Caller holds the game mutex.
func buildAIView(g *game.Game, seatID int) ai.View {
	cfg := g.Config()
	view := ai.View{
		GameID:     g.ID(),
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
		Ante:       cfg.Ante,
		Structure:  cfg.Structure,
		Button:     g.Button(),
		Seat:       seatID,
	}
	if seat := g.SeatByID(seatID); seat != nil {
		view.HoleCards = append([]deck.Card(nil), seat.HoleCards...)
		view.Chips = seat.Chips
	}
	h := g.Hand()
	if h == nil {
		return view
	}

	view.HandID = h.ID
	view.Street = h.Street
	view.Board = append([]deck.Card(nil), h.Board...)
	view.Pot = h.PotTotal()
	view.Options = h.LegalActions(seatID)
	for _, va := range view.Options {
		if va.Action == game.Call {
			view.ToCall = va.Min
		}
	}
	for _, s := range h.Seats() {
		view.Seats = append(view.Seats, ai.SeatView{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Chips:       s.Chips,
			StreetBet:   s.StreetBet,
			HandBet:     s.HandBet,
			Status:      s.Status,
		})
	}
	return view
}
