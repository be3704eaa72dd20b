package server

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/sanity-io/litter"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/history"
)

const (
	// animationWait bounds how long one visual step blocks a game on
	// a client acknowledgement.
	animationWait = time.Second

	// autoAdvanceDelay paces hands at tables with nobody to send the
	// conclusion acknowledgement.
	autoAdvanceDelay = time.Second

	// turnTimeLimit is the advisory seconds shown with an
	// action_request. Humans are never auto-folded.
	turnTimeLimit = 30
)

// waitKey identifies one armed animation latch.
type waitKey struct {
	gameID string
	step   string
}

// gameQueue is one game's pending orchestrations plus whether a
// drainer goroutine is live.
type gameQueue struct {
	jobs    []func()
	running bool
}

// Orchestrator turns applied actions into the ordered notification
// sequence clients animate. Each game gets a FIFO of orchestration
// jobs: actions enqueue while their caller still holds the game
// mutex, so queue order equals the order actions were applied, and a
// single drainer per game runs the sequences without holding that
// mutex across sends or waits.
type Orchestrator struct {
	hub     *Hub
	history *history.Repository
	logger  *log.Logger
	clock   quartz.Clock
	metrics *Metrics

	// ScheduleAI hands the turn to the AI driver. Wired by the server
	// after construction.
	ScheduleAI func(g *game.Game, seatID int)

	mu      sync.Mutex
	queues  map[string]*gameQueue
	waiters map[waitKey]chan struct{}
}

// NewOrchestrator creates an orchestrator fanning out through hub.
func NewOrchestrator(hub *Hub, hist *history.Repository, logger *log.Logger, clock quartz.Clock, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		hub:     hub,
		history: hist,
		logger:  logger.WithPrefix("orchestrator"),
		clock:   clock,
		metrics: metrics,
		queues:  make(map[string]*gameQueue),
		waiters: make(map[waitKey]chan struct{}),
	}
}

// Dispatch applies one player's action and, when accepted, queues its
// notification sequence. Rejections come back in the result and are
// never broadcast. An unrecoverable turn inconsistency pauses the
// game and disconnects its subscribers.
func (o *Orchestrator) Dispatch(g *game.Game, playerID string, action game.Action, amount int) *game.ActionResult {
	g.Lock()
	res := g.ApplyAction(playerID, action, amount)
	paused := g.Status() == game.StatusPaused
	if res.Repaired || paused {
		o.logger.Error("turn cursor inconsistency",
			"game", g.ID(), "repaired", res.Repaired, "paused", paused,
			"hand", litter.Sdump(g.Hand()))
	}
	if res.OK && !paused {
		o.EnqueueResult(g, res)
	}
	g.Unlock()

	o.metrics.observeAction(res)
	if paused {
		o.hub.CloseGame(g.ID(), string(game.ErrKindActionFailed), "internal error, game paused")
	}
	return res
}

// EnqueueResult queues the notification sequence for an already
// applied action. The caller must hold the game mutex.
func (o *Orchestrator) EnqueueResult(g *game.Game, res *game.ActionResult) {
	o.enqueue(g.ID(), func() { o.runAction(g, res) })
}

// StartNextHand settles leavers, rotates the button and deals. A
// still-live hand refuses, which makes duplicate conclusion
// acknowledgements from multiple clients harmless.
func (o *Orchestrator) StartNextHand(g *game.Game) {
	g.Lock()
	start, err := g.BeginNextHand()
	if err != nil {
		state := buildGameState(g)
		g.Unlock()
		switch {
		case errors.Is(err, game.ErrHandInProgress):
		case errors.Is(err, game.ErrNotEnoughPlayers):
			// The table fell below two funded seats and went back to
			// waiting (or completed, for a tournament).
			o.broadcastState(g.ID(), TypeGameState, state)
		default:
			o.logger.Debug("next hand not started", "game", g.ID(), "error", err)
		}
		return
	}
	o.enqueue(g.ID(), func() { o.runHandStart(g, start) })
	g.Unlock()

	o.metrics.HandsStarted.Inc()
}

// Signal completes the animation wait for one step. Signals with no
// armed waiter are dropped.
func (o *Orchestrator) Signal(gameID, step string) {
	key := waitKey{gameID: gameID, step: step}
	o.mu.Lock()
	ch, ok := o.waiters[key]
	if ok {
		delete(o.waiters, key)
	}
	o.mu.Unlock()

	if ok {
		close(ch)
	}
}

// enqueue appends one job to the game's FIFO and ensures a drainer is
// running.
func (o *Orchestrator) enqueue(gameID string, job func()) {
	o.mu.Lock()
	q := o.queues[gameID]
	if q == nil {
		q = &gameQueue{}
		o.queues[gameID] = q
	}
	q.jobs = append(q.jobs, job)
	if !q.running {
		q.running = true
		go o.drain(gameID, q)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) drain(gameID string, q *gameQueue) {
	for {
		o.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			delete(o.queues, gameID)
			o.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		o.mu.Unlock()

		job()
	}
}

// runAction emits the ordered sequence for one applied action. It
// never runs under the game mutex; state mutations re-acquire it at
// the points the sequence mandates.
func (o *Orchestrator) runAction(g *game.Game, res *game.ActionResult) {
	gameID := g.ID()

	o.broadcast(gameID, TypePlayerAction, PlayerActionData{
		SeatID:    res.Seat,
		Action:    res.Action,
		Amount:    res.Amount,
		Timestamp: time.Now(),
	})
	o.broadcastLog(gameID, res.LogLine)
	o.broadcast(gameID, TypeTurnHighlightRemoved, TurnHighlightRemovedData{SeatID: res.Seat})

	handDone := res.Has(game.EventHandCompleted)
	if res.Has(game.EventBettingRoundCompleted) || handDone {
		o.collectBets(g, handDone)
	}

	switch {
	case handDone:
		o.concludeHand(g, res.PendingStreets, res.Has(game.EventEarlyShowdownTriggered))
	case res.Has(game.EventStreetDealingRequired):
		o.dealNextStreet(g)
		o.promptNextActor(g)
	default:
		o.promptNextActor(g)
	}
}

// runHandStart announces a fresh hand: personalised state carrying
// the new hole cards, the header and blind log lines, then the first
// turn. Blinds that put everyone all-in skip straight to the runout.
func (o *Orchestrator) runHandStart(g *game.Game, start *game.HandStart) {
	gameID := g.ID()

	g.Lock()
	state := buildGameState(g)
	g.Unlock()

	o.broadcastState(gameID, TypeGameState, state)
	for _, line := range start.LogLines {
		o.broadcastLog(gameID, line)
	}

	if start.Showdown {
		o.collectBets(g, true)
		o.concludeHand(g, start.PendingStreets, false)
		return
	}
	o.promptNextActor(g)
}

// collectBets announces the street's bets sliding into the pot, waits
// for the chip animation, then zeroes them in state. Once the hand's
// outcome is decided the uncalled portion of the highest bet goes
// back to its owner first.
func (o *Orchestrator) collectBets(g *game.Game, settle bool) {
	gameID := g.ID()

	g.Lock()
	h := g.Hand()
	if h == nil {
		g.Unlock()
		return
	}
	if settle {
		h.SettleBets()
	}
	var bets []SeatBet
	for _, s := range h.Seats() {
		if s.StreetBet > 0 {
			bets = append(bets, SeatBet{SeatID: s.ID, Amount: s.StreetBet})
		}
	}
	pot := h.PotTotal()
	g.Unlock()

	o.broadcastAndWait(gameID, TypeRoundBetsFinalized, RoundBetsFinalizedData{
		PlayerBets: bets,
		Pot:        pot,
		Timestamp:  time.Now(),
	}, StepRoundBetsFinalized)

	g.Lock()
	if h := g.Hand(); h != nil {
		h.FinalizeStreetBets()
	}
	g.Unlock()
}

// dealNextStreet advances the board by one street and waits for the
// deal animation.
func (o *Orchestrator) dealNextStreet(g *game.Game) {
	gameID := g.ID()

	g.Lock()
	h := g.Hand()
	if h == nil || h.Complete() {
		g.Unlock()
		return
	}
	street, cards, _, ok := h.DealNextStreet()
	var line string
	if ok && len(h.ActionLog) > 0 {
		line = h.ActionLog[len(h.ActionLog)-1].Line
	}
	g.Unlock()
	if !ok {
		return
	}

	o.broadcastLog(gameID, line)
	o.broadcastAndWait(gameID, TypeStreetDealt, StreetDealtData{
		Street:    street,
		Cards:     cards,
		Timestamp: time.Now(),
	}, StreetDealtStep(street))
}

// concludeHand plays the reveal sequence: runout streets one at a
// time, hole cards for a contested showdown, pot resolution, payouts,
// then the closing summary. Clients answer hand_visually_concluded
// with an acknowledgement that deals the next hand.
func (o *Orchestrator) concludeHand(g *game.Game, pending []game.Street, early bool) {
	gameID := g.ID()

	o.broadcast(gameID, TypeShowdownTransition, ShowdownTransitionData{Timestamp: time.Now()})

	for range pending {
		g.Lock()
		h := g.Hand()
		if h == nil {
			g.Unlock()
			return
		}
		street, cards, _, ok := h.DealNextStreet()
		var line string
		if ok && len(h.ActionLog) > 0 {
			line = h.ActionLog[len(h.ActionLog)-1].Line
		}
		g.Unlock()
		if !ok {
			break
		}

		o.broadcastLog(gameID, line)
		o.broadcastAndWait(gameID, TypeStreetDealt, StreetDealtData{
			Street:    street,
			Cards:     cards,
			Timestamp: time.Now(),
		}, StreetDealtStep(street))
	}

	g.Lock()
	conclusion := g.ConcludeHand()
	g.Unlock()
	if conclusion == nil {
		return
	}

	if !early && len(conclusion.Reveals) > 0 {
		var reveal ShowdownHandsRevealedData
		for _, r := range conclusion.Reveals {
			reveal.PlayerHands = append(reveal.PlayerHands, PlayerHand{SeatID: r.Seat, Cards: r.Cards})
		}
		o.broadcast(gameID, TypeShowdownHandsRevealed, reveal)
	}

	var winners PotWinnersDeterminedData
	for _, pr := range conclusion.Results {
		pw := PotWinners{PotID: pr.PotIndex, Amount: pr.Amount}
		for _, id := range pr.Winners {
			pw.Winners = append(pw.Winners, WinnerShare{SeatID: id, HandRank: pr.Description, Share: pr.Shares[id]})
		}
		winners.Pots = append(winners.Pots, pw)
	}
	o.broadcast(gameID, TypePotWinnersDetermined, winners)

	g.Lock()
	h := g.Hand()
	cfg := g.Config()
	var players []PlayerSummary
	var board []deck.Card
	handNumber := 0
	var seats []history.SeatSummary
	var actions []game.LogEntry
	if h != nil {
		h.ApplyPayouts()
		handNumber = h.Number
		board = append([]deck.Card(nil), h.Board...)
		shown := make(map[int][]deck.Card, len(conclusion.Reveals))
		for _, r := range conclusion.Reveals {
			shown[r.Seat] = r.Cards
		}
		for _, s := range h.Seats() {
			players = append(players, PlayerSummary{
				SeatID:      s.ID,
				DisplayName: s.DisplayName,
				Chips:       s.Chips,
				Folded:      s.Status == game.SeatFolded,
			})
			seats = append(seats, history.SeatSummary{
				ID:        s.ID,
				Name:      s.DisplayName,
				Starting:  s.Chips - conclusion.Payouts[s.ID] + s.HandBet,
				Finishing: s.Chips,
				HoleCards: shown[s.ID],
			})
		}
		actions = append(actions, h.ActionLog...)
	}
	state := buildGameState(g)
	g.Unlock()

	o.broadcastState(gameID, TypeChipsDistributed, state)
	for _, line := range conclusion.WinnerLines {
		o.broadcastLog(gameID, line)
	}
	o.broadcast(gameID, TypeHandResult, HandResultData{
		HandID:    conclusion.HandID,
		Winners:   conclusion.WinnerLines,
		Players:   players,
		Board:     board,
		Timestamp: time.Now(),
	})
	o.broadcast(gameID, TypeHandVisuallyConcluded, HandVisuallyConcludedData{Timestamp: time.Now()})

	o.metrics.HandsCompleted.Inc()
	o.recordHistory(history.Record{
		GameID:     gameID,
		HandID:     conclusion.HandID,
		Number:     handNumber,
		Board:      state.CommunityCards,
		FoldWin:    conclusion.FoldWin,
		Table:      cfg.Name,
		Structure:  cfg.Structure,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
		Ante:       cfg.Ante,
		Seats:      seats,
		Actions:    actions,
		Results:    conclusion.Results,
		Payouts:    conclusion.Payouts,
		RakeTotal:  conclusion.RakeTotal,
		LogLines:   state.ActionHistory,
		EndedAt:    time.Now(),
	})

	if o.shouldAutoAdvance(g) {
		o.clock.AfterFunc(autoAdvanceDelay, func() { o.StartNextHand(g) }, "auto_advance")
	}
}

// promptNextActor broadcasts fresh state and drives the seat on turn:
// over the wire for a human, through the driver for an AI.
func (o *Orchestrator) promptNextActor(g *game.Game) {
	gameID := g.ID()

	g.Lock()
	state := buildGameState(g)
	req, seat := buildActionRequest(g)
	g.Unlock()

	o.broadcastState(gameID, TypeGameState, state)
	if req == nil {
		return
	}

	if seat.IsHuman {
		msg, err := NewMessage(TypeActionRequest, req)
		if err != nil {
			o.logger.Error("build action_request", "error", err)
			return
		}
		o.hub.SendToSeat(gameID, req.SeatID, msg)
		return
	}
	if o.ScheduleAI != nil {
		o.ScheduleAI(g, req.SeatID)
	}
}

// buildActionRequest assembles the action_request for the seat on
// turn. Caller holds the game mutex; nil when no action is due.
func buildActionRequest(g *game.Game) (*ActionRequestData, *game.Seat) {
	h := g.Hand()
	if h == nil || h.Complete() {
		return nil, nil
	}
	actor := h.Turn.Current()
	if actor < 0 {
		return nil, nil
	}
	seat := g.SeatByID(actor)
	if seat == nil {
		return nil, nil
	}

	req := &ActionRequestData{
		HandID:    h.ID,
		SeatID:    actor,
		TimeLimit: turnTimeLimit,
		Timestamp: time.Now(),
	}
	for _, va := range h.LegalActions(actor) {
		req.Options = append(req.Options, va.Action)
		switch va.Action {
		case game.Call:
			req.CallAmount = va.Min
		case game.Bet, game.Raise:
			req.MinRaise = va.Min
			req.MaxRaise = va.Max
		}
	}
	return req, seat
}

// broadcastAndWait arms the step's latch, broadcasts, then blocks for
// the acknowledgement or the fallback timer. Games nobody watches
// skip the wait.
func (o *Orchestrator) broadcastAndWait(gameID string, msgType MessageType, payload any, step string) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		o.logger.Error("build message", "type", msgType, "error", err)
		return
	}
	if !o.hub.HasSubscribers(gameID) {
		return
	}

	latch := o.armWait(gameID, step)
	o.hub.Broadcast(gameID, msg)
	o.awaitAck(gameID, step, latch)
}

// armWait installs the latch for one step before its message goes
// out, so an acknowledgement can never race past the wait.
func (o *Orchestrator) armWait(gameID, step string) chan struct{} {
	key := waitKey{gameID: gameID, step: step}
	o.mu.Lock()
	ch, ok := o.waiters[key]
	if !ok {
		ch = make(chan struct{})
		o.waiters[key] = ch
	}
	o.mu.Unlock()
	return ch
}

func (o *Orchestrator) awaitAck(gameID, step string, latch chan struct{}) {
	fallback := make(chan struct{})
	timer := o.clock.AfterFunc(animationWait, func() { close(fallback) }, "animation_wait")
	defer timer.Stop()

	select {
	case <-latch:
	case <-fallback:
		o.metrics.AnimationTimeouts.Inc()
		key := waitKey{gameID: gameID, step: step}
		o.mu.Lock()
		if o.waiters[key] == latch {
			delete(o.waiters, key)
		}
		o.mu.Unlock()
	}
}

// shouldAutoAdvance reports whether the next hand starts on a timer:
// tables with no human seats, or with nobody connected, have no
// client to acknowledge the conclusion.
func (o *Orchestrator) shouldAutoAdvance(g *game.Game) bool {
	if !o.hub.HasSubscribers(g.ID()) {
		return true
	}
	g.Lock()
	defer g.Unlock()
	for _, s := range g.Seats() {
		if s.IsHuman && s.Status != game.SeatOut {
			return false
		}
	}
	return true
}

func (o *Orchestrator) recordHistory(rec history.Record) {
	if o.history == nil {
		return
	}
	o.history.Append(rec)
}

// broadcastState fans a snapshot out with per-recipient hole-card
// redaction.
func (o *Orchestrator) broadcastState(gameID string, msgType MessageType, state *GameState) {
	o.hub.BroadcastFunc(gameID, msgType, func(seatID int) (*Message, error) {
		return NewMessage(msgType, state.Redact(seatID))
	})
}

func (o *Orchestrator) broadcast(gameID string, msgType MessageType, payload any) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		o.logger.Error("build message", "type", msgType, "error", err)
		return
	}
	o.hub.Broadcast(gameID, msg)
}

func (o *Orchestrator) broadcastLog(gameID, line string) {
	if line == "" {
		return
	}
	o.broadcast(gameID, TypeActionLog, ActionLogData{Text: line, Timestamp: time.Now()})
}
