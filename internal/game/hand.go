package game

import (
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/evaluator"
	"github.com/lox/holdemd/internal/gameid"
)

// Hand is the state machine for a single hand of hold'em. It owns the
// deck, the board, the betting state and the turn controller, and it
// is the only code that advances any of them. Callers hold the game
// mutex around every method.
type Hand struct {
	ID     string
	Number int

	Street Street
	Board  []deck.Card

	CurrentBet int
	MinRaise   int

	Button     int
	SmallBlind int
	BigBlind   int
	Ante       int
	Structure  Structure

	Turn *TurnController

	ActionLog []LogEntry

	StartedAt time.Time

	seats     []*Seat
	order     []int
	buttonIdx int
	deck      *deck.Deck

	// raiseBarred seats already closed their action this street and
	// then faced a short all-in: they may call or fold but not raise.
	raiseBarred map[int]bool

	pendingStreets []Street
	runout         bool
	complete       bool
	broken         bool

	conclusion *Conclusion
	paid       bool
}

// HandStart describes a freshly dealt hand for notification fan-out.
type HandStart struct {
	HandID         string
	Number         int
	Button         int
	SmallBlindSeat int
	BigBlindSeat   int
	FirstToAct     int
	LogLines       []string

	// Showdown is set when blinds and antes put every seat all-in and
	// the whole board runs out with no betting at all.
	Showdown       bool
	PendingStreets []Street
}

type handConfig struct {
	Number     int
	Button     int
	SmallBlind int
	BigBlind   int
	Ante       int
	Structure  Structure
}

// startHand deals a new hand over the given seats. Seats arrive in
// clockwise table order, already filtered to those funded and dealt
// in, with cfg.Button naming one of them.
func startHand(seats []*Seat, d *deck.Deck, cfg handConfig) (*Hand, *HandStart) {
	h := &Hand{
		ID:          gameid.New(),
		Number:      cfg.Number,
		Street:      Preflop,
		CurrentBet:  cfg.BigBlind,
		MinRaise:    cfg.BigBlind,
		Button:      cfg.Button,
		SmallBlind:  cfg.SmallBlind,
		BigBlind:    cfg.BigBlind,
		Ante:        cfg.Ante,
		Structure:   cfg.Structure,
		StartedAt:   time.Now(),
		seats:       seats,
		deck:        d,
		raiseBarred: make(map[int]bool),
	}

	h.order = make([]int, len(seats))
	for i, s := range seats {
		s.Status = SeatActive
		s.HoleCards = nil
		s.StreetBet = 0
		s.HandBet = 0
		s.Position = i
		h.order[i] = s.ID
		if s.ID == cfg.Button {
			h.buttonIdx = i
		}
	}
	h.Turn = NewTurnController(h.order)

	h.log(-1, "", 0, logHandHeader(cfg.Number))
	h.postAntes()
	sb, bb := h.postBlinds()
	h.dealHoleCards()

	first := h.seedPreflop(bb)

	start := &HandStart{
		HandID:         h.ID,
		Number:         h.Number,
		Button:         h.Button,
		SmallBlindSeat: sb,
		BigBlindSeat:   bb,
		FirstToAct:     first,
	}
	for _, e := range h.ActionLog {
		start.LogLines = append(start.LogLines, e.Line)
	}
	if first == -1 {
		// Blinds and antes covered every stack.
		start.Showdown = true
		h.runout = true
		h.complete = true
		h.pendingStreets = []Street{Flop, Turn, River}
		start.PendingStreets = append([]Street(nil), h.pendingStreets...)
	}
	return h, start
}

func (h *Hand) postAntes() {
	if h.Ante <= 0 {
		return
	}
	n := len(h.seats)
	for i := 0; i < n; i++ {
		s := h.seats[(h.buttonIdx+1+i)%n]
		paid := min(h.Ante, s.Chips)
		if paid == 0 {
			continue
		}
		// Antes are dead money: they join the pot without counting
		// toward the street's bet.
		s.Chips -= paid
		s.HandBet += paid
		if s.Chips == 0 {
			s.Status = SeatAllIn
		}
		h.log(s.ID, "ante", paid, logAnte(s.DisplayName, paid))
	}
}

func (h *Hand) postBlinds() (sbSeat, bbSeat int) {
	n := len(h.seats)
	var sb, bb *Seat
	if n == 2 {
		// Heads-up the button posts the small blind.
		sb = h.seats[h.buttonIdx]
		bb = h.seats[(h.buttonIdx+1)%n]
	} else {
		sb = h.seats[(h.buttonIdx+1)%n]
		bb = h.seats[(h.buttonIdx+2)%n]
	}
	if paid := sb.commit(min(h.SmallBlind, sb.Chips)); paid > 0 {
		h.log(sb.ID, "small_blind", paid, logSmallBlind(sb.DisplayName, paid))
	}
	if paid := bb.commit(min(h.BigBlind, bb.Chips)); paid > 0 {
		h.log(bb.ID, "big_blind", paid, logBigBlind(bb.DisplayName, paid))
	}
	return sb.ID, bb.ID
}

func (h *Hand) dealHoleCards() {
	n := len(h.seats)
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < n; i++ {
			s := h.seats[(h.buttonIdx+1+i)%n]
			card, _ := h.deck.Deal()
			s.HoleCards = append(s.HoleCards, card)
		}
	}
}

// seedPreflop seeds the turn controller for the first betting round
// and returns the first actor, or -1 when nobody can bet.
func (h *Hand) seedPreflop(bbSeat int) int {
	members := h.actionable()
	if len(members) == 0 {
		return -1
	}

	var from int
	if len(h.seats) == 2 {
		// Heads-up the button acts first preflop.
		from = h.buttonIdx
	} else {
		from = (h.indexOf(bbSeat) + 1) % len(h.seats)
	}
	first := h.firstActionableFrom(from)
	if first == -1 {
		return -1
	}
	h.Turn.Seed(members, first)
	return first
}

// actionable returns the seats that can still make betting decisions.
func (h *Hand) actionable() []int {
	var out []int
	for _, s := range h.seats {
		if s.CanAct() {
			out = append(out, s.ID)
		}
	}
	return out
}

// firstActionableFrom scans clockwise from a seat index for the first
// seat that can act.
func (h *Hand) firstActionableFrom(idx int) int {
	n := len(h.seats)
	for i := 0; i < n; i++ {
		s := h.seats[(idx+i)%n]
		if s.CanAct() {
			return s.ID
		}
	}
	return -1
}

func (h *Hand) seat(id int) *Seat {
	for _, s := range h.seats {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (h *Hand) indexOf(id int) int {
	for i, s := range h.seats {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Seats returns the seats dealt into this hand in clockwise order.
func (h *Hand) Seats() []*Seat {
	return h.seats
}

// Complete reports whether the hand takes no further actions.
func (h *Hand) Complete() bool {
	return h.complete
}

// Broken reports an unrecoverable turn-state inconsistency; the game
// pauses rather than guess at an actor.
func (h *Hand) Broken() bool {
	return h.broken
}

// Concluded returns the conclusion once computed, nil before.
func (h *Hand) Concluded() *Conclusion {
	return h.conclusion
}

// Paid reports whether payouts have been applied to stacks.
func (h *Hand) Paid() bool {
	return h.paid
}

func (h *Hand) inHandCount() int {
	n := 0
	for _, s := range h.seats {
		if s.InHand() {
			n++
		}
	}
	return n
}

// liveBettors counts seats that could still put chips in.
func (h *Hand) liveBettors() int {
	n := 0
	for _, s := range h.seats {
		if s.CanAct() {
			n++
		}
	}
	return n
}

// PotTotal is every chip committed this hand, live street bets
// included.
func (h *Hand) PotTotal() int {
	total := 0
	for _, s := range h.seats {
		total += s.HandBet
	}
	return total
}

// Pots builds the display pots from finalized contributions, leaving
// current street bets out: during a street the live bets ride on the
// felt, not in the pot.
func (h *Hand) Pots() []Pot {
	shadow := make([]Seat, len(h.seats))
	ptrs := make([]*Seat, len(h.seats))
	for i, s := range h.seats {
		shadow[i] = *s
		shadow[i].HandBet = s.HandBet - s.StreetBet
		ptrs[i] = &shadow[i]
	}
	return BuildPots(ptrs)
}

func (h *Hand) log(seat int, action string, amount int, line string) {
	h.ActionLog = append(h.ActionLog, LogEntry{
		Seat:      seat,
		Action:    action,
		Amount:    amount,
		Street:    h.Street,
		Line:      line,
		Timestamp: time.Now(),
	})
}

// LegalActions computes the actions open to a seat with their amount
// bounds, applying the betting-structure overlay. Nil when the seat
// cannot act.
func (h *Hand) LegalActions(seatID int) []ValidAction {
	s := h.seat(seatID)
	if s == nil || !s.CanAct() || h.complete {
		return nil
	}

	toCall := h.CurrentBet - s.StreetBet
	maxTotal := s.StreetBet + s.Chips

	actions := []ValidAction{{Action: Fold}}

	if toCall <= 0 {
		actions = append(actions, ValidAction{Action: Check})
	} else {
		callAmt := min(toCall, s.Chips)
		actions = append(actions, ValidAction{Action: Call, Min: callAmt, Max: callAmt})
	}

	if h.raiseBarred[seatID] {
		if maxTotal <= h.CurrentBet {
			actions = append(actions, ValidAction{Action: AllIn, Min: s.Chips, Max: s.Chips})
		}
		return actions
	}

	if h.CurrentBet == 0 {
		minBet := min(h.BigBlind, maxTotal)
		maxBet := h.betCap(s)
		if h.Structure == FixedLimit {
			fixed := min(fixedBetSize(h.Street, h.BigBlind), maxTotal)
			minBet, maxBet = fixed, fixed
		}
		if maxBet >= minBet && maxBet > 0 {
			actions = append(actions, ValidAction{Action: Bet, Min: minBet, Max: maxBet})
		}
	} else if maxTotal > h.CurrentBet {
		minRaiseTo := min(h.CurrentBet+h.MinRaise, maxTotal)
		maxRaiseTo := h.raiseCap(s)
		if h.Structure == FixedLimit {
			fixed := min(h.CurrentBet+fixedBetSize(h.Street, h.BigBlind), maxTotal)
			minRaiseTo, maxRaiseTo = fixed, fixed
		}
		if maxRaiseTo >= minRaiseTo {
			actions = append(actions, ValidAction{Action: Raise, Min: minRaiseTo, Max: maxRaiseTo})
		}
	}

	// The shove is a call when the stack cannot cover the price, and
	// aggression otherwise; aggression must fit the structure's cap.
	if maxTotal <= h.CurrentBet || maxTotal <= h.allInCap(s) {
		actions = append(actions, ValidAction{Action: AllIn, Min: s.Chips, Max: s.Chips})
	}

	return actions
}

// allInCap is the largest street total a shove may reach under the
// betting structure. No limit never caps it.
func (h *Hand) allInCap(s *Seat) int {
	if h.CurrentBet > 0 {
		return h.raiseCap(s)
	}
	return h.betCap(s)
}

// betCap is the largest street total a seat may open-bet.
func (h *Hand) betCap(s *Seat) int {
	maxTotal := s.StreetBet + s.Chips
	switch h.Structure {
	case PotLimit:
		limit := max(h.PotTotal(), h.BigBlind)
		return min(limit, maxTotal)
	case FixedLimit:
		return min(fixedBetSize(h.Street, h.BigBlind), maxTotal)
	default:
		return maxTotal
	}
}

// raiseCap is the largest street total a seat may raise to. Pot limit
// caps it at the call amount plus the pot after that call.
func (h *Hand) raiseCap(s *Seat) int {
	maxTotal := s.StreetBet + s.Chips
	switch h.Structure {
	case PotLimit:
		toCall := h.CurrentBet - s.StreetBet
		return min(h.CurrentBet+h.PotTotal()+toCall, maxTotal)
	case FixedLimit:
		return min(h.CurrentBet+fixedBetSize(h.Street, h.BigBlind), maxTotal)
	default:
		return maxTotal
	}
}

// Apply validates one player action against the current turn and
// betting state, commits it, and reports what must happen next.
// Rejections come back as failed results, never Go errors, and leave
// the hand untouched.
func (h *Hand) Apply(seatID int, action Action, amount int) *ActionResult {
	if h.broken {
		return reject(seatID, action, ErrKindActionFailed, "game is paused")
	}
	if h.complete {
		return reject(seatID, action, ErrKindActionFailed, "hand is not accepting actions")
	}

	s := h.seat(seatID)
	if s == nil {
		return reject(seatID, action, ErrKindPlayerNotFound, "seat is not in this hand")
	}

	// Between the round closing and the next street being dealt,
	// nobody is owed an action. Late or duplicate submissions land
	// here.
	if h.Turn.Remaining() == 0 {
		return reject(seatID, action, ErrKindActionFailed, "betting round is closed")
	}

	// The cursor must point at a seat that is owed an action. Repair
	// by advancing when it has drifted.
	repaired := false
	if cur := h.Turn.Current(); cur == -1 || !h.Turn.Contains(cur) {
		if _, ok := h.Turn.FixCursor(); !ok {
			h.broken = true
			return reject(seatID, action, ErrKindActionFailed, "turn state unrecoverable")
		}
		repaired = true
	}

	if h.Turn.Current() != seatID {
		if h.Turn.Contains(seatID) {
			return reject(seatID, action, ErrKindNotYourTurn, "not your turn to act")
		}
		// Covers duplicate submissions: the seat's action this street
		// is already closed.
		return reject(seatID, action, ErrKindActionFailed, "no action pending for this seat")
	}

	res := &ActionResult{
		OK:        true,
		Seat:      seatID,
		Action:    action,
		Animation: AnimNone,
		NextSeat:  -1,
		Repaired:  repaired,
	}

	toCall := h.CurrentBet - s.StreetBet

	switch action {
	case Fold:
		s.Status = SeatFolded
		h.Turn.Consume(seatID)
		res.LogLine = logFold(s.DisplayName)

	case Check:
		if toCall > 0 {
			return reject(seatID, action, ErrKindInvalidAction, "cannot check facing a bet")
		}
		h.Turn.Consume(seatID)
		res.LogLine = logCheck(s.DisplayName)

	case Call:
		if toCall <= 0 {
			return reject(seatID, action, ErrKindInvalidAction, "nothing to call")
		}
		paid := s.commit(toCall)
		h.Turn.Consume(seatID)
		res.Amount = paid
		if s.Status == SeatAllIn {
			res.LogLine = logAllIn(s.DisplayName, paid, s.HandBet)
		} else {
			res.LogLine = logCall(s.DisplayName, paid)
		}

	case Bet:
		if h.CurrentBet != 0 {
			return reject(seatID, action, ErrKindInvalidAction, "cannot bet over a live bet, raise instead")
		}
		bounds, ok := h.boundsFor(seatID, Bet)
		if !ok {
			return reject(seatID, action, ErrKindInvalidAction, "no bet available")
		}
		maxTotal := s.StreetBet + s.Chips
		if amount > bounds.Max || (amount < bounds.Min && amount != maxTotal) {
			return reject(seatID, action, ErrKindInvalidAction, "bet amount out of bounds")
		}
		paid := s.commit(amount - s.StreetBet)
		res.Amount = s.StreetBet
		h.applyAggression(s, res, paid)

	case Raise:
		if h.CurrentBet == 0 {
			return reject(seatID, action, ErrKindInvalidAction, "nothing to raise, bet instead")
		}
		if h.raiseBarred[seatID] {
			return reject(seatID, action, ErrKindInvalidAction, "raising is closed, call or fold")
		}
		bounds, ok := h.boundsFor(seatID, Raise)
		if !ok {
			return reject(seatID, action, ErrKindInvalidAction, "no raise available")
		}
		if amount <= h.CurrentBet {
			return reject(seatID, action, ErrKindInvalidAction, "raise must exceed the current bet")
		}
		maxTotal := s.StreetBet + s.Chips
		if amount > bounds.Max || (amount < bounds.Min && amount != maxTotal) {
			return reject(seatID, action, ErrKindInvalidAction, "raise amount out of bounds")
		}
		paid := s.commit(amount - s.StreetBet)
		res.Amount = s.StreetBet
		h.applyAggression(s, res, paid)

	case AllIn:
		maxTotal := s.StreetBet + s.Chips
		if maxTotal <= h.CurrentBet {
			// The stack cannot cover the price: the shove is a call.
			paid := s.commit(s.Chips)
			h.Turn.Consume(seatID)
			res.Amount = paid
			res.LogLine = logAllIn(s.DisplayName, paid, s.HandBet)
			break
		}
		if h.raiseBarred[seatID] {
			return reject(seatID, action, ErrKindInvalidAction, "raising is closed, call or fold")
		}
		if maxTotal > h.allInCap(s) {
			return reject(seatID, action, ErrKindInvalidAction, "all-in exceeds the betting limit")
		}
		paid := s.commit(s.Chips)
		res.Amount = paid
		h.applyAggression(s, res, paid)

	default:
		return reject(seatID, action, ErrKindInvalidAction, "unknown action")
	}

	h.log(seatID, action.String(), res.Amount, res.LogLine)
	res.StreetBet = s.StreetBet
	res.HandBet = s.HandBet
	res.Events = append(res.Events, EventPlayerActionProcessed)

	// A fold down to one seat ends the hand immediately, however many
	// seats were still owed an action.
	if action == Fold && h.inHandCount() <= 1 {
		h.complete = true
		res.Events = append(res.Events, EventEarlyShowdownTriggered, EventHandCompleted)
		res.Animation = AnimHandConclusion
		return res
	}

	return h.advanceOrClose(res)
}

// advanceOrClose moves the turn to the next actor, or closes the
// betting round and decides what the street end means for the hand.
func (h *Hand) advanceOrClose(res *ActionResult) *ActionResult {
	next, more := h.Turn.Next()
	if more {
		res.NextSeat = next
		return res
	}

	res.Events = append(res.Events, EventBettingRoundCompleted)

	switch {
	case h.Street == River:
		h.complete = true
		res.Events = append(res.Events, EventShowdownTriggered, EventHandCompleted)
		res.Animation = AnimShowdownReveal

	case h.liveBettors() <= 1:
		// Fewer than two seats can still bet: deal the rest of the
		// board with no betting rounds.
		h.complete = true
		h.runout = true
		for st := h.Street + 1; st <= River; st++ {
			h.pendingStreets = append(h.pendingStreets, st)
		}
		res.PendingStreets = append([]Street(nil), h.pendingStreets...)
		res.Events = append(res.Events, EventShowdownTriggered, EventHandCompleted)
		res.Animation = AnimStreetDealing

	default:
		res.Events = append(res.Events, EventStreetDealingRequired)
		res.Animation = AnimChipCollection
	}

	return res
}

// ForceFold folds a seat out of turn. It backs seat removal and admin
// eviction, not disconnects: a disconnected seat keeps its turn. Nil
// when the seat holds no foldable cards (all-in hands play on).
func (h *Hand) ForceFold(seatID int) *ActionResult {
	if h.complete || h.broken {
		return nil
	}
	s := h.seat(seatID)
	if s == nil || s.Status != SeatActive {
		return nil
	}

	wasCurrent := h.Turn.Current() == seatID
	s.Status = SeatFolded
	h.Turn.Consume(seatID)

	res := &ActionResult{
		OK:        true,
		Seat:      seatID,
		Action:    Fold,
		Animation: AnimNone,
		NextSeat:  -1,
		LogLine:   logFold(s.DisplayName),
	}
	h.log(seatID, "fold", 0, res.LogLine)
	res.StreetBet = s.StreetBet
	res.HandBet = s.HandBet
	res.Events = append(res.Events, EventPlayerActionProcessed)

	if h.inHandCount() <= 1 {
		h.complete = true
		res.Events = append(res.Events, EventEarlyShowdownTriggered, EventHandCompleted)
		res.Animation = AnimHandConclusion
		return res
	}

	if !wasCurrent {
		// The cursor stays where it was; only the to-act set shrank.
		res.NextSeat = h.Turn.Current()
		return res
	}
	return h.advanceOrClose(res)
}

// boundsFor finds the ValidAction entry for one action kind.
func (h *Hand) boundsFor(seatID int, action Action) (ValidAction, bool) {
	for _, va := range h.LegalActions(seatID) {
		if va.Action == action {
			return va, true
		}
	}
	return ValidAction{}, false
}

// applyAggression updates betting state after a bet or raise. A full
// raise (increment at least the previous min raise) resets the raise
// unit and restores everyone's raising rights. A short all-in moves
// the price without reopening raises: seats whose action had already
// closed this street come back in for a call or fold only.
func (h *Hand) applyAggression(s *Seat, res *ActionResult, paid int) {
	increment := s.StreetBet - h.CurrentBet
	h.CurrentBet = s.StreetBet

	if increment >= h.MinRaise {
		h.MinRaise = increment
		h.raiseBarred = make(map[int]bool)
	} else {
		for _, other := range h.seats {
			if other.ID != s.ID && other.CanAct() && !h.Turn.Contains(other.ID) {
				h.raiseBarred[other.ID] = true
			}
		}
	}

	var owing []int
	for _, other := range h.seats {
		if other.ID != s.ID && other.CanAct() {
			owing = append(owing, other.ID)
		}
	}
	h.Turn.Reopen(s.ID, owing)

	switch {
	case s.Status == SeatAllIn:
		res.LogLine = logAllIn(s.DisplayName, paid, s.HandBet)
	case res.Action == Bet:
		res.LogLine = logBet(s.DisplayName, s.StreetBet)
	default:
		res.LogLine = logRaise(s.DisplayName, s.StreetBet)
	}
}

// FinalizeStreetBets zeroes street bets once clients have watched them
// slide into the pot. Contributions already live in each seat's
// HandBet; the chips just stop being displayed on the felt.
func (h *Hand) FinalizeStreetBets() {
	for _, s := range h.seats {
		s.StreetBet = 0
	}
}

// DealNextStreet deals the next street, normal or runout, and logs it.
// A normal deal resets the betting round and reseeds the turn
// controller; the returned actor is -1 during a runout.
func (h *Hand) DealNextStreet() (Street, []deck.Card, int, bool) {
	var next Street
	if h.runout {
		if len(h.pendingStreets) == 0 {
			return 0, nil, -1, false
		}
		next = h.pendingStreets[0]
		h.pendingStreets = h.pendingStreets[1:]
	} else {
		if h.complete || h.Street >= River {
			return 0, nil, -1, false
		}
		next = h.Street + 1
	}

	h.FinalizeStreetBets()
	cards := h.deck.DealN(next.cardsFor())
	h.Board = append(h.Board, cards...)
	h.Street = next
	h.log(-1, "", 0, logDealing(next, cards))

	if h.runout {
		return next, cards, -1, true
	}

	h.CurrentBet = 0
	h.MinRaise = h.BigBlind
	h.raiseBarred = make(map[int]bool)

	members := h.actionable()
	first := h.firstActionableFrom((h.buttonIdx + 1) % len(h.seats))
	h.Turn.Seed(members, first)
	return next, cards, first, true
}

// PendingStreets returns the streets still owed for an all-in runout.
func (h *Hand) PendingStreets() []Street {
	return append([]Street(nil), h.pendingStreets...)
}

// SettleBets refunds the uncalled portion of the highest bet, if any.
// Runs once the hand's outcome is decided, before clients watch the
// bets slide into the pot.
func (h *Hand) SettleBets() (seatID, amount int) {
	return returnUncalled(h.seats)
}

// Conclude computes the hand's outcome: pots, reveals, winners, rake
// and payouts. It does not touch stacks; ApplyPayouts does that when
// the orchestrated reveal reaches the award step.
func (h *Hand) Conclude(rake RakeConfig, cash bool) *Conclusion {
	if h.conclusion != nil {
		return h.conclusion
	}
	h.complete = true

	// No-op when SettleBets already ran.
	returnUncalled(h.seats)

	c := &Conclusion{
		HandID:  h.ID,
		Payouts: make(map[int]int),
	}
	c.Pots = BuildPots(h.seats)

	clockwise := make([]int, 0, len(h.seats))
	n := len(h.seats)
	for i := 1; i <= n; i++ {
		clockwise = append(clockwise, h.seats[(h.buttonIdx+i)%n].ID)
	}

	if h.inHandCount() <= 1 {
		c.FoldWin = true
		var winner *Seat
		for _, s := range h.seats {
			if s.InHand() {
				winner = s
				break
			}
		}
		if winner == nil {
			h.conclusion = c
			return c
		}
		for i, pot := range c.Pots {
			rakeTaken := 0
			if cash {
				rakeTaken = rake.Take(pot.Amount, h.BigBlind)
			}
			awarded := pot.Amount - rakeTaken
			c.RakeTotal += rakeTaken
			c.Payouts[winner.ID] += awarded
			c.Results = append(c.Results, PotResult{
				PotIndex: i,
				Amount:   awarded,
				Rake:     rakeTaken,
				Winners:  []int{winner.ID},
				Shares:   map[int]int{winner.ID: awarded},
			})
		}
		c.WinnerLines = append(c.WinnerLines, logWinner(winner.DisplayName, c.Payouts[winner.ID], ""))
		h.conclusion = c
		return c
	}

	// Showdown: evaluate every live seat over the full board.
	values := make(map[int]evaluator.HandValue)
	for _, s := range h.seats {
		if !s.InHand() {
			continue
		}
		v := evaluator.MustEvaluate(s.HoleCards, h.Board)
		values[s.ID] = v
		c.Reveals = append(c.Reveals, Reveal{
			Seat:        s.ID,
			Cards:       append([]deck.Card(nil), s.HoleCards...),
			Description: v.Description,
			Best:        v.Best,
		})
	}

	for i, pot := range c.Pots {
		var winners []int
		var best evaluator.HandValue
		for _, id := range pot.Eligible {
			v, ok := values[id]
			if !ok {
				continue
			}
			switch {
			case len(winners) == 0 || v.Compare(best) > 0:
				best = v
				winners = []int{id}
			case v.Compare(best) == 0:
				winners = append(winners, id)
			}
		}
		if len(winners) == 0 {
			continue
		}

		rakeTaken := 0
		if cash {
			rakeTaken = rake.Take(pot.Amount, h.BigBlind)
		}
		awarded := pot.Amount - rakeTaken
		c.RakeTotal += rakeTaken

		shares := splitPot(awarded, winners, clockwise)
		for id, share := range shares {
			c.Payouts[id] += share
		}
		c.Results = append(c.Results, PotResult{
			PotIndex:    i,
			Amount:      awarded,
			Rake:        rakeTaken,
			Winners:     winners,
			Description: best.Description,
			Shares:      shares,
		})
		for _, id := range winners {
			if seat := h.seat(id); seat != nil {
				c.WinnerLines = append(c.WinnerLines, logWinner(seat.DisplayName, shares[id], best.Description))
			}
		}
	}

	h.conclusion = c
	return c
}

// ApplyPayouts moves the concluded pots into the winners' stacks and
// appends the winner lines to the action log. Idempotent.
func (h *Hand) ApplyPayouts() {
	if h.conclusion == nil || h.paid {
		return
	}
	for id, amount := range h.conclusion.Payouts {
		if s := h.seat(id); s != nil {
			s.Chips += amount
		}
	}
	for _, line := range h.conclusion.WinnerLines {
		h.log(-1, "", 0, line)
	}
	h.paid = true
}

// Conclusion is the computed outcome of a hand.
type Conclusion struct {
	HandID  string `json:"hand_id"`
	FoldWin bool   `json:"fold_win"`

	// Pots are the pre-rake pots in main-then-side order.
	Pots []Pot `json:"pots"`

	Reveals []Reveal    `json:"reveals,omitempty"`
	Results []PotResult `json:"results"`

	// Payouts maps seat ID to post-rake chips won.
	Payouts map[int]int `json:"payouts"`

	RakeTotal   int      `json:"rake_total"`
	WinnerLines []string `json:"-"`
}

// PotResult is the settlement of a single pot.
type PotResult struct {
	PotIndex    int    `json:"pot_index"`
	Amount      int    `json:"amount"`
	Rake        int    `json:"rake"`
	Winners     []int  `json:"winners"`
	Description string `json:"description,omitempty"`

	// Shares is each winner's cut after odd-chip distribution.
	Shares map[int]int `json:"shares"`
}

// Reveal is one seat's cards shown at showdown.
type Reveal struct {
	Seat        int         `json:"seat_id"`
	Cards       []deck.Card `json:"hole_cards"`
	Description string      `json:"description"`
	Best        []deck.Card `json:"best_hand,omitempty"`
}
