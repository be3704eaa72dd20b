package game

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/lox/holdemd/internal/deck"
)

// Status is the game lifecycle state.
type Status int

const (
	StatusWaiting Status = iota
	StatusActive
	StatusCompleted
	StatusPaused
)

func (s Status) String() string {
	return [...]string{"waiting", "active", "completed", "paused"}[s]
}

// MarshalText encodes the status as its wire string.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status from its wire string.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "waiting":
		*s = StatusWaiting
	case "active":
		*s = StatusActive
	case "completed":
		*s = StatusCompleted
	case "paused":
		*s = StatusPaused
	default:
		return fmt.Errorf("unknown game status %q", text)
	}
	return nil
}

// Mode separates cash games, where seats buy in and rake applies, from
// tournaments, where everyone starts with the same stack.
type Mode int

const (
	ModeCash Mode = iota
	ModeTournament
)

func (m Mode) String() string {
	return [...]string{"cash", "tournament"}[m]
}

// MarshalText encodes the mode as its wire string.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode from its wire string.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode decodes a mode from its wire string.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "cash", "":
		return ModeCash, nil
	case "tournament":
		return ModeTournament, nil
	default:
		return ModeCash, fmt.Errorf("unknown game mode %q", s)
	}
}

var (
	ErrGameFull         = errors.New("table is full")
	ErrAlreadySeated    = errors.New("player already seated")
	ErrNotSeated        = errors.New("player not seated at this game")
	ErrNotEnoughPlayers = errors.New("need at least two funded seats")
	ErrHandInProgress   = errors.New("hand in progress")
	ErrGameOver         = errors.New("game is over")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrBuyInRange       = errors.New("buy-in outside table range")
)

// Config is the immutable table configuration chosen at creation.
type Config struct {
	Name       string    `json:"name"`
	Mode       Mode      `json:"mode"`
	Structure  Structure `json:"structure"`
	SmallBlind int       `json:"small_blind"`
	BigBlind   int       `json:"big_blind"`
	Ante       int       `json:"ante"`
	MaxSeats   int       `json:"max_seats"`

	// Cash-game buy-in bounds, in chips.
	MinBuyIn int `json:"min_buy_in,omitempty"`
	MaxBuyIn int `json:"max_buy_in,omitempty"`

	// Tournament starting stack.
	StartingChips int `json:"starting_chips,omitempty"`

	Rake RakeConfig `json:"rake"`
}

// Normalize fills defaults and validates the configuration.
func (c *Config) Normalize() error {
	if c.BigBlind <= 0 {
		return errors.New("big blind must be positive")
	}
	if c.SmallBlind <= 0 {
		c.SmallBlind = c.BigBlind / 2
	}
	if c.SmallBlind > c.BigBlind {
		return errors.New("small blind exceeds big blind")
	}
	if c.Ante < 0 {
		return errors.New("ante cannot be negative")
	}
	if c.MaxSeats == 0 {
		c.MaxSeats = 9
	}
	if c.MaxSeats < 2 || c.MaxSeats > 10 {
		return fmt.Errorf("max seats %d outside 2..10", c.MaxSeats)
	}
	switch c.Mode {
	case ModeCash:
		if c.MinBuyIn == 0 {
			c.MinBuyIn = 20 * c.BigBlind
		}
		if c.MaxBuyIn == 0 {
			c.MaxBuyIn = 200 * c.BigBlind
		}
		if c.MinBuyIn > c.MaxBuyIn {
			return errors.New("min buy-in exceeds max buy-in")
		}
	case ModeTournament:
		if c.StartingChips == 0 {
			c.StartingChips = 100 * c.BigBlind
		}
	}
	return nil
}

// Game is one poker table: its seats, lifecycle status and the hand in
// flight. All methods except the identity accessors require the
// caller to hold the game's lock; the server composes multi-step
// sequences under one critical section and sends outside it.
type Game struct {
	id        string
	cfg       Config
	creatorID string
	createdAt time.Time

	mu sync.Mutex

	status        Status
	seats         []*Seat
	button        int
	handCount     int
	hand          *Hand
	pendingLeaves map[int]bool

	newDeck func() *deck.Deck
}

// Option customizes a game at construction.
type Option func(*Game)

// WithRand makes shuffles deterministic for tests.
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) {
		g.newDeck = func() *deck.Deck {
			d := deck.NewWithRand(rng)
			d.Shuffle()
			return d
		}
	}
}

// WithDeckFunc supplies the deck for each hand, for tests that need
// exact cards.
func WithDeckFunc(f func() *deck.Deck) Option {
	return func(g *Game) {
		g.newDeck = f
	}
}

// NewGame creates a table from a normalized config. The creator is
// the only player allowed to start it.
func NewGame(id string, cfg Config, creatorID string, opts ...Option) *Game {
	g := &Game{
		id:            id,
		cfg:           cfg,
		creatorID:     creatorID,
		createdAt:     time.Now(),
		status:        StatusWaiting,
		button:        -1,
		pendingLeaves: make(map[int]bool),
	}
	g.newDeck = func() *deck.Deck {
		d := deck.New()
		d.Shuffle()
		return d
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Lock acquires the per-game mutex.
func (g *Game) Lock() { g.mu.Lock() }

// Unlock releases the per-game mutex.
func (g *Game) Unlock() { g.mu.Unlock() }

// ID returns the game's identifier. Safe without the lock.
func (g *Game) ID() string { return g.id }

// Config returns the table configuration. Safe without the lock.
func (g *Game) Config() Config { return g.cfg }

// CreatorID returns the creating player. Safe without the lock.
func (g *Game) CreatorID() string { return g.creatorID }

// CreatedAt returns the creation time. Safe without the lock.
func (g *Game) CreatedAt() time.Time { return g.createdAt }

// Status returns the lifecycle state.
func (g *Game) Status() Status { return g.status }

// Seats returns the seats in table order.
func (g *Game) Seats() []*Seat { return g.seats }

// Hand returns the hand in flight, nil between hands.
func (g *Game) Hand() *Hand { return g.hand }

// HandCount returns how many hands have been dealt.
func (g *Game) HandCount() int { return g.handCount }

// Button returns the current button seat, -1 before the first hand.
func (g *Game) Button() int { return g.button }

// SeatByPlayer finds the seat a player occupies, nil if unseated.
func (g *Game) SeatByPlayer(playerID string) *Seat {
	for _, s := range g.seats {
		if s.PlayerID == playerID && s.Status != SeatOut {
			return s
		}
	}
	return nil
}

// SeatByID finds a seat by its stable ID.
func (g *Game) SeatByID(id int) *Seat {
	for _, s := range g.seats {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// AddSeat seats a player. New seats always start WAITING and are
// dealt in at the next hand start, so a join during a live hand never
// perturbs it. Cash games validate the buy-in; tournaments issue the
// starting stack and close their doors once play begins.
func (g *Game) AddSeat(playerID, displayName string, buyIn int, isHuman bool) (*Seat, error) {
	if g.status == StatusCompleted {
		return nil, ErrGameOver
	}
	if g.SeatByPlayer(playerID) != nil {
		return nil, ErrAlreadySeated
	}
	occupied := 0
	for _, s := range g.seats {
		if s.Status != SeatOut {
			occupied++
		}
	}
	if occupied >= g.cfg.MaxSeats {
		return nil, ErrGameFull
	}

	chips := buyIn
	switch g.cfg.Mode {
	case ModeCash:
		if buyIn < g.cfg.MinBuyIn || buyIn > g.cfg.MaxBuyIn {
			return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrBuyInRange, buyIn, g.cfg.MinBuyIn, g.cfg.MaxBuyIn)
		}
	case ModeTournament:
		if g.status != StatusWaiting {
			return nil, errors.New("tournament registration is closed")
		}
		chips = g.cfg.StartingChips
	}

	seat := &Seat{
		ID:          len(g.seats),
		PlayerID:    playerID,
		DisplayName: displayName,
		IsHuman:     isHuman,
		Chips:       chips,
		Status:      SeatWaiting,
		Position:    len(g.seats),
	}
	g.seats = append(g.seats, seat)
	return seat, nil
}

// RemoveSeat takes a player out of the game. A seat with live cards
// folds first and the returned result carries the orchestration
// consequences; an all-in seat's cards play on and the seat leaves
// when the hand settles.
func (g *Game) RemoveSeat(playerID string) (*Seat, *ActionResult, error) {
	seat := g.SeatByPlayer(playerID)
	if seat == nil {
		return nil, nil, ErrNotSeated
	}

	var res *ActionResult
	if g.hand != nil && !g.hand.Complete() {
		res = g.hand.ForceFold(seat.ID)
	}

	if seat.Status == SeatAllIn {
		g.pendingLeaves[seat.ID] = true
	} else {
		seat.Status = SeatOut
	}
	return seat, res, nil
}

// Start moves the game from WAITING to ACTIVE. Only the creator may
// start, and at least two funded seats must be ready.
func (g *Game) Start(playerID string) error {
	switch g.status {
	case StatusActive:
		return ErrHandInProgress
	case StatusCompleted:
		return ErrGameOver
	}
	if playerID != g.creatorID {
		return ErrNotAuthorized
	}
	if len(g.eligibleSeats()) < 2 {
		return ErrNotEnoughPlayers
	}
	g.status = StatusActive
	return nil
}

// eligibleSeats returns the seats that would be dealt into the next
// hand, in table order. Waiting seats need a full big blind to come
// in; everyone else just needs chips.
func (g *Game) eligibleSeats() []*Seat {
	var out []*Seat
	for _, s := range g.seats {
		if g.pendingLeaves[s.ID] || s.Chips <= 0 {
			continue
		}
		switch s.Status {
		case SeatOut:
		case SeatWaiting:
			if s.Chips >= g.cfg.BigBlind {
				out = append(out, s)
			}
		default:
			out = append(out, s)
		}
	}
	return out
}

// BeginNextHand deals a fresh hand: it settles leavers and busts,
// promotes funded waiting seats, rotates the button and creates the
// hand. It refuses while a hand is still live, which makes duplicate
// hand-conclusion signals harmless.
func (g *Game) BeginNextHand() (*HandStart, error) {
	if g.status != StatusActive {
		return nil, fmt.Errorf("game is %s", g.status)
	}
	if g.hand != nil && !(g.hand.Complete() && g.hand.Paid()) {
		return nil, ErrHandInProgress
	}

	for id := range g.pendingLeaves {
		if s := g.SeatByID(id); s != nil {
			s.Status = SeatOut
		}
		delete(g.pendingLeaves, id)
	}
	for _, s := range g.seats {
		if s.Status != SeatOut && s.Status != SeatWaiting && s.Chips == 0 {
			s.Status = SeatOut
		}
	}

	eligible := g.eligibleSeats()
	if len(eligible) < 2 {
		if g.cfg.Mode == ModeTournament {
			g.status = StatusCompleted
		} else {
			g.status = StatusWaiting
		}
		g.hand = nil
		return nil, ErrNotEnoughPlayers
	}

	g.rotateButton(eligible)
	g.handCount++

	h, start := startHand(eligible, g.newDeck(), handConfig{
		Number:     g.handCount,
		Button:     g.button,
		SmallBlind: g.cfg.SmallBlind,
		BigBlind:   g.cfg.BigBlind,
		Ante:       g.cfg.Ante,
		Structure:  g.cfg.Structure,
	})
	g.hand = h
	return start, nil
}

// rotateButton advances the button to the next eligible seat
// clockwise in table order. The first hand pins it to the first
// eligible seat.
func (g *Game) rotateButton(eligible []*Seat) {
	if g.handCount == 0 || g.button < 0 {
		g.button = eligible[0].ID
		return
	}
	cur := -1
	for i, s := range g.seats {
		if s.ID == g.button {
			cur = i
			break
		}
	}
	if cur == -1 {
		g.button = eligible[0].ID
		return
	}
	n := len(g.seats)
	for i := 1; i <= n; i++ {
		cand := g.seats[(cur+i)%n]
		for _, e := range eligible {
			if e.ID == cand.ID {
				g.button = cand.ID
				return
			}
		}
	}
}

// ApplyAction resolves the player to a seat and applies the action to
// the live hand. Rejections come back in the result, never as Go
// errors. An unrecoverable turn inconsistency pauses the game.
func (g *Game) ApplyAction(playerID string, action Action, amount int) *ActionResult {
	switch g.status {
	case StatusPaused:
		return reject(-1, action, ErrKindActionFailed, "game is paused")
	case StatusCompleted:
		return reject(-1, action, ErrKindActionFailed, "game is over")
	}
	if g.hand == nil {
		return reject(-1, action, ErrKindActionFailed, "no hand in progress")
	}

	seat := g.SeatByPlayer(playerID)
	if seat == nil {
		// Observers can watch but not act.
		return reject(-1, action, ErrKindNotAuthorized, "player is not seated at this game")
	}

	res := g.hand.Apply(seat.ID, action, amount)
	if g.hand.Broken() {
		g.status = StatusPaused
	}
	return res
}

// ConcludeHand computes the current hand's outcome with the table's
// rake policy. Tournaments never pay rake.
func (g *Game) ConcludeHand() *Conclusion {
	if g.hand == nil {
		return nil
	}
	return g.hand.Conclude(g.cfg.Rake, g.cfg.Mode == ModeCash)
}

// Snapshot captures the game for persistence. A live hand is not
// carried across restarts: street and hand bets fold back into the
// stacks so no chips are lost, and the game resumes WAITING.
type Snapshot struct {
	ID        string    `json:"game_id"`
	Config    Config    `json:"config"`
	CreatorID string    `json:"creator_id"`
	Status    Status    `json:"status"`
	Seats     []Seat    `json:"seats"`
	Button    int       `json:"button"`
	HandCount int       `json:"hand_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot returns a persistable copy of the game.
func (g *Game) Snapshot() *Snapshot {
	snap := &Snapshot{
		ID:        g.id,
		Config:    g.cfg,
		CreatorID: g.creatorID,
		Status:    g.status,
		Button:    g.button,
		HandCount: g.handCount,
		CreatedAt: g.createdAt,
	}
	if snap.Status == StatusActive || snap.Status == StatusPaused {
		snap.Status = StatusWaiting
	}
	for _, s := range g.seats {
		c := *s
		c.HoleCards = nil
		c.Chips += c.HandBet
		c.StreetBet = 0
		c.HandBet = 0
		switch c.Status {
		case SeatFolded, SeatAllIn, SeatActive:
			c.Status = SeatActive
		}
		if g.pendingLeaves[s.ID] {
			c.Status = SeatOut
		}
		snap.Seats = append(snap.Seats, c)
	}
	return snap
}

// FromSnapshot rebuilds a game from a persisted snapshot.
func FromSnapshot(snap *Snapshot, opts ...Option) *Game {
	g := NewGame(snap.ID, snap.Config, snap.CreatorID, opts...)
	g.status = snap.Status
	g.button = snap.Button
	g.handCount = snap.HandCount
	g.createdAt = snap.CreatedAt
	for i := range snap.Seats {
		s := snap.Seats[i]
		g.seats = append(g.seats, &s)
	}
	return g
}
