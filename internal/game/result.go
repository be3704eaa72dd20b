package game

// HandEvent flags something the state machine decided while applying
// an action. The orchestrator keys its notification sequence off these.
type HandEvent int

const (
	EventPlayerActionProcessed HandEvent = iota
	EventBettingRoundCompleted
	EventStreetDealingRequired
	EventShowdownTriggered
	EventEarlyShowdownTriggered
	EventHandCompleted
)

func (e HandEvent) String() string {
	return [...]string{
		"player_action_processed",
		"betting_round_completed",
		"street_dealing_required",
		"showdown_triggered",
		"early_showdown_triggered",
		"hand_completed",
	}[e]
}

// ErrorKind classifies a rejected action. The zero value means the
// action was accepted. Values double as wire error codes.
type ErrorKind string

const (
	ErrKindNone           ErrorKind = ""
	ErrKindGameNotFound   ErrorKind = "game_not_found"
	ErrKindPlayerNotFound ErrorKind = "player_not_found"
	ErrKindNotYourTurn    ErrorKind = "not_your_turn"
	ErrKindInvalidAction  ErrorKind = "invalid_action"
	ErrKindNotAuthorized  ErrorKind = "not_authorized"
	ErrKindActionFailed   ErrorKind = "action_failed"
	ErrKindInvalidFormat  ErrorKind = "invalid_format"
)

// AnimationSequence names the canned client visual an action result
// triggers. Opaque to the server; clients key their effects off it.
type AnimationSequence string

const (
	// AnimNone: betting continues, only the turn highlight moves.
	AnimNone AnimationSequence = "none"
	// AnimChipCollection: round closed, bets slide into the pot, the
	// next street follows.
	AnimChipCollection AnimationSequence = "chip_collection"
	// AnimStreetDealing: an all-in runout, remaining streets deal with
	// no betting in between.
	AnimStreetDealing AnimationSequence = "street_dealing"
	// AnimShowdownReveal: river betting closed, hands get revealed.
	AnimShowdownReveal AnimationSequence = "showdown_reveal"
	// AnimHandConclusion: hand over without a reveal, chips push to
	// the winner.
	AnimHandConclusion AnimationSequence = "hand_conclusion"
)

// ActionResult reports the outcome of applying one player action to
// the hand state machine. It is a value: built once, never mutated,
// safe to read after the game mutex is released.
type ActionResult struct {
	OK        bool      `json:"success"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	ErrorText string    `json:"error_text,omitempty"`

	Seat   int    `json:"acting_seat_id"`
	Action Action `json:"action"`
	// Amount follows the log-line convention: total street bet for
	// bets and raises, chips added for calls and all-ins, zero
	// otherwise.
	Amount int `json:"amount"`

	Events    []HandEvent       `json:"events,omitempty"`
	Animation AnimationSequence `json:"animation_sequence"`

	// PendingStreets lists streets still to be dealt for an all-in
	// runout, in deal order.
	PendingStreets []Street `json:"pending_streets_to_deal,omitempty"`

	// Post-action bet levels of the acting seat.
	StreetBet int `json:"post_street_bet"`
	HandBet   int `json:"post_hand_bet"`

	// NextSeat is the seat to act after this action, -1 when the
	// round or hand ended.
	NextSeat int `json:"next_actor_id"`

	// LogLine is the canonical action-log phrasing for broadcast.
	LogLine string `json:"-"`

	// Repaired is set when the turn cursor had drifted off the to-act
	// set and was corrected before this action was applied.
	Repaired bool `json:"-"`
}

// Has reports whether an event was emitted.
func (r *ActionResult) Has(event HandEvent) bool {
	for _, e := range r.Events {
		if e == event {
			return true
		}
	}
	return false
}

// reject builds a failed result carrying an error kind.
func reject(seat int, action Action, kind ErrorKind, text string) *ActionResult {
	return &ActionResult{
		OK:        false,
		ErrorKind: kind,
		ErrorText: text,
		Seat:      seat,
		Action:    action,
		Animation: AnimNone,
		NextSeat:  -1,
	}
}
