package game

import "fmt"

// Street represents the betting round.
type Street int

const (
	Preflop Street = iota
	Flop
	Turn
	River
	Showdown
)

func (s Street) String() string {
	return [...]string{"preflop", "flop", "turn", "river", "showdown"}[s]
}

// Title returns the street name as used in dealing log lines.
func (s Street) Title() string {
	return [...]string{"Preflop", "Flop", "Turn", "River", "Showdown"}[s]
}

// MarshalText encodes the street as its wire string.
func (s Street) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a street from its wire string.
func (s *Street) UnmarshalText(text []byte) error {
	for st := Preflop; st <= Showdown; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown street %q", text)
}

// cardsFor returns how many board cards the street deals.
func (s Street) cardsFor() int {
	switch s {
	case Flop:
		return 3
	case Turn, River:
		return 1
	default:
		return 0
	}
}

// Action represents a player action. AllIn is the shove for the
// seat's whole stack; the state machine resolves it into call, bet or
// raise semantics depending on the price the seat faces.
type Action int

const (
	Fold Action = iota
	Check
	Call
	Bet
	Raise
	AllIn
)

func (a Action) String() string {
	return [...]string{"fold", "check", "call", "bet", "raise", "all_in"}[a]
}

// MarshalText encodes the action as its wire string.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action from its wire string.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction decodes an action from its wire string.
func ParseAction(s string) (Action, error) {
	for a := Fold; a <= AllIn; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return Fold, fmt.Errorf("unknown action %q", s)
}

// Structure is the betting structure of a game.
type Structure int

const (
	NoLimit Structure = iota
	PotLimit
	FixedLimit
)

func (s Structure) String() string {
	return [...]string{"no_limit", "pot_limit", "fixed_limit"}[s]
}

// MarshalText encodes the structure as its wire string.
func (s Structure) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a structure from its wire string.
func (s *Structure) UnmarshalText(text []byte) error {
	parsed, err := ParseStructure(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStructure decodes a structure from its wire string.
func ParseStructure(s string) (Structure, error) {
	switch s {
	case "no_limit", "":
		return NoLimit, nil
	case "pot_limit":
		return PotLimit, nil
	case "fixed_limit":
		return FixedLimit, nil
	default:
		return NoLimit, fmt.Errorf("unknown betting structure %q", s)
	}
}

// fixedBetSize returns the fixed-limit bet unit for a street: one big
// blind on the preflop and flop, two on the turn and river.
func fixedBetSize(street Street, bigBlind int) int {
	if street >= Turn {
		return 2 * bigBlind
	}
	return bigBlind
}

// ValidAction describes one legal action with its amount bounds. For
// BET and RAISE the bounds are street totals; for CALL and ALL_IN both
// bounds are the chips to add.
type ValidAction struct {
	Action Action `json:"action"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
}
