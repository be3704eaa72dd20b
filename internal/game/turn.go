package game

// TurnController owns the set of seats still owed an action this
// street and the cursor pointing at the current actor. The hand state
// machine is the only caller that advances it; everything else reads.
type TurnController struct {
	order  []int
	toAct  map[int]bool
	cursor int
}

// NewTurnController creates a controller over the hand's clockwise
// seat order.
func NewTurnController(order []int) *TurnController {
	return &TurnController{
		order:  append([]int(nil), order...),
		toAct:  make(map[int]bool),
		cursor: -1,
	}
}

// Seed resets the to-act set for a new street and points the cursor at
// the first actor.
func (tc *TurnController) Seed(members []int, first int) {
	tc.toAct = make(map[int]bool, len(members))
	for _, id := range members {
		tc.toAct[id] = true
	}
	tc.cursor = tc.indexOf(first)
	if tc.cursor >= 0 && !tc.toAct[first] {
		tc.cursor = -1
	}
}

// Current returns the seat the cursor points at, or -1 when the street
// has no actor.
func (tc *TurnController) Current() int {
	if tc.cursor < 0 || tc.cursor >= len(tc.order) {
		return -1
	}
	return tc.order[tc.cursor]
}

// Consume removes a seat from the to-act set after its obligation at
// the current price is closed.
func (tc *TurnController) Consume(seat int) {
	delete(tc.toAct, seat)
}

// Reopen replaces the to-act set with the seats owing action after an
// aggressive action. The aggressor is never included. The cursor stays
// on the aggressor so Next continues clockwise from there.
func (tc *TurnController) Reopen(aggressor int, members []int) {
	tc.toAct = make(map[int]bool, len(members))
	for _, id := range members {
		if id != aggressor {
			tc.toAct[id] = true
		}
	}
	if idx := tc.indexOf(aggressor); idx >= 0 {
		tc.cursor = idx
	}
}

// Next advances the cursor clockwise to the next seat owed an action.
// It returns false when the set is empty and the street's betting is
// done.
func (tc *TurnController) Next() (int, bool) {
	if len(tc.toAct) == 0 || len(tc.order) == 0 {
		tc.cursor = -1
		return -1, false
	}
	start := tc.cursor
	for i := 1; i <= len(tc.order); i++ {
		idx := (start + i + len(tc.order)) % len(tc.order)
		if tc.toAct[tc.order[idx]] {
			tc.cursor = idx
			return tc.order[idx], true
		}
	}
	tc.cursor = -1
	return -1, false
}

// Contains reports whether the seat is still owed an action.
func (tc *TurnController) Contains(seat int) bool {
	return tc.toAct[seat]
}

// Remaining returns how many seats are still owed an action.
func (tc *TurnController) Remaining() int {
	return len(tc.toAct)
}

// Pending returns the seats still owed an action in clockwise order
// from the cursor.
func (tc *TurnController) Pending() []int {
	out := make([]int, 0, len(tc.toAct))
	start := tc.cursor
	if start < 0 {
		start = len(tc.order) - 1
	}
	for i := 0; i < len(tc.order); i++ {
		idx := (start + i) % len(tc.order)
		if tc.toAct[tc.order[idx]] {
			out = append(out, tc.order[idx])
		}
	}
	return out
}

// FixCursor repairs a cursor that no longer points at a seat owed an
// action. It is the recovery path for internal inconsistencies, not
// part of normal flow. It returns the repaired actor, or false when
// nothing is owed and the street should be closed out instead.
func (tc *TurnController) FixCursor() (int, bool) {
	if cur := tc.Current(); cur >= 0 && tc.toAct[cur] {
		return cur, true
	}
	return tc.Next()
}

func (tc *TurnController) indexOf(seat int) int {
	for i, id := range tc.order {
		if id == seat {
			return i
		}
	}
	return -1
}
