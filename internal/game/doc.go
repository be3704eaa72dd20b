// Package game implements Texas Hold'em tables: seats, hands, betting
// and settlement.
//
// The main types are Game, the lobby-facing table that seats players
// and starts hands, and Hand, the state machine for a single hand from
// blinds to payouts. A Registry holds the live games.
//
// # Basic Usage
//
// Create a table, seat players and drive a hand:
//
//	g := game.NewGame(gameid.New(), cfg, "alice")
//	g.AddSeat("alice", "Alice", 1000, true)
//	g.AddSeat("bob", "Bob", 1000, true)
//	g.Start("alice")
//	res := g.ApplyAction("alice", game.Call, 0)
//
// Every mutating call returns an ActionResult describing what happened
// and what the caller owes the table next: events to broadcast, log
// lines, pending streets to deal.
//
// # Locking
//
// A Game carries its own mutex and callers hold it across every method
// that touches hand state. The server packages lock around mutation
// and release before any network I/O.
//
// # Deterministic Testing
//
// Shuffles are injectable:
//
//	g := game.NewGame(id, cfg, "p0", game.WithRand(randutil.New(42)))
//
// or with a fully stacked deck:
//
//	g := game.NewGame(id, cfg, "p0", game.WithDeckFunc(func() *deck.Deck {
//	    return deck.Stacked(cards...)
//	}))
package game
