package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lox/holdemd/internal/gameid"
)

// Registry is the authoritative set of live games, keyed by game ID.
// It hands out *Game values; per-game state is guarded by each game's
// own lock, the registry lock only guards the map.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*Game
	opts  []Option
}

// NewRegistry creates an empty registry. Options are applied to every
// game it creates or restores, which is how tests inject decks.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		games: make(map[string]*Game),
		opts:  opts,
	}
}

// Create normalizes the config and registers a new game.
func (r *Registry) Create(cfg Config, creatorID string) (*Game, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	g := NewGame(gameid.New(), cfg, creatorID, r.opts...)

	r.mu.Lock()
	r.games[g.ID()] = g
	r.mu.Unlock()
	return g, nil
}

// CreateWithID registers a game under a caller-chosen ID, used for
// tables declared in configuration. Fails when the ID is taken.
func (r *Registry) CreateWithID(id string, cfg Config, creatorID string) (*Game, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[id]; ok {
		return nil, fmt.Errorf("game %q already exists", id)
	}
	g := NewGame(id, cfg, creatorID, r.opts...)
	r.games[id] = g
	return g, nil
}

// Get looks up a game by ID.
func (r *Registry) Get(id string) (*Game, bool) {
	r.mu.RLock()
	g, ok := r.games[id]
	r.mu.RUnlock()
	return g, ok
}

// Remove drops a game from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.games, id)
	r.mu.Unlock()
}

// List returns all games ordered by creation time.
func (r *Registry) List() []*Game {
	r.mu.RLock()
	out := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}

// Len returns the number of registered games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// SnapshotAll captures every game for persistence, taking each game's
// lock in turn.
func (r *Registry) SnapshotAll() []*Snapshot {
	games := r.List()
	snaps := make([]*Snapshot, 0, len(games))
	for _, g := range games {
		g.Lock()
		snaps = append(snaps, g.Snapshot())
		g.Unlock()
	}
	return snaps
}

// RestoreAll rebuilds games from persisted snapshots, replacing any
// with the same ID.
func (r *Registry) RestoreAll(snaps []*Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range snaps {
		g := FromSnapshot(snap, r.opts...)
		r.games[g.ID()] = g
	}
}

// Name identifies the registry's persistence snapshot.
func (r *Registry) Name() string {
	return "games"
}

// Snapshot serialises every game for persistence.
func (r *Registry) Snapshot() ([]byte, error) {
	return json.Marshal(r.SnapshotAll())
}

// Restore rebuilds the registry from a persisted snapshot.
func (r *Registry) Restore(data []byte) error {
	var snaps []*Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return err
	}
	r.RestoreAll(snaps)
	return nil
}
